// Command tally runs a homomorphically tallied election from the command line.
//
//	tally keygen    -candidates Alice,Bob -data election
//	tally vote      -data election -voter 0x... -ballot '{"Alice": 50, "Bob": 30}'
//	tally aggregate -data election
//	tally decrypt   -data election -key authority.key
//
// Every subcommand accepts -config, a JSON file read over the defaults.
// Flags given explicitly take precedence over the file.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/taurusgroup/paillier-tally/internal/config"
)

type command struct {
	name  string
	usage string
	run   func(cfg *config.Config, log zerolog.Logger, fs *flag.FlagSet) error
	flags func(fs *flag.FlagSet)
}

var commands = []command{
	{name: "keygen", usage: "generate the authority key and open an election", run: runKeygen, flags: keygenFlags},
	{name: "vote", usage: "validate, encrypt and store a ballot", run: runVote, flags: voteFlags},
	{name: "aggregate", usage: "close voting and sum the stored ballots", run: runAggregate, flags: aggregateFlags},
	{name: "decrypt", usage: "decrypt the tally and publish the result", run: runDecrypt, flags: decryptFlags},
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <command> [flags]\n\ncommands:\n", os.Args[0])
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", c.name, c.usage)
	}
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	for _, c := range commands {
		if c.name != os.Args[1] {
			continue
		}
		if err := run(c, os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", c.name, err)
			os.Exit(1)
		}
		return
	}
	usage()
	os.Exit(2)
}

func run(c command, args []string) error {
	fs := flag.NewFlagSet(c.name, flag.ContinueOnError)
	configPath := fs.String("config", "", "JSON configuration file")
	dataDir := fs.String("data", "", "election directory")
	workers := fs.Int("workers", 0, "number of worker goroutines")
	logLevel := fs.String("log-level", "", "log level (debug, info, warn, error)")
	c.flags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data":
			cfg.DataDir = *dataDir
		case "workers":
			cfg.Workers = *workers
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})
	applyElectionFlags(fs, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(cfg.Level()).
		With().
		Timestamp().
		Str("command", c.name).
		Logger()
	return c.run(cfg, log, fs)
}

// Flags shared by the commands that define an election.
var (
	flagBits       int
	flagCap        uint64
	flagCandidates string
	flagRequireAll bool
	flagRequireSig bool
	flagKeyFile    string
)

func electionFlags(fs *flag.FlagSet) {
	fs.IntVar(&flagBits, "bits", 0, "size of the Paillier modulus")
	fs.Uint64Var(&flagCap, "cap", 0, "maximum sum of allocations on a ballot")
	fs.StringVar(&flagCandidates, "candidates", "", "comma separated candidate names")
	fs.BoolVar(&flagRequireAll, "require-allocation", false, "reject empty ballots")
	fs.BoolVar(&flagRequireSig, "require-signatures", false, "reject unsigned submissions")
}

func keyFlag(fs *flag.FlagSet) {
	fs.StringVar(&flagKeyFile, "key", "", "authority key file")
}

func applyElectionFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "bits":
			cfg.KeyBits = flagBits
		case "cap":
			cfg.BallotCap = flagCap
		case "candidates":
			cfg.Candidates = splitCandidates(flagCandidates)
		case "require-allocation":
			cfg.RequireAllocation = flagRequireAll
		case "require-signatures":
			cfg.RequireSignatures = flagRequireSig
		case "key":
			cfg.KeyFile = flagKeyFile
		}
	})
}

func splitCandidates(s string) []string {
	var names []string
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}
