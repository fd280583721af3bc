// Package config holds the operator settings shared by the tally commands.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/taurusgroup/paillier-tally/internal/params"
	"github.com/taurusgroup/paillier-tally/pkg/ballot"
)

// Config describes an election and where its files live.
type Config struct {
	// KeyBits is the size of the Paillier modulus generated by keygen.
	KeyBits int `json:"key_bits"`
	// BallotCap bounds the sum of allocations on a ballot.
	BallotCap uint64 `json:"ballot_cap"`
	// RequireAllocation rejects empty ballots.
	RequireAllocation bool `json:"require_allocation"`
	// Candidates lists the accepted names. Any name is accepted when empty.
	Candidates []string `json:"candidates"`
	// RequireSignatures rejects submissions not signed by the voter's address.
	RequireSignatures bool `json:"require_signatures"`
	// Workers is the number of goroutines used for prime search, encryption and ingestion.
	Workers int `json:"workers"`
	// DataDir holds the manifest and the submissions.
	DataDir string `json:"data_dir"`
	// KeyFile is where the authority keeps its secret key.
	KeyFile string `json:"key_file"`
	// LogLevel is parsed with zerolog.ParseLevel.
	LogLevel string `json:"log_level"`
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		KeyBits:   params.DefaultBitsPaillier,
		BallotCap: params.DefaultBallotCap,
		Workers:   runtime.NumCPU(),
		DataDir:   "election",
		KeyFile:   "authority.key",
		LogLevel:  zerolog.InfoLevel.String(),
	}
}

// Load reads a JSON file over the defaults, so the file only needs the values it changes.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	if c.KeyBits < params.MinBitsPaillier {
		return fmt.Errorf("config: key_bits %d is below the minimum of %d", c.KeyBits, params.MinBitsPaillier)
	}
	if c.KeyBits%2 != 0 {
		return fmt.Errorf("config: key_bits %d must be even", c.KeyBits)
	}
	if c.BallotCap == 0 {
		return errors.New("config: ballot_cap must be positive")
	}
	seen := make(map[string]struct{}, len(c.Candidates))
	for _, name := range c.Candidates {
		if _, ok := seen[name]; ok {
			return fmt.Errorf("config: candidate %q listed twice", name)
		}
		seen[name] = struct{}{}
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must not be negative")
	}
	if c.DataDir == "" {
		return errors.New("config: data_dir is empty")
	}
	if c.KeyFile == "" {
		return errors.New("config: key_file is empty")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: log_level: %w", err)
	}
	return nil
}

// Policy returns the ballot rules described by c.
func (c *Config) Policy() ballot.Policy {
	return ballot.Policy{
		Cap:               c.BallotCap,
		RequireAllocation: c.RequireAllocation,
		Candidates:        c.Candidates,
	}
}

// Level returns the parsed log level, Info if it is invalid.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
