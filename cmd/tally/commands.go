package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"
	"github.com/taurusgroup/paillier-tally/internal/config"
	"github.com/taurusgroup/paillier-tally/pkg/paillier"
	"github.com/taurusgroup/paillier-tally/pkg/pool"
	"github.com/taurusgroup/paillier-tally/pkg/storage"
	"github.com/taurusgroup/paillier-tally/pkg/tally"
)

// authorityKey is the content of the authority's key file.
type authorityKey struct {
	// Paillier is the output of paillier.SecretKey.MarshalBinary
	Paillier []byte
	// Attestation is the secp256k1 key signing published results
	Attestation []byte
}

func writeAuthorityKey(path string, sk *paillier.SecretKey, signer *secp256k1.PrivateKey) error {
	skData, err := sk.MarshalBinary()
	if err != nil {
		return err
	}
	data, err := cbor.Marshal(&authorityKey{Paillier: skData, Attestation: signer.Serialize()})
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create key file: %w", err)
	}
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write key file: %w", err)
	}
	return f.Close()
}

func readAuthorityKey(path string) (*paillier.SecretKey, *secp256k1.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read key file: %w", err)
	}
	var ak authorityKey
	if err = cbor.Unmarshal(data, &ak); err != nil {
		return nil, nil, fmt.Errorf("decode key file: %w", err)
	}
	sk := new(paillier.SecretKey)
	if err = sk.UnmarshalBinary(ak.Paillier); err != nil {
		return nil, nil, err
	}
	if len(ak.Attestation) != secp256k1.PrivKeyBytesLen {
		return nil, nil, errors.New("key file holds no attestation key")
	}
	return sk, secp256k1.PrivKeyFromBytes(ak.Attestation), nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func keygenFlags(fs *flag.FlagSet) {
	electionFlags(fs)
	keyFlag(fs)
}

func runKeygen(cfg *config.Config, log zerolog.Logger, _ *flag.FlagSet) error {
	if _, err := os.Stat(cfg.KeyFile); err == nil {
		return fmt.Errorf("key file %s already exists", cfg.KeyFile)
	}
	st, err := storage.Open(cfg.DataDir, log)
	if err != nil {
		return err
	}
	if _, err = st.Manifest(); err == nil {
		return fmt.Errorf("%s already holds an election", cfg.DataDir)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	pl := pool.NewPool(cfg.Workers)
	defer pl.TearDown()

	start := time.Now()
	_, sk, err := paillier.KeyGen(rand.Reader, pl, cfg.KeyBits)
	if err != nil {
		return err
	}
	log.Info().Int("bits", cfg.KeyBits).Dur("took", time.Since(start)).Msg("key generated")

	signer, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return err
	}
	m, err := openElection(cfg, log, st, sk, signer)
	if err != nil {
		return err
	}
	return printJSON(m)
}

// openElection saves the authority key and the manifest of a new election.
// The key file is removed again if the manifest cannot be stored.
func openElection(cfg *config.Config, log zerolog.Logger, st *storage.Store, sk *paillier.SecretKey, signer *secp256k1.PrivateKey) (*tally.Manifest, error) {
	if err := writeAuthorityKey(cfg.KeyFile, sk, signer); err != nil {
		return nil, err
	}
	auth := tally.NewAuthority(sk, log)
	m := auth.NewManifest(cfg.Policy())
	m.RequireSignatures = cfg.RequireSignatures
	if err := st.PutManifest(m); err != nil {
		if rmErr := os.Remove(cfg.KeyFile); rmErr != nil {
			log.Error().Err(rmErr).Str("file", cfg.KeyFile).Msg("failed to remove key file")
		}
		return nil, err
	}
	return m, nil
}

var (
	flagVoter      string
	flagBallot     string
	flagBallotFile string
	flagSignKey    string
)

func voteFlags(fs *flag.FlagSet) {
	fs.StringVar(&flagVoter, "voter", "", "voter address (0x...)")
	fs.StringVar(&flagBallot, "ballot", "", `ballot JSON, e.g. {"Alice": 50, "Bob": 30}`)
	fs.StringVar(&flagBallotFile, "ballot-file", "", "read the ballot from a file, - for stdin")
	fs.StringVar(&flagSignKey, "sign-key", "", "hex secp256k1 key of the voter, to sign the submission")
}

func runVote(cfg *config.Config, log zerolog.Logger, _ *flag.FlagSet) error {
	if !common.IsHexAddress(flagVoter) {
		return fmt.Errorf("invalid voter address %q", flagVoter)
	}
	voter := common.HexToAddress(flagVoter)

	var raw []byte
	switch {
	case flagBallot != "" && flagBallotFile != "":
		return errors.New("-ballot and -ballot-file are exclusive")
	case flagBallot != "":
		raw = []byte(flagBallot)
	case flagBallotFile == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		raw = data
	case flagBallotFile != "":
		data, err := os.ReadFile(flagBallotFile)
		if err != nil {
			return err
		}
		raw = data
	default:
		return errors.New("missing -ballot or -ballot-file")
	}

	st, err := storage.Open(cfg.DataDir, log)
	if err != nil {
		return err
	}
	m, err := st.Manifest()
	if err != nil {
		return err
	}
	if m.RequireSignatures && flagSignKey == "" {
		return errors.New("this election requires -sign-key")
	}

	pl := pool.NewPool(cfg.Workers)
	defer pl.TearDown()

	eb, err := tally.PrepareBallot(rand.Reader, m, raw, pl)
	if err != nil {
		return err
	}
	sub := tally.NewSubmission(m, voter, eb)
	if flagSignKey != "" {
		priv, err := crypto.HexToECDSA(strings.TrimPrefix(flagSignKey, "0x"))
		if err != nil {
			return fmt.Errorf("sign key: %w", err)
		}
		if err = sub.Sign(priv); err != nil {
			return err
		}
	}
	receipt, err := st.Put(sub)
	if err != nil {
		return err
	}
	fmt.Println(receipt)
	return nil
}

func aggregateFlags(*flag.FlagSet) {}

func runAggregate(cfg *config.Config, log zerolog.Logger, _ *flag.FlagSet) error {
	st, err := storage.Open(cfg.DataDir, log)
	if err != nil {
		return err
	}
	m, err := st.Manifest()
	if err != nil {
		return err
	}
	subs, err := st.Submissions()
	if err != nil {
		return err
	}

	agg, err := tally.NewAggregator(m, log)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	rejections, err := agg.Ingest(ctx, subs, cfg.Workers)
	if err != nil {
		return err
	}
	agg.Close()

	t, err := agg.Tally()
	if err != nil {
		return err
	}
	if err = st.PutTally(t); err != nil {
		return err
	}
	log.Info().Int("accepted", t.Voters).Int("rejected", len(rejections)).Msg("tally written")
	return printJSON(t)
}

var flagRetainKey bool

func decryptFlags(fs *flag.FlagSet) {
	keyFlag(fs)
	fs.BoolVar(&flagRetainKey, "retain-key", false, "keep the key file after decryption, to reuse the key in a later election")
}

func runDecrypt(cfg *config.Config, log zerolog.Logger, _ *flag.FlagSet) error {
	st, err := storage.Open(cfg.DataDir, log)
	if err != nil {
		return err
	}
	if _, err = st.Result(); err == nil {
		return tally.ErrAlreadyDecrypted
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	m, err := st.Manifest()
	if err != nil {
		return err
	}
	t, err := st.Tally()
	if err != nil {
		return err
	}
	if t.ElectionID != m.ElectionID {
		return tally.ErrElectionMismatch
	}

	sk, signer, err := readAuthorityKey(cfg.KeyFile)
	if err != nil {
		return err
	}
	auth := tally.NewAuthority(sk, log)
	defer auth.Destroy()
	if err = auth.Open(m); err != nil {
		return err
	}

	res, err := auth.Decrypt(t)
	if err != nil {
		return err
	}
	att, err := res.Sign(signer)
	if err != nil {
		return err
	}
	if err = st.PutResult(&storage.PublishedResult{Result: res, Attestation: att}); err != nil {
		return err
	}

	if !flagRetainKey {
		if err = os.Remove(cfg.KeyFile); err != nil {
			return fmt.Errorf("remove key file: %w", err)
		}
		log.Info().Str("file", cfg.KeyFile).Msg("key file removed")
	}

	summary := res.Summary()
	log.Info().Str("winner", summary.Winner).Stringer("votes", summary.Votes).Strs("tied", summary.Tied).Msg("result published")
	return printJSON(res.Totals)
}
