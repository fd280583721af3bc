// Package storage keeps the public artifacts of an election in a directory:
// the manifest, one JSON file per voter holding their encrypted ballot, the
// aggregated tally and the published result.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/taurusgroup/paillier-tally/pkg/tally"
)

var (
	ErrExists         = errors.New("storage: already stored")
	ErrNotFound       = errors.New("storage: not found")
	ErrInvalidAddress = errors.New("storage: invalid voter address")
)

const (
	manifestFile   = "manifest.json"
	tallyFile      = "tally.cbor"
	resultFile     = "result.json"
	submissionsDir = "submissions"
)

// Record is a stored submission, together with the receipt handed to the voter.
type Record struct {
	Receipt    uuid.UUID         `json:"receipt"`
	StoredAt   time.Time         `json:"stored_at"`
	Submission *tally.Submission `json:"submission"`
}

// Store is a directory of election files. It is safe for concurrent use within one process.
type Store struct {
	dir string
	log zerolog.Logger
	mtx sync.RWMutex
}

// Open creates dir if needed and returns a Store over it.
func Open(dir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, submissionsDir), 0o755); err != nil {
		return nil, fmt.Errorf("storage: create directory: %w", err)
	}
	return &Store{
		dir: dir,
		log: log.With().Str("store", dir).Logger(),
	}, nil
}

// Dir returns the root directory of the store.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) submissionPath(voter common.Address) string {
	return filepath.Join(s.dir, submissionsDir, voter.Hex()+".json")
}

// Put stores sub under its voter's address and returns a fresh receipt.
// A voter can only be stored once, later attempts fail with ErrExists.
func (s *Store) Put(sub *tally.Submission) (uuid.UUID, error) {
	if sub == nil || sub.Voter == (common.Address{}) {
		return uuid.Nil, ErrInvalidAddress
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()

	path := s.submissionPath(sub.Voter)
	if _, err := os.Stat(path); err == nil {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrExists, sub.Voter.Hex())
	} else if !errors.Is(err, os.ErrNotExist) {
		return uuid.Nil, fmt.Errorf("storage: %w", err)
	}

	rec := &Record{
		Receipt:    uuid.New(),
		StoredAt:   time.Now().UTC(),
		Submission: sub,
	}
	if err := writeJSON(path, rec); err != nil {
		return uuid.Nil, err
	}
	s.log.Info().Str("voter", sub.Voter.Hex()).Str("receipt", rec.Receipt.String()).Msg("submission stored")
	return rec.Receipt, nil
}

// Get returns the record of a voter, given as a hex address in any case.
func (s *Store) Get(voter string) (*Record, error) {
	if !common.IsHexAddress(voter) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, voter)
	}
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	var rec Record
	if err := readJSON(s.submissionPath(common.HexToAddress(voter)), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns every record, ordered by voter address.
func (s *Store) List() ([]*Record, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	entries, err := os.ReadDir(filepath.Join(s.dir, submissionsDir))
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	var records []*Record
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if !common.IsHexAddress(strings.TrimSuffix(name, ".json")) {
			s.log.Warn().Str("file", name).Msg("skipping file not named after an address")
			continue
		}
		var rec Record
		if err := readJSON(filepath.Join(s.dir, submissionsDir, name), &rec); err != nil {
			return nil, err
		}
		if rec.Submission == nil {
			return nil, fmt.Errorf("storage: %s holds no submission", name)
		}
		records = append(records, &rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return bytes.Compare(records[i].Submission.Voter[:], records[j].Submission.Voter[:]) < 0
	})
	return records, nil
}

// Submissions returns the submissions of every record, ordered by voter address.
func (s *Store) Submissions() ([]*tally.Submission, error) {
	records, err := s.List()
	if err != nil {
		return nil, err
	}
	subs := make([]*tally.Submission, len(records))
	for i, rec := range records {
		subs[i] = rec.Submission
	}
	return subs, nil
}

// PutManifest writes the manifest of the election, replacing any previous one.
func (s *Store) PutManifest(m *tally.Manifest) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return writeJSON(filepath.Join(s.dir, manifestFile), m)
}

// Manifest reads and validates the manifest of the election.
func (s *Store) Manifest() (*tally.Manifest, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	var m tally.Manifest
	if err := readJSON(filepath.Join(s.dir, manifestFile), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// PutTally writes the aggregated tally, replacing any previous one.
func (s *Store) PutTally(t *tally.AggregatedTally) error {
	data, err := t.MarshalBinary()
	if err != nil {
		return err
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return writeFile(filepath.Join(s.dir, tallyFile), data)
}

// Tally reads the aggregated tally. Its ciphertexts are not checked against any key.
func (s *Store) Tally() (*tally.AggregatedTally, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	data, err := os.ReadFile(filepath.Join(s.dir, tallyFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, tallyFile)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	var t tally.AggregatedTally
	if err := t.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("storage: decode %s: %w", tallyFile, err)
	}
	return &t, nil
}

// PublishedResult is a decrypted result together with the authority's attestation.
type PublishedResult struct {
	Result      *tally.Result      `json:"result"`
	Attestation *tally.Attestation `json:"attestation"`
}

// PutResult writes the result of the election. A result is only ever written
// once, later attempts fail with ErrExists.
func (s *Store) PutResult(r *PublishedResult) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	path := filepath.Join(s.dir, resultFile)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, resultFile)
	}
	return writeJSON(path, r)
}

// Result reads the published result.
func (s *Store) Result() (*PublishedResult, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	var r PublishedResult
	if err := readJSON(filepath.Join(s.dir, resultFile), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
	}
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("storage: decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", filepath.Base(path), err)
	}
	return writeFile(path, data)
}

// writeFile writes to a temporary file first, then renames it into place.
func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("storage: write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("storage: write %s: %w", filepath.Base(path), err)
	}
	return nil
}
