package tally

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/taurusgroup/paillier-tally/pkg/paillier"
	"golang.org/x/sync/errgroup"
)

// Aggregator sums encrypted ballots per candidate. It only needs the public key.
//
// Submissions may arrive concurrently; each candidate's running sum is updated
// under a single lock, and a submission is applied to all buckets or none.
type Aggregator struct {
	manifest *Manifest
	log      zerolog.Logger
	// candidates is read without the lock, it is never modified after NewAggregator
	candidates map[string]struct{}

	mtx     sync.Mutex
	closed  bool
	buckets map[string]*paillier.Ciphertext
	voters  map[common.Address]struct{}
}

// NewAggregator returns an open Aggregator for the election described by m.
//
// When m lists candidates, every bucket starts at the encryption of 0, so the tally
// contains every candidate even if nobody voted for them.
func NewAggregator(m *Manifest, log zerolog.Logger) (*Aggregator, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	a := &Aggregator{
		manifest: m,
		log: log.With().
			Str("election", m.ElectionID.String()).
			Str("role", "aggregator").
			Logger(),
		candidates: make(map[string]struct{}, len(m.Policy.Candidates)),
		buckets:    make(map[string]*paillier.Ciphertext, len(m.Policy.Candidates)),
		voters:     make(map[common.Address]struct{}),
	}
	for _, c := range m.Policy.Candidates {
		a.candidates[c] = struct{}{}
		identity, err := paillier.Combine(m.PublicKey)
		if err != nil {
			return nil, err
		}
		a.buckets[c] = identity
	}
	return a, nil
}

// check performs every verification of s which does not depend on the
// aggregator's state, so it can run concurrently.
func (a *Aggregator) check(s *Submission) error {
	if s == nil {
		return fmt.Errorf("tally: nil submission")
	}
	if s.ElectionID != a.manifest.ElectionID {
		return fmt.Errorf("%w: got %s", ErrElectionMismatch, s.ElectionID)
	}
	if !bytes.Equal(s.KeyID, a.manifest.KeyID) {
		return ErrKeyMismatch
	}
	if s.Voter == (common.Address{}) {
		return fmt.Errorf("%w: zero address", ErrInvalidVoter)
	}
	if len(a.candidates) > 0 {
		for name := range s.Ballot {
			if _, ok := a.candidates[name]; !ok {
				return fmt.Errorf("%w: %q", ErrUnknownCandidate, name)
			}
		}
	}
	for _, name := range s.Ballot.Candidates() {
		if err := a.manifest.PublicKey.ValidateCiphertexts(s.Ballot[name]); err != nil {
			return fmt.Errorf("candidate %q: %w", name, err)
		}
	}
	if len(s.Signature) > 0 || a.manifest.RequireSignatures {
		if err := s.VerifySignature(); err != nil {
			return err
		}
	}
	return nil
}

// apply adds a checked submission to the buckets.
func (a *Aggregator) apply(s *Submission) error {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	if a.closed {
		return ErrClosed
	}
	if _, ok := a.voters[s.Voter]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateVoter, s.Voter.Hex())
	}
	for name, ct := range s.Ballot {
		bucket, ok := a.buckets[name]
		if !ok {
			bucket, _ = paillier.Combine(a.manifest.PublicKey)
			a.buckets[name] = bucket
		}
		bucket.Add(a.manifest.PublicKey, ct)
	}
	a.voters[s.Voter] = struct{}{}
	return nil
}

// Submit checks s and adds its ciphertexts to the running sums.
//
// It fails with ErrClosed after Close, with ErrDuplicateVoter if the voter
// already submitted, and with ErrElectionMismatch, ErrKeyMismatch or
// paillier.ErrCiphertextRange for submissions which do not belong to this tally.
// A failed submission leaves the tally untouched.
func (a *Aggregator) Submit(s *Submission) error {
	if a.Closed() {
		return ErrClosed
	}
	err := a.check(s)
	if err == nil {
		err = a.apply(s)
	}
	if err != nil {
		ev := a.log.Warn().Err(err)
		if s != nil {
			ev = ev.Str("voter", s.Voter.Hex())
		}
		ev.Msg("submission rejected")
		return err
	}
	a.log.Info().Str("voter", s.Voter.Hex()).Int("candidates", len(s.Ballot)).Msg("submission accepted")
	return nil
}

// Ingest submits a batch, checking submissions concurrently with at most
// workers goroutines, then applying them in order.
//
// Rejected submissions do not stop the batch, they are returned as Rejections.
// The returned error is only set when ctx is done, in which case the remaining
// submissions were not applied.
func (a *Aggregator) Ingest(ctx context.Context, subs []*Submission, workers int) ([]Rejection, error) {
	checks := make([]error, len(subs))
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i := range subs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			checks[i] = a.check(subs[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rejections []Rejection
	for i, s := range subs {
		if err := ctx.Err(); err != nil {
			return rejections, err
		}
		err := checks[i]
		if err == nil {
			err = a.apply(s)
		}
		if err != nil {
			r := Rejection{Index: i, Err: err}
			if s != nil {
				r.Voter = s.Voter
			}
			a.log.Warn().Err(err).Int("index", i).Str("voter", r.Voter.Hex()).Msg("submission rejected")
			rejections = append(rejections, r)
		}
	}
	a.log.Info().Int("submitted", len(subs)).Int("rejected", len(rejections)).Msg("batch ingested")
	return rejections, nil
}

// Close freezes the tally. Further submissions fail with ErrClosed.
// Closing twice is a no-op.
func (a *Aggregator) Close() {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	a.log.Info().Int("voters", len(a.voters)).Msg("voting closed")
}

// Closed reports whether Close was called.
func (a *Aggregator) Closed() bool {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	return a.closed
}

// Voters returns the number of accepted submissions.
func (a *Aggregator) Voters() int {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	return len(a.voters)
}

// Tally returns the frozen per-candidate sums. It fails with ErrOpen before Close.
func (a *Aggregator) Tally() (*AggregatedTally, error) {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	if !a.closed {
		return nil, ErrOpen
	}
	totals := make(map[string]*paillier.Ciphertext, len(a.buckets))
	for name, ct := range a.buckets {
		totals[name] = ct.Clone()
	}
	return &AggregatedTally{
		ElectionID: a.manifest.ElectionID,
		KeyID:      a.manifest.KeyID,
		Voters:     len(a.voters),
		Totals:     totals,
	}, nil
}
