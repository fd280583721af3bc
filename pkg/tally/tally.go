// Package tally splits an election between the roles that handle ciphertexts.
//
// Voters validate and encrypt their ballot against a Manifest. The Aggregator,
// which only knows the public key, multiplies the ciphertexts of every voter
// into one bucket per candidate. Once voting is closed it hands an
// AggregatedTally to the Authority, the only holder of the secret key, which
// decrypts the sums exactly once and produces a Result.
package tally

import (
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/taurusgroup/paillier-tally/internal/hash"
	"github.com/taurusgroup/paillier-tally/pkg/paillier"
)

// AggregatedTally holds one ciphertext per candidate, the homomorphic sum of
// every accepted ballot. It is produced by Aggregator.Tally after voting is closed.
type AggregatedTally struct {
	ElectionID uuid.UUID                       `json:"election_id"`
	KeyID      []byte                          `json:"key_id"`
	Voters     int                             `json:"voters"`
	Totals     map[string]*paillier.Ciphertext `json:"totals"`
}

// Candidates returns the candidate names in sorted order.
func (t *AggregatedTally) Candidates() []string {
	names := make([]string, 0, len(t.Totals))
	for name := range t.Totals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every sum is a valid ciphertext under pk.
func (t *AggregatedTally) Validate(pk *paillier.PublicKey) error {
	if t == nil {
		return fmt.Errorf("%w: nil", ErrInvalidTally)
	}
	if t.Voters < 0 {
		return fmt.Errorf("%w: negative voter count", ErrInvalidTally)
	}
	for _, name := range t.Candidates() {
		if err := pk.ValidateCiphertexts(t.Totals[name]); err != nil {
			return fmt.Errorf("%w: candidate %q: %w", ErrInvalidTally, name, err)
		}
	}
	return nil
}

// Digest commits to the whole tally, so that it can be checked the Authority
// decrypted what the Aggregator published.
func (t *AggregatedTally) Digest() ([]byte, error) {
	h := hash.New("paillier-tally/aggregated-tally")
	if err := h.WriteAny(t.ElectionID[:], t.KeyID, uint64(t.Voters), uint64(len(t.Totals))); err != nil {
		return nil, err
	}
	for _, name := range t.Candidates() {
		if err := h.WriteAny(name, t.Totals[name]); err != nil {
			return nil, fmt.Errorf("%w: candidate %q: %w", ErrInvalidTally, name, err)
		}
	}
	return h.Sum(), nil
}

type tallyMarshal struct {
	ElectionID []byte
	KeyID      []byte
	Voters     int
	Totals     map[string][]byte
}

// MarshalBinary encodes the tally with CBOR, ciphertexts as big-endian bytes.
func (t *AggregatedTally) MarshalBinary() ([]byte, error) {
	totals := make(map[string][]byte, len(t.Totals))
	for name, ct := range t.Totals {
		b, err := ct.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("%w: candidate %q: %w", ErrInvalidTally, name, err)
		}
		totals[name] = b
	}
	return cbor.Marshal(&tallyMarshal{
		ElectionID: t.ElectionID[:],
		KeyID:      t.KeyID,
		Voters:     t.Voters,
		Totals:     totals,
	})
}

// UnmarshalBinary decodes the output of MarshalBinary.
// Ciphertext ranges are not checked until Validate is called with the key.
func (t *AggregatedTally) UnmarshalBinary(data []byte) error {
	var tm tallyMarshal
	if err := cbor.Unmarshal(data, &tm); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTally, err)
	}
	id, err := uuid.FromBytes(tm.ElectionID)
	if err != nil {
		return fmt.Errorf("%w: election id: %w", ErrInvalidTally, err)
	}
	totals := make(map[string]*paillier.Ciphertext, len(tm.Totals))
	for name, b := range tm.Totals {
		ct := new(paillier.Ciphertext)
		if err := ct.UnmarshalBinary(b); err != nil {
			return fmt.Errorf("%w: candidate %q: %w", ErrInvalidTally, name, err)
		}
		totals[name] = ct
	}
	*t = AggregatedTally{
		ElectionID: id,
		KeyID:      tm.KeyID,
		Voters:     tm.Voters,
		Totals:     totals,
	}
	return nil
}
