package tally

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/taurusgroup/paillier-tally/pkg/ballot"
	"github.com/taurusgroup/paillier-tally/pkg/paillier"
)

// Manifest describes an election to voters and aggregators.
// It only contains public values and is published by the Authority.
type Manifest struct {
	ElectionID uuid.UUID
	PublicKey  *paillier.PublicKey
	// KeyID is the fingerprint of PublicKey
	KeyID []byte
	// Policy is applied to every ballot before it is encrypted.
	Policy ballot.Policy
	// RequireSignatures makes the Aggregator reject unsigned submissions.
	RequireSignatures bool
}

// NewManifest creates a Manifest for a new election under pk, with a random ID.
func NewManifest(pk *paillier.PublicKey, policy ballot.Policy) *Manifest {
	return &Manifest{
		ElectionID: uuid.New(),
		PublicKey:  pk,
		KeyID:      pk.Fingerprint(),
		Policy:     policy,
	}
}

// Validate checks that the manifest is complete and that KeyID matches PublicKey.
func (m *Manifest) Validate() error {
	if m == nil {
		return fmt.Errorf("tally: nil manifest")
	}
	if m.ElectionID == uuid.Nil {
		return fmt.Errorf("%w: missing election id", ErrElectionMismatch)
	}
	if m.PublicKey == nil {
		return fmt.Errorf("%w: missing public key", ErrKeyMismatch)
	}
	if !bytes.Equal(m.KeyID, m.PublicKey.Fingerprint()) {
		return fmt.Errorf("%w: key id does not match the public key", ErrKeyMismatch)
	}
	if len(m.Policy.Candidates) > 0 {
		seen := make(map[string]struct{}, len(m.Policy.Candidates))
		for _, c := range m.Policy.Candidates {
			if _, ok := seen[c]; ok {
				return fmt.Errorf("tally: candidate %q listed twice", c)
			}
			seen[c] = struct{}{}
		}
	}
	return nil
}

type manifestJSON struct {
	ElectionID        uuid.UUID           `json:"election_id"`
	PublicKey         *paillier.PublicKey `json:"public_key"`
	KeyID             []byte              `json:"key_id"`
	Cap               uint64              `json:"cap"`
	RequireAllocation bool                `json:"require_allocation,omitempty"`
	Candidates        []string            `json:"candidates,omitempty"`
	RequireSignatures bool                `json:"require_signatures,omitempty"`
}

func (m *Manifest) MarshalJSON() ([]byte, error) {
	return json.Marshal(manifestJSON{
		ElectionID:        m.ElectionID,
		PublicKey:         m.PublicKey,
		KeyID:             m.KeyID,
		Cap:               m.Policy.Cap,
		RequireAllocation: m.Policy.RequireAllocation,
		Candidates:        m.Policy.Candidates,
		RequireSignatures: m.RequireSignatures,
	})
}

// UnmarshalJSON decodes and validates a manifest.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	var mj manifestJSON
	if err := json.Unmarshal(data, &mj); err != nil {
		return fmt.Errorf("tally: decode manifest: %w", err)
	}
	decoded := Manifest{
		ElectionID: mj.ElectionID,
		PublicKey:  mj.PublicKey,
		KeyID:      mj.KeyID,
		Policy: ballot.Policy{
			Cap:               mj.Cap,
			RequireAllocation: mj.RequireAllocation,
			Candidates:        mj.Candidates,
		},
		RequireSignatures: mj.RequireSignatures,
	}
	if err := decoded.Validate(); err != nil {
		return err
	}
	*m = decoded
	return nil
}
