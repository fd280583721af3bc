package tally

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/google/uuid"
	"github.com/taurusgroup/paillier-tally/internal/hash"
)

// Result is the decrypted outcome of an election. It is never modified after Authority.Decrypt.
type Result struct {
	ElectionID uuid.UUID           `json:"election_id"`
	Voters     int                 `json:"voters"`
	Totals     map[string]*big.Int `json:"totals"`
	// TallyDigest is the digest of the AggregatedTally this result was decrypted from
	TallyDigest []byte `json:"tally_digest"`
}

// Candidates returns the candidate names in sorted order.
func (r *Result) Candidates() []string {
	names := make([]string, 0, len(r.Totals))
	for name := range r.Totals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Winners returns the sorted names of the candidates with the highest total, and that total.
// It returns nil and 0 when there are no candidates.
func (r *Result) Winners() ([]string, *big.Int) {
	var winners []string
	best := new(big.Int)
	for _, name := range r.Candidates() {
		switch r.Totals[name].Cmp(best) {
		case 1:
			best.Set(r.Totals[name])
			winners = []string{name}
		case 0:
			winners = append(winners, name)
		}
	}
	return winners, best
}

// Summary is the payload written when an election is closed, e.g. {"winner": "Alice", "votes": 150}.
type Summary struct {
	Winner string   `json:"winner"`
	Votes  *big.Int `json:"votes"`
	// Tied lists every candidate sharing the highest total, when there is more than one
	Tied []string `json:"tied,omitempty"`
}

// Summary returns the winner of the election. Ties go to the first name in sorted order.
func (r *Result) Summary() Summary {
	winners, votes := r.Winners()
	s := Summary{Votes: votes}
	if len(winners) > 0 {
		s.Winner = winners[0]
	}
	if len(winners) > 1 {
		s.Tied = winners
	}
	return s
}

// Digest commits to the election, the tally it was decrypted from, and every total.
func (r *Result) Digest() ([]byte, error) {
	h := hash.New("paillier-tally/result")
	if err := h.WriteAny(r.ElectionID[:], uint64(r.Voters), r.TallyDigest, uint64(len(r.Totals))); err != nil {
		return nil, err
	}
	for _, name := range r.Candidates() {
		if err := h.WriteAny(name, r.Totals[name]); err != nil {
			return nil, fmt.Errorf("tally: candidate %q: %w", name, err)
		}
	}
	return h.Sum(), nil
}

// Attestation is a signature by the authority over a Result's digest.
// It lets whoever publishes the result check which key produced it.
type Attestation struct {
	// PublicKey is the compressed secp256k1 public key of the signer
	PublicKey []byte `json:"public_key"`
	// Signature is DER encoded
	Signature []byte `json:"signature"`
}

// Sign attests r with priv.
func (r *Result) Sign(priv *secp256k1.PrivateKey) (*Attestation, error) {
	digest, err := r.Digest()
	if err != nil {
		return nil, err
	}
	sig := ecdsa.Sign(priv, digest)
	return &Attestation{
		PublicKey: priv.PubKey().SerializeCompressed(),
		Signature: sig.Serialize(),
	}, nil
}

// Verify checks that att is a valid signature of r.
func (att *Attestation) Verify(r *Result) error {
	pub, err := secp256k1.ParsePubKey(att.PublicKey)
	if err != nil {
		return fmt.Errorf("%w: public key: %w", ErrInvalidAttestation, err)
	}
	sig, err := ecdsa.ParseDERSignature(att.Signature)
	if err != nil {
		return fmt.Errorf("%w: signature: %w", ErrInvalidAttestation, err)
	}
	digest, err := r.Digest()
	if err != nil {
		return err
	}
	if !sig.Verify(digest, pub) {
		return ErrInvalidAttestation
	}
	return nil
}
