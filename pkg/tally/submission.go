package tally

import (
	"crypto/ecdsa"
	"fmt"
	"io"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/taurusgroup/paillier-tally/internal/hash"
	"github.com/taurusgroup/paillier-tally/pkg/ballot"
	"github.com/taurusgroup/paillier-tally/pkg/paillier"
	"github.com/taurusgroup/paillier-tally/pkg/pool"
)

// EncryptedBallot maps each candidate to the encryption of the points a voter gave them.
// Its JSON form is {"Alice": "<decimal>", ...}.
type EncryptedBallot map[string]*paillier.Ciphertext

// Candidates returns the candidate names in sorted order.
func (b EncryptedBallot) Candidates() []string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EncryptBallot encrypts every allocation of b under the manifest's key.
//
// When the manifest lists candidates, the ones missing from b are encrypted as 0,
// so that every ballot of an election has the same shape.
// Encryptions run in parallel on pl, which may be nil.
func EncryptBallot(rand io.Reader, m *Manifest, b ballot.Ballot, pl *pool.Pool) (EncryptedBallot, error) {
	values := make(map[string]uint64, len(b))
	for name, v := range b {
		values[name] = v
	}
	if len(m.Policy.Candidates) > 0 {
		known := make(map[string]struct{}, len(m.Policy.Candidates))
		for _, c := range m.Policy.Candidates {
			known[c] = struct{}{}
			if _, ok := values[c]; !ok {
				values[c] = 0
			}
		}
		for name := range b {
			if _, ok := known[name]; !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownCandidate, name)
			}
		}
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	r := pool.NewLockedReader(rand)
	results, err := pl.Parallelize(len(names), func(i int) (interface{}, error) {
		v := new(big.Int).SetUint64(values[names[i]])
		return m.PublicKey.Enc(r, v)
	})
	if err != nil {
		return nil, fmt.Errorf("tally: encrypt ballot: %w", err)
	}

	eb := make(EncryptedBallot, len(names))
	for i, name := range names {
		eb[name] = results[i].(*paillier.Ciphertext)
	}
	return eb, nil
}

// PrepareBallot validates an untrusted JSON ballot against the manifest's policy and encrypts it.
func PrepareBallot(rand io.Reader, m *Manifest, raw []byte, pl *pool.Pool) (EncryptedBallot, error) {
	b, err := ballot.Validate(raw, m.Policy)
	if err != nil {
		return nil, err
	}
	return EncryptBallot(rand, m, b, pl)
}

// Submission is what a voter hands over to the Aggregator, usually through external storage.
type Submission struct {
	ElectionID uuid.UUID       `json:"election_id"`
	Voter      common.Address  `json:"voter"`
	KeyID      []byte          `json:"key_id"`
	Ballot     EncryptedBallot `json:"ballot"`
	// Signature is an optional secp256k1 signature by the voter's address over Digest.
	Signature []byte `json:"signature,omitempty"`
}

// NewSubmission wraps an encrypted ballot for the election described by m.
func NewSubmission(m *Manifest, voter common.Address, b EncryptedBallot) *Submission {
	return &Submission{
		ElectionID: m.ElectionID,
		Voter:      voter,
		KeyID:      m.KeyID,
		Ballot:     b,
	}
}

// Digest binds the election, the voter, the key and every ciphertext of the submission.
func (s *Submission) Digest() ([]byte, error) {
	h := hash.New("paillier-tally/submission")
	if err := h.WriteAny(s.ElectionID[:], s.Voter.Bytes(), s.KeyID, uint64(len(s.Ballot))); err != nil {
		return nil, err
	}
	for _, name := range s.Ballot.Candidates() {
		if err := h.WriteAny(name, s.Ballot[name]); err != nil {
			return nil, fmt.Errorf("tally: candidate %q: %w", name, err)
		}
	}
	return h.Sum(), nil
}

// Sign sets the signature of s. The key must be the one controlling s.Voter.
func (s *Submission) Sign(priv *ecdsa.PrivateKey) error {
	if crypto.PubkeyToAddress(priv.PublicKey) != s.Voter {
		return fmt.Errorf("%w: key does not control %s", ErrInvalidSignature, s.Voter.Hex())
	}
	digest, err := s.Digest()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(digest, priv)
	if err != nil {
		return fmt.Errorf("tally: sign submission: %w", err)
	}
	s.Signature = sig
	return nil
}

// VerifySignature checks that Signature was produced by the key controlling Voter.
func (s *Submission) VerifySignature() error {
	if len(s.Signature) != crypto.SignatureLength {
		return fmt.Errorf("%w: missing or malformed", ErrInvalidSignature)
	}
	digest, err := s.Digest()
	if err != nil {
		return err
	}
	pub, err := crypto.SigToPub(digest, s.Signature)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if crypto.PubkeyToAddress(*pub) != s.Voter {
		return fmt.Errorf("%w: signed by %s", ErrInvalidSignature, crypto.PubkeyToAddress(*pub).Hex())
	}
	return nil
}
