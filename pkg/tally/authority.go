package tally

import (
	"bytes"
	"fmt"
	"math/big"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/taurusgroup/paillier-tally/pkg/ballot"
	"github.com/taurusgroup/paillier-tally/pkg/paillier"
)

// Authority holds the secret key of one or more elections.
//
// It exposes no way to decrypt an individual ciphertext: the only input it
// accepts is an AggregatedTally of an election it opened, and each election is
// decrypted at most once.
type Authority struct {
	sk    *paillier.SecretKey
	pk    *paillier.PublicKey
	keyID []byte
	log   zerolog.Logger

	mtx       sync.Mutex
	opened    map[uuid.UUID]*Manifest
	decrypted map[uuid.UUID]struct{}
}

// NewAuthority takes ownership of sk.
func NewAuthority(sk *paillier.SecretKey, log zerolog.Logger) *Authority {
	keyID := sk.PublicKey.Fingerprint()
	return &Authority{
		sk:    sk,
		pk:    sk.PublicKey,
		keyID: keyID,
		log: log.With().
			Str("role", "authority").
			Hex("key", keyID[:8]).
			Logger(),
		opened:    make(map[uuid.UUID]*Manifest),
		decrypted: make(map[uuid.UUID]struct{}),
	}
}

// PublicKey returns the public key voters encrypt under.
func (a *Authority) PublicKey() *paillier.PublicKey {
	return a.pk
}

// NewManifest opens a new election under the authority's key.
func (a *Authority) NewManifest(policy ballot.Policy) *Manifest {
	m := NewManifest(a.pk, policy)
	a.mtx.Lock()
	a.opened[m.ElectionID] = m
	a.mtx.Unlock()
	a.log.Info().Str("election", m.ElectionID.String()).Msg("election created")
	return m
}

// Open registers an election created earlier under the authority's key, typically
// by a previous process which saved m. Only opened elections can be decrypted.
func (a *Authority) Open(m *Manifest) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if !bytes.Equal(m.KeyID, a.keyID) {
		return ErrKeyMismatch
	}
	a.mtx.Lock()
	defer a.mtx.Unlock()
	a.opened[m.ElectionID] = m
	return nil
}

// Decrypt decrypts every candidate's sum and returns the election result.
//
// It fails with ErrKeyMismatch if t was not aggregated under this authority's
// key, with ErrUnknownElection if the election was neither created by
// NewManifest nor registered with Open, with ErrAlreadyDecrypted if a result
// was already produced for the election, and with paillier.ErrKeyDestroyed
// after Destroy.
func (a *Authority) Decrypt(t *AggregatedTally) (*Result, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil", ErrInvalidTally)
	}
	log := a.log.With().Str("election", t.ElectionID.String()).Logger()
	if !bytes.Equal(t.KeyID, a.keyID) {
		log.Warn().Msg("tally under another key")
		return nil, ErrKeyMismatch
	}
	if err := t.Validate(a.pk); err != nil {
		return nil, err
	}
	digest, err := t.Digest()
	if err != nil {
		return nil, err
	}

	a.mtx.Lock()
	defer a.mtx.Unlock()
	m, ok := a.opened[t.ElectionID]
	if !ok {
		log.Warn().Msg("tally for an unknown election refused")
		return nil, ErrUnknownElection
	}
	if len(m.Policy.Candidates) > 0 {
		for name := range t.Totals {
			if !m.Policy.Allows(name) {
				return nil, fmt.Errorf("%w: candidate %q is not in the manifest", ErrInvalidTally, name)
			}
		}
	}
	if _, ok := a.decrypted[t.ElectionID]; ok {
		log.Warn().Msg("second decryption refused")
		return nil, ErrAlreadyDecrypted
	}

	totals := make(map[string]*big.Int, len(t.Totals))
	for _, name := range t.Candidates() {
		v, err := a.sk.Dec(t.Totals[name])
		if err != nil {
			return nil, fmt.Errorf("tally: decrypt candidate %q: %w", name, err)
		}
		totals[name] = v
	}
	a.decrypted[t.ElectionID] = struct{}{}
	log.Info().Int("voters", t.Voters).Int("candidates", len(totals)).Msg("result decrypted")

	return &Result{
		ElectionID:  t.ElectionID,
		Voters:      t.Voters,
		Totals:      totals,
		TallyDigest: digest,
	}, nil
}

// Destroy zeroes the secret key. Later calls to Decrypt fail with paillier.ErrKeyDestroyed.
func (a *Authority) Destroy() {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	a.sk.Destroy()
	a.log.Info().Msg("secret key destroyed")
}
