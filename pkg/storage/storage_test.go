package storage

import (
	"context"
	"crypto/rand"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/paillier-tally/internal/test"
	"github.com/taurusgroup/paillier-tally/pkg/ballot"
	"github.com/taurusgroup/paillier-tally/pkg/paillier"
	"github.com/taurusgroup/paillier-tally/pkg/tally"
)

func newManifest(t *testing.T) (*tally.Manifest, *paillier.SecretKey) {
	p, q := test.PaillierPrimes()
	sk, err := paillier.NewSecretKeyFromPrimes(p, q)
	require.NoError(t, err)
	return tally.NewManifest(sk.PublicKey, ballot.Policy{Cap: 100, Candidates: []string{"A", "B"}}), sk
}

func newSubmission(t *testing.T, m *tally.Manifest, voter common.Address, raw string) *tally.Submission {
	eb, err := tally.PrepareBallot(rand.Reader, m, []byte(raw), nil)
	require.NoError(t, err)
	return tally.NewSubmission(m, voter, eb)
}

func TestStore(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "election"), zerolog.Nop())
	require.NoError(t, err)

	m, sk := newManifest(t)
	require.NoError(t, s.PutManifest(m))
	m2, err := s.Manifest()
	require.NoError(t, err)
	assert.Equal(t, m.ElectionID, m2.ElectionID)

	voters := []common.Address{
		common.HexToAddress("0x00000000000000000000000000000000000000b2"),
		common.HexToAddress("0x00000000000000000000000000000000000000a1"),
	}
	receipts := make([]uuid.UUID, len(voters))
	for i, v := range voters {
		receipts[i], err = s.Put(newSubmission(t, m, v, `{"A": 10, "B": 5}`))
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, receipts[i])
	}
	assert.NotEqual(t, receipts[0], receipts[1])

	_, err = s.Put(newSubmission(t, m, voters[0], `{"A": 1}`))
	assert.ErrorIs(t, err, ErrExists)

	records, err := s.List()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, voters[1], records[0].Submission.Voter, "records should be sorted by address")
	assert.Equal(t, receipts[1], records[0].Receipt)

	rec, err := s.Get(voters[0].Hex())
	require.NoError(t, err)
	assert.Equal(t, receipts[0], rec.Receipt)
	rec, err = s.Get("0x00000000000000000000000000000000000000B2")
	require.NoError(t, err, "lookups should not depend on case")
	assert.Equal(t, receipts[0], rec.Receipt)

	_, err = s.Get("0x00000000000000000000000000000000000000c3")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get("not an address")
	assert.ErrorIs(t, err, ErrInvalidAddress)
	_, err = s.Put(newSubmission(t, m, common.Address{}, `{"A": 1}`))
	assert.ErrorIs(t, err, ErrInvalidAddress)

	// stored ciphertexts still decrypt
	subs, err := s.Submissions()
	require.NoError(t, err)
	agg, err := tally.NewAggregator(m2, zerolog.Nop())
	require.NoError(t, err)
	rejections, err := agg.Ingest(context.Background(), subs, 0)
	require.NoError(t, err)
	assert.Empty(t, rejections)
	agg.Close()
	tl, err := agg.Tally()
	require.NoError(t, err)
	require.NoError(t, s.PutTally(tl))
	tl, err = s.Tally()
	require.NoError(t, err)
	require.NoError(t, tl.Validate(m.PublicKey))

	auth := tally.NewAuthority(sk, zerolog.Nop())
	require.NoError(t, auth.Open(m2))
	res, err := auth.Decrypt(tl)
	require.NoError(t, err)
	assert.Equal(t, 0, big.NewInt(20).Cmp(res.Totals["A"]))
	assert.Equal(t, 0, big.NewInt(10).Cmp(res.Totals["B"]))

	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	att, err := res.Sign(priv)
	require.NoError(t, err)
	require.NoError(t, s.PutResult(&PublishedResult{Result: res, Attestation: att}))
	assert.ErrorIs(t, s.PutResult(&PublishedResult{Result: res, Attestation: att}), ErrExists)

	published, err := s.Result()
	require.NoError(t, err)
	require.NoError(t, published.Attestation.Verify(published.Result), "the attestation should survive a round trip")
}

func TestStore_Empty(t *testing.T) {
	s, err := Open(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	records, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = s.Manifest()
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Tally()
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Result()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SkipsForeignFiles(t *testing.T) {
	s, err := Open(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), submissionsDir, "notes.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), submissionsDir, "README.json"), []byte("{}"), 0o644))

	records, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), submissionsDir, common.HexToAddress("0x01").Hex()+".json"), []byte("{"), 0o644))
	_, err = s.List()
	assert.Error(t, err)
}
