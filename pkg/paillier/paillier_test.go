package paillier

import (
	"crypto/rand"
	"math/big"
	mrand "math/rand"
	"sync"
	"testing"

	"github.com/cronokirby/saferith"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/paillier-tally/internal/params"
	"github.com/taurusgroup/paillier-tally/internal/test"
	"github.com/taurusgroup/paillier-tally/pkg/math/sample"
	"github.com/taurusgroup/paillier-tally/pkg/pool"
)

var (
	keyOnce   sync.Once
	cachedPk  *PublicKey
	cachedSk  *SecretKey
	cachedErr error
)

// testKey returns a key built from fixed primes, shared by every test that does not destroy it.
func testKey(t testing.TB) (*PublicKey, *SecretKey) {
	keyOnce.Do(func() {
		p, q := test.PaillierPrimes()
		cachedSk, cachedErr = NewSecretKeyFromPrimes(p, q)
		if cachedErr == nil {
			cachedPk = cachedSk.PublicKey
		}
	})
	require.NoError(t, cachedErr)
	return cachedPk, cachedSk
}

// freshKey returns a key which the caller may destroy.
func freshKey(t testing.TB) *SecretKey {
	p, q := test.PaillierPrimes()
	sk, err := NewSecretKeyFromPrimes(p, q)
	require.NoError(t, err)
	return sk
}

func TestPaillier_RoundTrip(t *testing.T) {
	pk, sk := testKey(t)
	nMinus1 := new(big.Int).Sub(pk.N(), big.NewInt(1))
	r := mrand.New(mrand.NewSource(1))

	messages := []*big.Int{big.NewInt(0), big.NewInt(1), big.NewInt(42), nMinus1}
	for i := 0; i < 5; i++ {
		messages = append(messages, new(big.Int).Rand(r, pk.N()))
	}
	for _, m := range messages {
		ct, err := pk.Enc(rand.Reader, m)
		require.NoError(t, err)
		res, err := sk.Dec(ct)
		require.NoError(t, err)
		assert.Equal(t, 0, m.Cmp(res), "Dec(Enc(%v)) should be %v, got %v", m, m, res)
	}
}

func TestPaillier_Homomorphic(t *testing.T) {
	pk, sk := testKey(t)
	r := mrand.New(mrand.NewSource(2))

	for i := 0; i < 5; i++ {
		a := new(big.Int).Rand(r, pk.N())
		b := new(big.Int).Rand(r, pk.N())
		ctA, err := pk.Enc(rand.Reader, a)
		require.NoError(t, err)
		ctB, err := pk.Enc(rand.Reader, b)
		require.NoError(t, err)

		sum, err := Combine(pk, ctA, ctB)
		require.NoError(t, err)
		res, err := sk.Dec(sum)
		require.NoError(t, err)

		expected := new(big.Int).Add(a, b)
		expected.Mod(expected, pk.N())
		assert.Equal(t, 0, expected.Cmp(res), "sum should wrap mod N")

		// Combine is order independent and leaves its inputs alone
		sum2, err := Combine(pk, ctB, ctA)
		require.NoError(t, err)
		assert.True(t, sum.Equal(sum2))
		resA, err := sk.Dec(ctA)
		require.NoError(t, err)
		assert.Equal(t, 0, a.Cmp(resA))
	}
}

func TestPaillier_CombineOrder(t *testing.T) {
	pk, sk := testKey(t)
	ms := []*big.Int{big.NewInt(10), big.NewInt(15), big.NewInt(5)}
	cts := make([]*Ciphertext, len(ms))
	for i, m := range ms {
		var err error
		cts[i], err = pk.Enc(rand.Reader, m)
		require.NoError(t, err)
	}

	orders := [][3]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	var first *Ciphertext
	for _, o := range orders {
		sum, err := Combine(pk, cts[o[0]], cts[o[1]], cts[o[2]])
		require.NoError(t, err)
		if first == nil {
			first = sum
			continue
		}
		assert.True(t, first.Equal(sum), "order %v", o)
	}
	res, err := sk.Dec(first)
	require.NoError(t, err)
	assert.Equal(t, int64(30), res.Int64())
}

func TestPaillier_Add(t *testing.T) {
	pk, sk := testKey(t)
	acc, err := Combine(pk)
	require.NoError(t, err)
	for i := int64(1); i <= 10; i++ {
		ct, err := pk.Enc(rand.Reader, big.NewInt(i))
		require.NoError(t, err)
		acc.Add(pk, ct)
	}
	res, err := sk.Dec(acc)
	require.NoError(t, err)
	assert.Equal(t, int64(55), res.Int64())
}

func TestPaillier_EmptyCombine(t *testing.T) {
	pk, sk := testKey(t)
	ct, err := Combine(pk)
	require.NoError(t, err)
	assert.Equal(t, "1", ct.String(), "empty combination should be the identity")
	res, err := sk.Dec(ct)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Sign())
}

func TestPaillier_Probabilistic(t *testing.T) {
	pk, sk := testKey(t)
	m := big.NewInt(7)
	ct1, err := pk.Enc(rand.Reader, m)
	require.NoError(t, err)
	ct2, err := pk.Enc(rand.Reader, m)
	require.NoError(t, err)
	assert.False(t, ct1.Equal(ct2), "encryptions of the same message should differ")

	for _, ct := range []*Ciphertext{ct1, ct2} {
		res, err := sk.Dec(ct)
		require.NoError(t, err)
		assert.Equal(t, 0, m.Cmp(res))
	}
}

func TestPaillier_Deterministic(t *testing.T) {
	pk, _ := testKey(t)
	m := big.NewInt(30)
	ct1, err := pk.Enc(sample.NewSeededReader([]byte("ballot")), m)
	require.NoError(t, err)
	ct2, err := pk.Enc(sample.NewSeededReader([]byte("ballot")), m)
	require.NoError(t, err)
	assert.True(t, ct1.Equal(ct2), "same seed should give the same ciphertext")

	ct3, err := pk.EncWithNonce(m, big.NewInt(3))
	require.NoError(t, err)
	ct4, err := pk.EncWithNonce(m, big.NewInt(3))
	require.NoError(t, err)
	assert.True(t, ct3.Equal(ct4))

	_, err = pk.EncWithNonce(m, big.NewInt(0))
	assert.Error(t, err)
	_, err = pk.EncWithNonce(m, pk.N())
	assert.Error(t, err)
}

func TestPaillier_PlaintextRange(t *testing.T) {
	pk, _ := testKey(t)
	for _, m := range []*big.Int{nil, big.NewInt(-1), pk.N(), new(big.Int).Add(pk.N(), big.NewInt(5))} {
		_, err := pk.Enc(rand.Reader, m)
		assert.ErrorIs(t, err, ErrPlaintextRange, "m = %v", m)
	}
}

func TestPaillier_CiphertextRange(t *testing.T) {
	pk, sk := testKey(t)
	p, _ := test.PaillierPrimes()

	invalid := map[string]*Ciphertext{
		"nil":         nil,
		"zero":        {c: natFromInt(big.NewInt(0))},
		"N²":          {c: natFromInt(pk.N2())},
		"above N²":    {c: natFromInt(new(big.Int).Add(pk.N2(), big.NewInt(1)))},
		"multiple p":  {c: natFromInt(p)},
		"multiple N":  {c: natFromInt(pk.N())},
		"uninitiated": {},
	}
	for name, ct := range invalid {
		_, err := sk.Dec(ct)
		assert.ErrorIs(t, err, ErrCiphertextRange, name)

		valid, err := pk.Enc(rand.Reader, big.NewInt(1))
		require.NoError(t, err)
		_, err = Combine(pk, valid, ct)
		assert.ErrorIs(t, err, ErrCiphertextRange, name)
	}

	_, err := CiphertextFromInt(pk, big.NewInt(0))
	assert.ErrorIs(t, err, ErrCiphertextRange)
	_, err = CiphertextFromInt(pk, pk.N2())
	assert.ErrorIs(t, err, ErrCiphertextRange)
	ct, err := CiphertextFromInt(pk, big.NewInt(1))
	require.NoError(t, err)
	res, err := sk.Dec(ct)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Sign())
}

func TestPublicKey_Fingerprint(t *testing.T) {
	pk, _ := testKey(t)
	// n + 2 is odd and has the same size, which is all NewPublicKey checks
	other, err := NewPublicKey(new(big.Int).Add(pk.N(), big.NewInt(2)))
	require.NoError(t, err)
	assert.False(t, pk.Equal(other))
	assert.NotEqual(t, pk.Fingerprint(), other.Fingerprint())
	assert.Len(t, pk.Fingerprint(), params.DigestBytes)
}

func natFromInt(x *big.Int) *saferith.Nat {
	return new(saferith.Nat).SetBig(x, x.BitLen())
}

func TestNewPublicKey(t *testing.T) {
	_, err := NewPublicKey(nil)
	assert.ErrorIs(t, err, ErrInvalidPublicKey)
	_, err = NewPublicKey(new(big.Int).Lsh(big.NewInt(1), params.MinBitsPaillier))
	assert.ErrorIs(t, err, ErrInvalidPublicKey, "even modulus")
	small := new(big.Int).Lsh(big.NewInt(1), 1023)
	small.Add(small, big.NewInt(1))
	_, err = NewPublicKey(small)
	assert.ErrorIs(t, err, ErrInsecureParameter)

	pk, _ := testKey(t)
	pk2, err := NewPublicKey(pk.N())
	require.NoError(t, err)
	assert.True(t, pk.Equal(pk2))
	assert.Equal(t, pk.Fingerprint(), pk2.Fingerprint())
	assert.Equal(t, 2048, pk2.BitLen())
	assert.Equal(t, 0, new(big.Int).Add(pk.N(), big.NewInt(1)).Cmp(pk2.G()))
}

func TestNewSecretKeyFromPrimes(t *testing.T) {
	p, q := test.PaillierPrimes()

	_, err := NewSecretKeyFromPrimes(p, p)
	assert.ErrorIs(t, err, ErrUnsuitablePrimes)

	_, err = NewSecretKeyFromPrimes(new(big.Int).Add(p, big.NewInt(2)), q)
	assert.ErrorIs(t, err, ErrNotPrime)

	_, err = NewSecretKeyFromPrimes(nil, q)
	assert.ErrorIs(t, err, ErrNotPrime)

	_, err = NewSecretKeyFromPrimes(big.NewInt(1000003), big.NewInt(1000033))
	assert.ErrorIs(t, err, ErrInsecureParameter)

	sk, err := NewSecretKeyFromPrimes(q, p)
	require.NoError(t, err)
	assert.Equal(t, 0, new(big.Int).Mul(p, q).Cmp(sk.N()))
}

func TestKeyGen_InsecureParameter(t *testing.T) {
	for _, bits := range []int{0, 512, 1024, params.MinBitsPaillier - 2, params.MinBitsPaillier + 1} {
		_, _, err := KeyGen(rand.Reader, nil, bits)
		assert.ErrorIs(t, err, ErrInsecureParameter, "bits = %d", bits)
	}
}

func TestKeyGen(t *testing.T) {
	if testing.Short() {
		t.Skip("generating a 2048-bit key is slow")
	}
	pl := pool.NewPool(0)
	defer pl.TearDown()

	pk, sk, err := KeyGen(rand.Reader, pl, params.MinBitsPaillier)
	require.NoError(t, err)
	assert.Equal(t, params.MinBitsPaillier, pk.BitLen())
	assert.True(t, sk.P().ProbablyPrime(20))
	assert.True(t, sk.Q().ProbablyPrime(20))

	ct, err := pk.Enc(rand.Reader, big.NewInt(123))
	require.NoError(t, err)
	res, err := sk.Dec(ct)
	require.NoError(t, err)
	assert.Equal(t, int64(123), res.Int64())
}

func TestSecretKey_Destroy(t *testing.T) {
	sk := freshKey(t)
	pk := sk.PublicKey
	ct, err := pk.Enc(rand.Reader, big.NewInt(9))
	require.NoError(t, err)

	assert.False(t, sk.Destroyed())
	sk.Destroy()
	sk.Destroy()
	assert.True(t, sk.Destroyed())

	_, err = sk.Dec(ct)
	assert.ErrorIs(t, err, ErrKeyDestroyed)
	assert.Nil(t, sk.P())
	assert.Nil(t, sk.Q())
	_, err = sk.MarshalBinary()
	assert.ErrorIs(t, err, ErrKeyDestroyed)

	// encryption only needs the public part
	_, err = pk.Enc(rand.Reader, big.NewInt(1))
	assert.NoError(t, err)
}

func BenchmarkEnc(b *testing.B) {
	pk, _ := testKey(b)
	m := big.NewInt(100)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = pk.Enc(rand.Reader, m)
	}
}

func BenchmarkDec(b *testing.B) {
	pk, sk := testKey(b)
	ct, _ := pk.Enc(rand.Reader, big.NewInt(100))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = sk.Dec(ct)
	}
}
