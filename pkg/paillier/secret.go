package paillier

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/paillier-tally/pkg/math/arith"
)

// SecretKey is the secret key corresponding to a Public Paillier Key.
//
// A public key is a modulus N, and the secret key contains the information
// needed to factor N into two primes, P and Q. This allows us to decrypt
// values encrypted using this modulus.
//
// Decryption uses λ = lcm(p-1, q-1) and μ = L(gᵝ mod N²)⁻¹ mod N where β = λ and
// L(x) = (x-1)/N.
type SecretKey struct {
	*PublicKey

	mtx       sync.RWMutex
	destroyed bool
	// crt = N² together with the factors p², q²
	crt *arith.Modulus
	// p, q such that N = p⋅q
	p, q *saferith.Nat
	// lambda = λ = lcm(p-1, q-1)
	lambda *saferith.Nat
	// mu = μ = L(g^λ mod N²)⁻¹ mod N
	mu *saferith.Nat
}

// NewSecretKeyFromPrimes derives a SecretKey from its two prime factors.
//
// It is meant for loading persisted keys, so the factors are checked:
// both must be prime, distinct, with gcd(pq, (p-1)(q-1)) = 1, and N must be
// large enough.
func NewSecretKeyFromPrimes(p, q *big.Int) (*SecretKey, error) {
	if p == nil || q == nil || p.Sign() <= 0 || q.Sign() <= 0 {
		return nil, fmt.Errorf("%w: factor is nil or not positive", ErrNotPrime)
	}
	// Baillie-PSW only, a malicious file is not the threat here.
	if !p.ProbablyPrime(0) || !q.ProbablyPrime(0) {
		return nil, ErrNotPrime
	}
	return newSecretKey(p, q)
}

func newSecretKey(p, q *big.Int) (*SecretKey, error) {
	if p.Cmp(q) == 0 {
		return nil, fmt.Errorf("%w: p = q", ErrUnsuitablePrimes)
	}
	n := new(big.Int).Mul(p, q)
	if err := ValidateN(n); err != nil {
		return nil, err
	}

	pMinus1 := new(big.Int).Sub(p, big.NewInt(1))
	qMinus1 := new(big.Int).Sub(q, big.NewInt(1))
	phi := new(big.Int).Mul(pMinus1, qMinus1)
	if !arith.IsCoprime(n, phi) {
		return nil, fmt.Errorf("%w: gcd(N, ϕ(N)) ≠ 1", ErrUnsuitablePrimes)
	}
	lambda, err := arith.LCM(pMinus1, qMinus1)
	if err != nil {
		return nil, fmt.Errorf("paillier: λ: %w", err)
	}

	pNat := new(saferith.Nat).SetBig(p, p.BitLen())
	qNat := new(saferith.Nat).SetBig(q, q.BitLen())
	pSquared := new(saferith.Nat).Mul(pNat, pNat, -1)
	qSquared := new(saferith.Nat).Mul(qNat, qNat, -1)
	nSquared := arith.ModulusFromFactors(pSquared, qSquared)
	// the shared public key never holds the factorization
	pk := newPublicKey(
		arith.ModulusFromN(saferith.ModulusFromNat(new(saferith.Nat).Mul(pNat, qNat, -1))),
		arith.ModulusFromN(nSquared.Modulus),
	)

	lambdaNat := new(saferith.Nat).SetBig(lambda, lambda.BitLen())

	// μ = L(g^λ mod N²)⁻¹ mod N
	x := nSquared.Exp(pk.nPlusOne, lambdaNat)
	l := pk.l(x).Big()
	mu, err := arith.ModInverse(l, n)
	if err != nil {
		return nil, fmt.Errorf("paillier: μ: %w", err)
	}

	return &SecretKey{
		PublicKey: pk,
		crt:       nSquared,
		p:         pNat,
		q:         qNat,
		lambda:    lambdaNat,
		mu:        new(saferith.Nat).SetBig(mu, n.BitLen()),
	}, nil
}

// l computes L(x) = (x-1)/N, for x ≡ 1 (mod N).
func (pk *PublicKey) l(x *saferith.Nat) *saferith.Nat {
	oneNat := new(saferith.Nat).SetUint64(1)
	r := new(saferith.Nat).Sub(x, oneNat, -1)
	return r.Div(r, pk.n.Modulus, -1)
}

// P returns the first of the two factors composing this key.
func (sk *SecretKey) P() *big.Int {
	sk.mtx.RLock()
	defer sk.mtx.RUnlock()
	if sk.destroyed {
		return nil
	}
	return sk.p.Big()
}

// Q returns the second of the two factors composing this key.
func (sk *SecretKey) Q() *big.Int {
	sk.mtx.RLock()
	defer sk.mtx.RUnlock()
	if sk.destroyed {
		return nil
	}
	return sk.q.Big()
}

// Dec decrypts ct and returns the plaintext m ∈ [0, N).
// It returns ErrCiphertextRange if gcd(c, N²) != 1 or if c is not in [1, N²-1].
//
// m = L(c^λ mod N²)⋅μ (mod N)
func (sk *SecretKey) Dec(ct *Ciphertext) (*big.Int, error) {
	sk.mtx.RLock()
	defer sk.mtx.RUnlock()
	if sk.destroyed {
		return nil, ErrKeyDestroyed
	}
	if err := sk.PublicKey.ValidateCiphertexts(ct); err != nil {
		return nil, err
	}

	// r = c^λ (mod N²)
	result := sk.crt.Exp(ct.c, sk.lambda)
	// r = (c^λ - 1)/N
	result = sk.l(result)
	// r = (c^λ - 1)/N ⋅ μ (mod N)
	result.ModMul(result, sk.mu, sk.n.Modulus)
	return result.Big(), nil
}

// Destroy overwrites the secret values with zero and drops them.
// Any later call to Dec fails with ErrKeyDestroyed.
// The embedded PublicKey stays usable.
func (sk *SecretKey) Destroy() {
	sk.mtx.Lock()
	defer sk.mtx.Unlock()
	if sk.destroyed {
		return
	}
	for _, x := range []*saferith.Nat{sk.p, sk.q, sk.lambda, sk.mu} {
		x.SetUint64(0)
	}
	sk.p, sk.q, sk.lambda, sk.mu = nil, nil, nil, nil
	sk.crt.Forget()
	sk.crt = nil
	sk.destroyed = true
}

// Destroyed reports whether Destroy was called.
func (sk *SecretKey) Destroyed() bool {
	sk.mtx.RLock()
	defer sk.mtx.RUnlock()
	return sk.destroyed
}
