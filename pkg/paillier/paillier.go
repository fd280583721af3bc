// Package paillier implements the Paillier cryptosystem with g = N+1.
//
// Multiplying ciphertexts mod N² adds the underlying plaintexts mod N, which is
// what lets many encrypted ballots be summed without decrypting any of them.
package paillier

import (
	"errors"
	"fmt"
	"io"

	"github.com/taurusgroup/paillier-tally/internal/params"
	"github.com/taurusgroup/paillier-tally/pkg/math/sample"
	"github.com/taurusgroup/paillier-tally/pkg/pool"
)

var (
	// ErrInsecureParameter is returned for key sizes below params.MinBitsPaillier.
	ErrInsecureParameter = errors.New("paillier: insecure parameter")
	// ErrInvalidPublicKey is returned for a malformed modulus or generator.
	ErrInvalidPublicKey = errors.New("paillier: invalid public key")
	// ErrUnsuitablePrimes is returned when p = q or gcd(pq, (p-1)(q-1)) ≠ 1.
	ErrUnsuitablePrimes = errors.New("paillier: unsuitable prime factors")
	// ErrNotPrime is returned when loading a key whose factors are not prime.
	ErrNotPrime = errors.New("paillier: factor is not prime")
	// ErrKeyGeneration is returned when key generation gives up. Retrying with fresh randomness may succeed.
	ErrKeyGeneration = errors.New("paillier: key generation failed")
	// ErrPlaintextRange is returned when encrypting m ∉ [0, N).
	ErrPlaintextRange = errors.New("paillier: plaintext out of range")
	// ErrCiphertextRange is returned for ciphertexts outside ℤ*_{N²}.
	ErrCiphertextRange = errors.New("paillier: ciphertext out of range")
	// ErrKeyDestroyed is returned when using a SecretKey after Destroy.
	ErrKeyDestroyed = errors.New("paillier: secret key destroyed")
)

// KeyGen generates a new PublicKey and its associated SecretKey, with a modulus of exactly bits bits.
//
// The two primes are searched for in parallel on pl, which may be nil.
// Drawing unsuitable primes is retried params.MaxKeyGenAttempts times.
func KeyGen(rand io.Reader, pl *pool.Pool, bits int) (*PublicKey, *SecretKey, error) {
	if bits < params.MinBitsPaillier {
		return nil, nil, fmt.Errorf("%w: modulus of %d bits, need at least %d", ErrInsecureParameter, bits, params.MinBitsPaillier)
	}
	if bits%2 != 0 {
		return nil, nil, fmt.Errorf("%w: modulus size %d must be even", ErrInsecureParameter, bits)
	}
	for attempt := 0; attempt < params.MaxKeyGenAttempts; attempt++ {
		p, q, err := sample.PrimePair(rand, pl, bits/2)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrKeyGeneration, err)
		}
		sk, err := newSecretKey(p, q)
		if errors.Is(err, ErrUnsuitablePrimes) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		return sk.PublicKey, sk, nil
	}
	return nil, nil, fmt.Errorf("%w: no suitable primes after %d attempts", ErrKeyGeneration, params.MaxKeyGenAttempts)
}
