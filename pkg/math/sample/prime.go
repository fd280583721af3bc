package sample

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/taurusgroup/paillier-tally/internal/params"
	"github.com/taurusgroup/paillier-tally/pkg/pool"
)

// MinPrimeBits is the smallest prime size Prime accepts.
// Below it, candidates could collide with the sieving primes themselves.
const MinPrimeBits = 32

var (
	ErrPrimeSize          = fmt.Errorf("sample: prime size must be at least %d bits", MinPrimeBits)
	ErrMaxPrimeIterations = fmt.Errorf("sample: failed to generate prime after %d sieve windows", params.MaxPrimeCandidates)
)

// primes generates an array containing all the odd prime numbers < below
func primes(below uint32) []uint32 {
	sieve := make([]bool, below)
	for i := 2; i < len(sieve); i++ {
		sieve[i] = true
	}
	for p := 2; p*p < len(sieve); p++ {
		if !sieve[p] {
			continue
		}
		for i := p * p; i < len(sieve); i += p {
			sieve[i] = false
		}
	}
	nF := float64(below)
	out := make([]uint32, 0, int(nF/math.Log(nF)))
	for p := uint32(3); p < below; p++ {
		if sieve[p] {
			out = append(out, p)
		}
	}
	return out
}

// The number of odd candidates examined after each random starting point
const sieveSize = 1 << 12

// The upper bound on the prime numbers used for sieving
const primeBound = 1 << 16

var thePrimes []uint32
var initPrimes sync.Once

var sievePool = sync.Pool{
	New: func() interface{} {
		sieve := make([]bool, sieveSize)
		return &sieve
	},
}

// tryPrime looks for a prime of exactly the given size in a window starting at a
// random odd base. It returns nil, nil if the window contains no prime.
//
// Slot i of the sieve stands for the candidate base + 2i.
func tryPrime(rand io.Reader, bits int) (*big.Int, error) {
	initPrimes.Do(func() {
		thePrimes = primes(primeBound)
	})

	bytes := make([]byte, (bits+7)/8)
	if err := readBits(rand, bytes); err != nil {
		return nil, err
	}
	// Keep exactly `bits` significant bits, with the top two set so that the
	// product of two such primes has exactly 2⋅bits bits.
	topBits := uint(bits % 8)
	if topBits == 0 {
		topBits = 8
	}
	bytes[0] &= byte(1<<topBits) - 1
	if topBits >= 2 {
		bytes[0] |= 0b11 << (topBits - 2)
	} else {
		bytes[0] |= 1
		bytes[1] |= 0x80
	}
	bytes[len(bytes)-1] |= 1
	base := new(big.Int).SetBytes(bytes)

	sievePtr := sievePool.Get().(*[]bool)
	sieve := *sievePtr
	defer sievePool.Put(sievePtr)
	for i := range sieve {
		sieve[i] = true
	}

	remainder := new(big.Int)
	for _, prime := range thePrimes {
		remainder.SetUint64(uint64(prime))
		remainder.Mod(base, remainder)
		r := int(remainder.Uint64())
		pr := int(prime)
		// first i ≥ 0 with base + 2i ≡ 0 (mod prime):
		// 2i ≡ -r, and since prime is odd, i ≡ -r⋅2⁻¹ = (prime - r)⋅(prime + 1)/2.
		first := ((pr - r) % pr) * ((pr + 1) / 2) % pr
		for i := first; i < len(sieve); i += pr {
			sieve[i] = false
		}
	}

	p := new(big.Int)
	delta := new(big.Int)
	for i := 0; i < len(sieve); i++ {
		if !sieve[i] {
			continue
		}
		delta.SetUint64(uint64(2 * i))
		p.Add(base, delta)
		if p.BitLen() > bits {
			return nil, nil
		}
		if p.ProbablyPrime(params.PrimalityRounds) {
			return p, nil
		}
	}
	return nil, nil
}

// Prime returns a random probable prime of exactly `bits` bits whose two most
// significant bits are set.
//
// Every candidate goes through params.PrimalityRounds rounds of Miller-Rabin.
func Prime(rand io.Reader, bits int) (*big.Int, error) {
	if bits < MinPrimeBits {
		return nil, ErrPrimeSize
	}
	for i := 0; i < params.MaxPrimeCandidates; i++ {
		p, err := tryPrime(rand, bits)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
	}
	return nil, ErrMaxPrimeIterations
}

// PrimePair returns two random primes of `bits` bits each, searched for in
// parallel on pl. A nil pool searches on the calling goroutine.
//
// The primes are not guaranteed to be distinct; callers check this.
func PrimePair(rand io.Reader, pl *pool.Pool, bits int) (p, q *big.Int, err error) {
	if bits < MinPrimeBits {
		return nil, nil, ErrPrimeSize
	}
	reader := pool.NewLockedReader(rand)
	var windows int64
	results, err := pl.Search(2, func() (interface{}, error) {
		if atomic.AddInt64(&windows, 1) > 2*params.MaxPrimeCandidates {
			return nil, ErrMaxPrimeIterations
		}
		candidate, err := tryPrime(reader, bits)
		// You have to do this, because of how Go handles nil.
		if err != nil || candidate == nil {
			return nil, err
		}
		return candidate, nil
	})
	if err != nil {
		return nil, nil, err
	}
	p, okP := results[0].(*big.Int)
	q, okQ := results[1].(*big.Int)
	if !okP || !okQ {
		return nil, nil, errors.New("sample: prime search returned unexpected values")
	}
	return p, q, nil
}
