package arith

import (
	"errors"
	"math/big"
)

var (
	ErrInvalidModulus   = errors.New("arith: modulus must be ≥ 1")
	ErrNegativeExponent = errors.New("arith: exponent must be non-negative")
	ErrNegative         = errors.New("arith: operand must be non-negative")
	// ErrNoInverse is returned when gcd(a, m) ≠ 1.
	// When it shows up during key derivation the key material is malformed.
	ErrNoInverse = errors.New("arith: no modular inverse")
)

var one = big.NewInt(1)

// ModPow returns baseᵉˣᵖ (mod m) in [0, m).
//
// The base may be negative or larger than m, it is reduced first.
func ModPow(base, exp, m *big.Int) (*big.Int, error) {
	if m == nil || m.Sign() <= 0 {
		return nil, ErrInvalidModulus
	}
	if exp.Sign() < 0 {
		return nil, ErrNegativeExponent
	}
	if m.Cmp(one) == 0 {
		return new(big.Int), nil
	}
	b := new(big.Int).Mod(base, m)
	return b.Exp(b, exp, m), nil
}

// ModInverse returns the unique x ∈ [0, m) such that a⋅x ≡ 1 (mod m).
func ModInverse(a, m *big.Int) (*big.Int, error) {
	if m == nil || m.Sign() <= 0 {
		return nil, ErrInvalidModulus
	}
	if m.Cmp(one) == 0 {
		// every a is congruent to 1 = 0 (mod 1), so 0 is the inverse
		return new(big.Int), nil
	}
	x := new(big.Int).ModInverse(new(big.Int).Mod(a, m), m)
	if x == nil {
		return nil, ErrNoInverse
	}
	return x, nil
}

// GCD returns gcd(a, b) for a, b ≥ 0.
//
// gcd(0, 0) is defined to be 0.
func GCD(a, b *big.Int) (*big.Int, error) {
	if a.Sign() < 0 || b.Sign() < 0 {
		return nil, ErrNegative
	}
	x := new(big.Int).Set(a)
	y := new(big.Int).Set(b)
	// Euclid: (x, y) ← (y, x mod y)
	for y.Sign() != 0 {
		x.Mod(x, y)
		x, y = y, x
	}
	return x, nil
}

// LCM returns lcm(a, b) = a⋅b / gcd(a, b) for a, b ≥ 0.
//
// lcm(a, 0) is 0.
func LCM(a, b *big.Int) (*big.Int, error) {
	g, err := GCD(a, b)
	if err != nil {
		return nil, err
	}
	if g.Sign() == 0 {
		return new(big.Int), nil
	}
	l := new(big.Int).Quo(a, g)
	return l.Mul(l, b), nil
}

// IsCoprime returns true if gcd(a, b) = 1.
func IsCoprime(a, b *big.Int) bool {
	g, err := GCD(a, b)
	return err == nil && g.Cmp(one) == 0
}
