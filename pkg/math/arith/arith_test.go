package arith

import (
	"math/big"
	mrand "math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModPow(t *testing.T) {
	tests := []struct {
		base, exp, m, want int64
	}{
		{4, 13, 497, 445},
		{2, 10, 1000, 24},
		{-2, 3, 5, 2},
		{7, 0, 13, 1},
		{0, 0, 13, 1},
		{12345, 678, 1, 0},
		{3, 200, 2, 1},
	}
	for _, tt := range tests {
		got, err := ModPow(big.NewInt(tt.base), big.NewInt(tt.exp), big.NewInt(tt.m))
		require.NoError(t, err)
		assert.Equal(t, 0, got.Cmp(big.NewInt(tt.want)), "%d^%d mod %d", tt.base, tt.exp, tt.m)
	}

	_, err := ModPow(big.NewInt(2), big.NewInt(3), big.NewInt(0))
	assert.ErrorIs(t, err, ErrInvalidModulus)
	_, err = ModPow(big.NewInt(2), big.NewInt(3), big.NewInt(-7))
	assert.ErrorIs(t, err, ErrInvalidModulus)
	_, err = ModPow(big.NewInt(2), big.NewInt(-3), big.NewInt(7))
	assert.ErrorIs(t, err, ErrNegativeExponent)
}

func TestModPow_Large(t *testing.T) {
	r := mrand.New(mrand.NewSource(0))
	m := new(big.Int).Rand(r, new(big.Int).Lsh(one, 3000))
	m.SetBit(m, 0, 1)
	x := new(big.Int).Rand(r, m)
	e := new(big.Int).Rand(r, m)

	got, err := ModPow(x, e, m)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Cmp(new(big.Int).Exp(x, e, m)))

	// x^(e+f) = x^e ⋅ x^f
	f := big.NewInt(12345)
	xf, err := ModPow(x, f, m)
	require.NoError(t, err)
	xef, err := ModPow(x, new(big.Int).Add(e, f), m)
	require.NoError(t, err)
	prod := new(big.Int).Mul(got, xf)
	prod.Mod(prod, m)
	assert.Equal(t, 0, prod.Cmp(xef))
}

func TestModInverse(t *testing.T) {
	x, err := ModInverse(big.NewInt(3), big.NewInt(11))
	require.NoError(t, err)
	assert.Equal(t, int64(4), x.Int64())

	x, err = ModInverse(big.NewInt(-3), big.NewInt(11))
	require.NoError(t, err)
	assert.Equal(t, int64(7), x.Int64())

	_, err = ModInverse(big.NewInt(2), big.NewInt(4))
	assert.ErrorIs(t, err, ErrNoInverse)
	_, err = ModInverse(big.NewInt(0), big.NewInt(7))
	assert.ErrorIs(t, err, ErrNoInverse)
	_, err = ModInverse(big.NewInt(3), big.NewInt(0))
	assert.ErrorIs(t, err, ErrInvalidModulus)

	r := mrand.New(mrand.NewSource(1))
	m := new(big.Int).Rand(r, new(big.Int).Lsh(one, 1024))
	for i := 0; i < 20; i++ {
		a := new(big.Int).Rand(r, m)
		inv, err := ModInverse(a, m)
		if !IsCoprime(a, m) {
			assert.ErrorIs(t, err, ErrNoInverse)
			continue
		}
		require.NoError(t, err)
		check := new(big.Int).Mul(a, inv)
		check.Mod(check, m)
		assert.Equal(t, 0, check.Cmp(one))
		assert.True(t, inv.Sign() >= 0 && inv.Cmp(m) < 0)
	}
}

func TestGCD(t *testing.T) {
	tests := []struct {
		a, b, want int64
	}{
		{48, 18, 6},
		{18, 48, 6},
		{17, 5, 1},
		{0, 9, 9},
		{9, 0, 9},
		{0, 0, 0},
	}
	for _, tt := range tests {
		got, err := GCD(big.NewInt(tt.a), big.NewInt(tt.b))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got.Int64(), "gcd(%d, %d)", tt.a, tt.b)
	}
	_, err := GCD(big.NewInt(-4), big.NewInt(6))
	assert.ErrorIs(t, err, ErrNegative)

	a := big.NewInt(48)
	_, _ = GCD(a, big.NewInt(18))
	assert.Equal(t, int64(48), a.Int64(), "inputs must not be modified")
}

func TestLCM(t *testing.T) {
	l, err := LCM(big.NewInt(4), big.NewInt(6))
	require.NoError(t, err)
	assert.Equal(t, int64(12), l.Int64())

	l, err = LCM(big.NewInt(0), big.NewInt(0))
	require.NoError(t, err)
	assert.Equal(t, int64(0), l.Int64())

	assert.True(t, IsCoprime(big.NewInt(35), big.NewInt(64)))
	assert.False(t, IsCoprime(big.NewInt(35), big.NewInt(14)))
}
