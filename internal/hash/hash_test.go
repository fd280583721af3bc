package hash

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_WriteAny(t *testing.T) {
	testFunc := func(vs ...interface{}) error {
		h := New("test")
		for _, v := range vs {
			if err := h.WriteAny(v); err != nil {
				return err
			}
		}
		return nil
	}

	assert.NoError(t, testFunc(big.NewInt(35)))
	assert.NoError(t, testFunc([]byte{1, 4, 6}))
	assert.NoError(t, testFunc("Alice", uint64(50)))
	assert.NoError(t, testFunc(BytesWithDomain{TheDomain: "ballot", Bytes: []byte("x")}))

	var i *big.Int
	assert.Error(t, testFunc(i))
	assert.Error(t, testFunc(big.NewInt(-1)))
	assert.Error(t, testFunc(3.5))

	assert.NoError(t, testFunc(big.NewInt(35), []byte{1, 4, 6}))
}

func TestHash_DomainSeparation(t *testing.T) {
	h1 := New("test")
	require.NoError(t, h1.WriteAny("ab", "c"))
	h2 := New("test")
	require.NoError(t, h2.WriteAny("a", "bc"))
	assert.NotEqual(t, h1.Sum(), h2.Sum(), "splitting the same bytes differently should change the digest")

	h3 := New("other")
	require.NoError(t, h3.WriteAny("ab", "c"))
	assert.NotEqual(t, h1.Sum(), h3.Sum(), "different initial domains should change the digest")
}

func TestHash_Clone(t *testing.T) {
	h := New("test")
	require.NoError(t, h.WriteAny([]byte{1, 2, 3}))
	c := h.Clone()
	assert.Equal(t, h.Sum(), c.Sum())
	require.NoError(t, c.WriteAny([]byte{4}))
	assert.NotEqual(t, h.Sum(), c.Sum())
	assert.Len(t, h.Sum(), 32)
}
