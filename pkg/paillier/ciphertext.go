package paillier

import (
	"fmt"
	"io"
	"math/big"

	"github.com/cronokirby/saferith"
)

// Ciphertext represents an integer of the for (1+N)ᵐρᴺ (mod N²), representing the encryption of m ∈ ℤₙˣ.
//
// A Ciphertext carries no reference to the key it was created under.
// Use PublicKey.ValidateCiphertexts before combining values of unknown origin.
type Ciphertext struct {
	c *saferith.Nat
}

// CiphertextFromInt wraps c, checking that it is a unit mod N² for the given key.
func CiphertextFromInt(pk *PublicKey, c *big.Int) (*Ciphertext, error) {
	if c == nil || c.Sign() <= 0 {
		return nil, fmt.Errorf("%w: ciphertext is nil or not positive", ErrCiphertextRange)
	}
	ct := &Ciphertext{c: new(saferith.Nat).SetBig(c, c.BitLen())}
	if err := pk.ValidateCiphertexts(ct); err != nil {
		return nil, err
	}
	return ct, nil
}

// Int returns a copy of the underlying integer c.
func (ct *Ciphertext) Int() *big.Int {
	return ct.c.Big()
}

// Add sets ct to the homomorphic sum ct ⊕ other.
// ct ← ct•other (mod N²).
func (ct *Ciphertext) Add(pk *PublicKey, other *Ciphertext) *Ciphertext {
	if other == nil {
		return ct
	}
	ct.c.ModMul(ct.c, other.c, pk.nSquared.Modulus)
	return ct
}

// Combine returns the ciphertext whose plaintext is the sum mod N of the
// plaintexts of cts.
//
// The empty combination is the trivial encryption of 0, c = 1.
// Every input is checked to be a unit mod N² first, and none of them is modified.
func Combine(pk *PublicKey, cts ...*Ciphertext) (*Ciphertext, error) {
	if err := pk.ValidateCiphertexts(cts...); err != nil {
		return nil, err
	}
	acc := new(saferith.Nat).SetUint64(1)
	for _, ct := range cts {
		acc.ModMul(acc, ct.c, pk.nSquared.Modulus)
	}
	return &Ciphertext{c: acc}, nil
}

// Equal check whether ct ≡ ctₓ by comparing their underlying values.
func (ct *Ciphertext) Equal(ctX *Ciphertext) bool {
	if ct == nil || ctX == nil || ct.c == nil || ctX.c == nil {
		return ct == ctX
	}
	return ct.c.Big().Cmp(ctX.c.Big()) == 0
}

// Clone returns a deep copy of ct.
func (ct *Ciphertext) Clone() *Ciphertext {
	c := new(saferith.Nat)
	c.SetNat(ct.c)
	return &Ciphertext{c: c}
}

// MarshalText encodes c in base 10, the format carried by ballots and tallies.
func (ct *Ciphertext) MarshalText() ([]byte, error) {
	if ct == nil || ct.c == nil {
		return nil, fmt.Errorf("%w: marshal nil ciphertext", ErrCiphertextRange)
	}
	return []byte(ct.c.Big().String()), nil
}

// UnmarshalText decodes a base 10 integer.
// The range against a key is only checked by ValidateCiphertexts.
func (ct *Ciphertext) UnmarshalText(text []byte) error {
	c, ok := new(big.Int).SetString(string(text), 10)
	if !ok {
		return fmt.Errorf("%w: %q is not a decimal integer", ErrCiphertextRange, truncate(text))
	}
	if c.Sign() <= 0 {
		return fmt.Errorf("%w: ciphertext must be positive", ErrCiphertextRange)
	}
	ct.c = new(saferith.Nat).SetBig(c, c.BitLen())
	return nil
}

// MarshalBinary encodes c as a big-endian byte string.
func (ct *Ciphertext) MarshalBinary() ([]byte, error) {
	if ct == nil || ct.c == nil {
		return nil, fmt.Errorf("%w: marshal nil ciphertext", ErrCiphertextRange)
	}
	return ct.c.Big().Bytes(), nil
}

// UnmarshalBinary decodes the output of MarshalBinary.
func (ct *Ciphertext) UnmarshalBinary(data []byte) error {
	c := new(big.Int).SetBytes(data)
	if c.Sign() == 0 {
		return fmt.Errorf("%w: ciphertext must be positive", ErrCiphertextRange)
	}
	ct.c = new(saferith.Nat).SetBig(c, c.BitLen())
	return nil
}

func (ct *Ciphertext) String() string {
	if ct == nil || ct.c == nil {
		return "<nil>"
	}
	return ct.c.Big().String()
}

// WriteTo implements io.WriterTo and should be used within the hash.Hash function.
func (ct *Ciphertext) WriteTo(w io.Writer) (int64, error) {
	if ct == nil || ct.c == nil {
		return 0, io.ErrUnexpectedEOF
	}
	n, err := w.Write(ct.c.Big().Bytes())
	return int64(n), err
}

// Domain implements hash.WriterToWithDomain, and separates this type within hash.Hash.
func (*Ciphertext) Domain() string {
	return "Paillier Ciphertext"
}

func truncate(b []byte) string {
	const max = 32
	if len(b) > max {
		return string(b[:max]) + "…"
	}
	return string(b)
}
