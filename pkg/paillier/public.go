package paillier

import (
	"fmt"
	"io"
	"math/big"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/paillier-tally/internal/hash"
	"github.com/taurusgroup/paillier-tally/internal/params"
	"github.com/taurusgroup/paillier-tally/pkg/math/arith"
	"github.com/taurusgroup/paillier-tally/pkg/math/sample"
)

// PublicKey is a Paillier public key. It is represented by a modulus N, the
// generator is always g = N+1.
//
// A PublicKey is immutable and safe for concurrent use.
type PublicKey struct {
	// n = p⋅q
	n *arith.Modulus
	// nSquared = n²
	nSquared *arith.Modulus

	// These values are cached out of convenience, and performance
	nNat *saferith.Nat
	// nPlusOne = n + 1
	nPlusOne *saferith.Nat
	nBig     *big.Int
}

// NewPublicKey returns an initialized paillier.PublicKey and caches N², N+1.
//
// It fails with ErrInvalidPublicKey if n is nil or even, and with
// ErrInsecureParameter if n has fewer than params.MinBitsPaillier bits.
func NewPublicKey(n *big.Int) (*PublicKey, error) {
	if err := ValidateN(n); err != nil {
		return nil, err
	}
	nNat := new(saferith.Nat).SetBig(n, n.BitLen())
	nMod := saferith.ModulusFromNat(nNat)
	nSquared := saferith.ModulusFromNat(new(saferith.Nat).Mul(nNat, nNat, -1))
	return newPublicKey(arith.ModulusFromN(nMod), arith.ModulusFromN(nSquared)), nil
}

func newPublicKey(n, nSquared *arith.Modulus) *PublicKey {
	oneNat := new(saferith.Nat).SetUint64(1)
	nNat := n.Nat()
	nPlusOne := new(saferith.Nat).Add(nNat, oneNat, -1)
	// Tightening is fine, since n is public
	nPlusOne.Resize(nPlusOne.TrueLen())
	return &PublicKey{
		n:        n,
		nSquared: nSquared,
		nNat:     nNat,
		nPlusOne: nPlusOne,
		nBig:     nNat.Big(),
	}
}

// ValidateN performs basic checks to make sure the modulus is usable:
// - n is odd.
// - log₂(n) ≥ params.MinBitsPaillier.
func ValidateN(n *big.Int) error {
	if n == nil || n.Sign() <= 0 {
		return fmt.Errorf("%w: modulus is nil or not positive", ErrInvalidPublicKey)
	}
	if n.Bit(0) != 1 {
		return fmt.Errorf("%w: modulus is even", ErrInvalidPublicKey)
	}
	if bits := n.BitLen(); bits < params.MinBitsPaillier {
		return fmt.Errorf("%w: modulus of %d bits, need at least %d", ErrInsecureParameter, bits, params.MinBitsPaillier)
	}
	return nil
}

// N returns a copy of the modulus N.
func (pk *PublicKey) N() *big.Int {
	return new(big.Int).Set(pk.nBig)
}

// G returns a copy of the generator g = N+1.
func (pk *PublicKey) G() *big.Int {
	return pk.nPlusOne.Big()
}

// N2 returns a copy of N².
func (pk *PublicKey) N2() *big.Int {
	return pk.nSquared.Big()
}

// BitLen returns the size of N in bits.
func (pk *PublicKey) BitLen() int {
	return pk.nBig.BitLen()
}

// Equal returns true if pk ≡ other.
func (pk *PublicKey) Equal(other *PublicKey) bool {
	if pk == nil || other == nil {
		return pk == other
	}
	return pk.nBig.Cmp(other.nBig) == 0
}

// Enc returns the encryption of m under the public key pk, with a fresh
// nonce ρ ∈ ℤₙˣ drawn from rand.
//
// The message m must be in the range [0, N).
//
// ct = (1+N)ᵐρᴺ (mod N²).
func (pk *PublicKey) Enc(rand io.Reader, m *big.Int) (*Ciphertext, error) {
	mNat, err := pk.plaintext(m)
	if err != nil {
		return nil, err
	}
	nonce, err := sample.UnitModN(rand, pk.n.Modulus)
	if err != nil {
		return nil, fmt.Errorf("paillier: sample nonce: %w", err)
	}
	return pk.encWithNonce(mNat, nonce), nil
}

// EncWithNonce is like Enc but uses the given nonce, which must be in ℤₙˣ.
//
// Reusing a nonce for two ciphertexts reveals the difference of their plaintexts,
// this is only meant for deterministic tests and for re-deriving ciphertexts.
func (pk *PublicKey) EncWithNonce(m, nonce *big.Int) (*Ciphertext, error) {
	mNat, err := pk.plaintext(m)
	if err != nil {
		return nil, err
	}
	if nonce == nil || nonce.Sign() <= 0 || nonce.Cmp(pk.nBig) >= 0 || !arith.IsCoprime(nonce, pk.nBig) {
		return nil, fmt.Errorf("paillier: nonce is not a unit mod N")
	}
	return pk.encWithNonce(mNat, new(saferith.Nat).SetBig(nonce, pk.BitLen())), nil
}

func (pk *PublicKey) plaintext(m *big.Int) (*saferith.Nat, error) {
	if m == nil || m.Sign() < 0 || m.Cmp(pk.nBig) >= 0 {
		return nil, ErrPlaintextRange
	}
	return new(saferith.Nat).SetBig(m, pk.BitLen()), nil
}

func (pk *PublicKey) encWithNonce(m, nonce *saferith.Nat) *Ciphertext {
	// (N+1)ᵐ mod N²
	c := pk.nSquared.Exp(pk.nPlusOne, m)
	// ρᴺ mod N²
	rhoN := pk.nSquared.Exp(nonce, pk.nNat)
	// (N+1)ᵐ ρᴺ mod N²
	c.ModMul(c, rhoN, pk.nSquared.Modulus)
	return &Ciphertext{c: c}
}

// ValidateCiphertexts checks if all ciphertexts are in the correct range and coprime to N²
// ct ∈ [1, …, N²-1] AND GCD(ct,N²) = 1.
func (pk *PublicKey) ValidateCiphertexts(cts ...*Ciphertext) error {
	for i, ct := range cts {
		if ct == nil || ct.c == nil {
			return fmt.Errorf("%w: ciphertext %d is nil", ErrCiphertextRange, i)
		}
		if _, _, lt := ct.c.CmpMod(pk.nSquared.Modulus); lt != 1 {
			return fmt.Errorf("%w: ciphertext %d is not smaller than N²", ErrCiphertextRange, i)
		}
		if ct.c.IsUnit(pk.nSquared.Modulus) != 1 {
			return fmt.Errorf("%w: ciphertext %d is not a unit mod N²", ErrCiphertextRange, i)
		}
	}
	return nil
}

// Fingerprint returns a short digest identifying this key.
// Ballots carry it so that ciphertexts under a different key can be rejected before aggregation.
func (pk *PublicKey) Fingerprint() []byte {
	h := hash.New("paillier-tally/public-key")
	if err := h.WriteAny(pk); err != nil {
		panic(fmt.Sprintf("paillier: fingerprint: %v", err))
	}
	return h.Sum()
}

// WriteTo implements io.WriterTo and should be used within the hash.Hash function.
func (pk *PublicKey) WriteTo(w io.Writer) (int64, error) {
	if pk == nil {
		return 0, io.ErrUnexpectedEOF
	}
	n, err := w.Write(pk.nBig.Bytes())
	return int64(n), err
}

// Domain implements hash.WriterToWithDomain, and separates this type within hash.Hash.
func (*PublicKey) Domain() string {
	return "Paillier PublicKey"
}
