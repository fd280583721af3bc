package paillier

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

type publicKeyJSON struct {
	N string `json:"n"`
	G string `json:"g"`
}

// MarshalJSON encodes the key as {"n": "<dec>", "g": "<dec>"}.
func (pk *PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(publicKeyJSON{
		N: pk.nBig.String(),
		G: pk.G().String(),
	})
}

// UnmarshalJSON decodes a key produced by MarshalJSON.
// The generator must be N+1 and N must pass ValidateN.
func (pk *PublicKey) UnmarshalJSON(data []byte) error {
	var pj publicKeyJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPublicKey, err)
	}
	n, ok := new(big.Int).SetString(pj.N, 10)
	if !ok {
		return fmt.Errorf("%w: n is not a decimal integer", ErrInvalidPublicKey)
	}
	key, err := NewPublicKey(n)
	if err != nil {
		return err
	}
	if pj.G != "" {
		g, ok := new(big.Int).SetString(pj.G, 10)
		if !ok || g.Cmp(key.G()) != 0 {
			return fmt.Errorf("%w: g ≠ n+1", ErrInvalidPublicKey)
		}
	}
	*pk = *key
	return nil
}

type secretKeyMarshal struct {
	P, Q []byte
}

// MarshalBinary encodes the two prime factors with CBOR, everything else is derived again when loading.
func (sk *SecretKey) MarshalBinary() ([]byte, error) {
	p, q := sk.P(), sk.Q()
	if p == nil || q == nil {
		return nil, ErrKeyDestroyed
	}
	return cbor.Marshal(&secretKeyMarshal{P: p.Bytes(), Q: q.Bytes()})
}

// UnmarshalBinary decodes the output of MarshalBinary, checking the factors
// the same way NewSecretKeyFromPrimes does.
func (sk *SecretKey) UnmarshalBinary(data []byte) error {
	var sm secretKeyMarshal
	if err := cbor.Unmarshal(data, &sm); err != nil {
		return fmt.Errorf("paillier: decode secret key: %w", err)
	}
	key, err := NewSecretKeyFromPrimes(new(big.Int).SetBytes(sm.P), new(big.Int).SetBytes(sm.Q))
	if err != nil {
		return err
	}
	sk.mtx.Lock()
	defer sk.mtx.Unlock()
	sk.PublicKey = key.PublicKey
	sk.crt = key.crt
	sk.p, sk.q = key.p, key.q
	sk.lambda, sk.mu = key.lambda, key.mu
	sk.destroyed = false
	return nil
}
