package hash

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/taurusgroup/paillier-tally/internal/params"
	"github.com/zeebo/blake3"
)

// Hash is the transcript hash used for key fingerprints and result digests.
//
// Every value is written together with a domain string and its length, so that
// two different sequences of writes never produce the same input stream.
type Hash struct {
	h *blake3.Hasher
}

// New creates a Hash whose state is initialized with the given domain.
func New(domain string) *Hash {
	hash := &Hash{h: blake3.New()}
	_ = writeWithDomain(hash.h, BytesWithDomain{TheDomain: "init", Bytes: []byte(domain)})
	return hash
}

// Digest returns a reader for the current output of the function.
//
// Reading from it does not modify the state of the Hash.
func (hash *Hash) Digest() io.Reader {
	return hash.h.Digest()
}

// Sum returns params.DigestBytes bytes of output for the current state.
func (hash *Hash) Sum() []byte {
	out := make([]byte, params.DigestBytes)
	if _, err := io.ReadFull(hash.Digest(), out); err != nil {
		panic(fmt.Sprintf("hash.Sum: internal hash failure: %v", err))
	}
	return out
}

// WriteAny takes many different data types and writes them to the hash state.
//
// Currently supported types:
//
//   - []byte
//   - string
//   - uint64
//   - *big.Int (non-negative)
//   - hash.WriterToWithDomain
func (hash *Hash) WriteAny(data ...interface{}) error {
	var err error
	for _, d := range data {
		switch t := d.(type) {
		case []byte:
			err = writeWithDomain(hash.h, BytesWithDomain{TheDomain: "[]byte", Bytes: t})
		case string:
			err = writeWithDomain(hash.h, BytesWithDomain{TheDomain: "string", Bytes: []byte(t)})
		case uint64:
			var buf [8]byte
			binary.BigEndian.PutUint64(buf[:], t)
			err = writeWithDomain(hash.h, BytesWithDomain{TheDomain: "uint64", Bytes: buf[:]})
		case *big.Int:
			if t == nil {
				return errors.New("hash.Hash: write *big.Int: nil")
			}
			if t.Sign() < 0 {
				return errors.New("hash.Hash: write *big.Int: negative")
			}
			err = writeWithDomain(hash.h, BytesWithDomain{TheDomain: "big.Int", Bytes: t.Bytes()})
		case WriterToWithDomain:
			err = writeWithDomain(hash.h, t)
		default:
			return fmt.Errorf("hash.Hash: unsupported type %T", d)
		}
		if err != nil {
			return fmt.Errorf("hash.Hash: write %T: %w", d, err)
		}
	}
	return nil
}

// Clone returns a copy of the Hash in its current state.
func (hash *Hash) Clone() *Hash {
	return &Hash{h: hash.h.Clone()}
}
