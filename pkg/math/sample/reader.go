package sample

import (
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/chacha20"
)

// SeededReader is a deterministic io.Reader producing the ChaCha20 keystream
// for a key derived from a seed.
//
// Two readers created with the same seed produce the same bytes, which makes
// it suitable for reproducible tests and fixtures. It must not be used
// concurrently; wrap it in a pool.LockedReader for that.
type SeededReader struct {
	cipher *chacha20.Cipher
}

// NewSeededReader returns a SeededReader whose key is blake3(seed).
func NewSeededReader(seed []byte) *SeededReader {
	key := blake3.Sum256(seed)
	var nonce [chacha20.NonceSize]byte
	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		// only possible with wrong key or nonce sizes, which are fixed above
		panic(err)
	}
	return &SeededReader{cipher: c}
}

// Read implements io.Reader. It never fails.
func (r *SeededReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	r.cipher.XORKeyStream(p, p)
	return len(p), nil
}
