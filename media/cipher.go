package media

import (
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/argon2"

	"github.com/solenlabs/vaultgate/crypto"
)

const (
	// SaltSize is the per-blob KDF salt size in bytes.
	SaltSize = 64

	headerSize = SaltSize + crypto.IVSize + crypto.TagSize
)

var (
	// ErrMalformed is returned by Unpack for inputs shorter than the header.
	ErrMalformed = errors.New("malformed media blob")
)

// Params are the argon2id cost parameters for the pair key derivation.
// Memory is expressed in KiB.
type Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
}

func (p Params) withDefaults() Params {
	if p.Memory == 0 {
		p.Memory = 64 * 1024
	}
	if p.Time == 0 {
		p.Time = 1
	}
	if p.Parallelism == 0 {
		p.Parallelism = 4
	}
	return p
}

// Cipher seals and opens media blobs with a key derived per participant
// pair. Each blob carries its own salt, so the key is fresh per blob and
// either participant can open it.
type Cipher struct {
	params Params
	pepper []byte
}

// NewCipher creates a Cipher. pepper is an optional server-held secret mixed
// into the KDF input; blobs sealed with a pepper can only be opened by a
// deployment holding the same pepper.
func NewCipher(params Params, pepper []byte) *Cipher {
	return &Cipher{
		params: params.withDefaults(),
		pepper: append([]byte(nil), pepper...),
	}
}

// Seal encrypts data for the participant pair (a, b) and returns the packed
// blob salt‖iv‖tag‖ciphertext.
func (c *Cipher) Seal(data []byte, a, b string) ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}

	blob, err := crypto.Encrypt(data, c.pairKey(a, b, salt))
	if err != nil {
		return nil, err
	}
	blob.Salt = salt

	return Pack(blob), nil
}

// Open decrypts a packed blob for the participant pair (a, b). Order of the
// participants does not matter. Integrity failures surface as
// crypto.ErrIntegrity.
func (c *Cipher) Open(packed []byte, a, b string) ([]byte, error) {
	blob, err := Unpack(packed)
	if err != nil {
		return nil, err
	}

	return crypto.Decrypt(blob, c.pairKey(a, b, blob.Salt))
}

func (c *Cipher) pairKey(a, b string, salt []byte) []byte {
	input := canonicalPair(a, b)
	if len(c.pepper) > 0 {
		input = append(input, c.pepper...)
	}

	return argon2.IDKey(
		input,
		salt,
		c.params.Time,
		c.params.Memory,
		c.params.Parallelism,
		crypto.KeySize,
	)
}

// canonicalPair sorts the two participant IDs so both directions of a
// conversation derive the same key.
func canonicalPair(a, b string) []byte {
	if b < a {
		a, b = b, a
	}
	return []byte(a + ":" + b)
}

// Pack flattens a blob into the wire layout salt‖iv‖tag‖ciphertext.
func Pack(b *crypto.Blob) []byte {
	packed := make([]byte, 0, headerSize+len(b.Ciphertext))
	packed = append(packed, b.Salt...)
	packed = append(packed, b.IV...)
	packed = append(packed, b.Tag...)
	packed = append(packed, b.Ciphertext...)
	return packed
}

// Unpack splits a packed blob back into its fields. Inputs shorter than the
// fixed header are rejected.
func Unpack(packed []byte) (*crypto.Blob, error) {
	if len(packed) < headerSize {
		return nil, ErrMalformed
	}

	return &crypto.Blob{
		Salt:       packed[:SaltSize],
		IV:         packed[SaltSize : SaltSize+crypto.IVSize],
		Tag:        packed[SaltSize+crypto.IVSize : headerSize],
		Ciphertext: packed[headerSize:],
	}, nil
}
