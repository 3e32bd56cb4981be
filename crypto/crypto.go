package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the symmetric key size in bytes (AES-256).
	KeySize = 32
	// IVSize is the GCM nonce size in bytes.
	IVSize = 16
	// TagSize is the GCM authentication tag size in bytes.
	TagSize = 16
)

var (
	// ErrIntegrity is returned for every decryption failure. The cause is
	// deliberately not distinguished: a wrong key, a tampered ciphertext,
	// and a malformed blob all look the same to the caller.
	ErrIntegrity = errors.New("decryption failed")
	// ErrInvalidKeySize is returned when a key is not KeySize bytes.
	ErrInvalidKeySize = errors.New("invalid key size")
)

const deriveInfo = "vaultgate.derive.v1"

// Blob is the result of a single authenticated encryption. Salt is only set
// when the key was derived from a salt (see the media package).
type Blob struct {
	Salt       []byte
	IV         []byte
	Tag        []byte
	Ciphertext []byte
}

// Encrypt seals plaintext under a 32-byte key with AES-256-GCM. A fresh
// random IV is drawn per call; the tag is returned detached.
func Encrypt(plaintext, key []byte) (*Blob, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}

	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	sealed := gcm.Seal(nil, iv, plaintext, nil)
	split := len(sealed) - TagSize

	return &Blob{
		IV:         iv,
		Tag:        sealed[split:],
		Ciphertext: sealed[:split],
	}, nil
}

// Decrypt opens a Blob sealed by Encrypt. Any failure, including malformed
// field sizes, returns ErrIntegrity and no plaintext.
func Decrypt(b *Blob, key []byte) ([]byte, error) {
	if b == nil || len(key) != KeySize {
		return nil, ErrIntegrity
	}
	if len(b.IV) != IVSize || len(b.Tag) != TagSize {
		return nil, ErrIntegrity
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, ErrIntegrity
	}

	sealed := make([]byte, 0, len(b.Ciphertext)+TagSize)
	sealed = append(sealed, b.Ciphertext...)
	sealed = append(sealed, b.Tag...)

	plaintext, err := gcm.Open(nil, b.IV, sealed, nil)
	if err != nil {
		return nil, ErrIntegrity
	}

	return plaintext, nil
}

// DeriveKey maps arbitrary seed material to a deterministic 32-byte key.
// The mapping is one-way; the seed cannot be recovered from the key.
func DeriveKey(seed []byte) []byte {
	key := make([]byte, KeySize)
	reader := hkdf.New(sha256.New, seed, nil, []byte(deriveInfo))
	if _, err := io.ReadFull(reader, key); err != nil {
		// hkdf only fails when more than 255 blocks are requested.
		panic("crypto: hkdf expansion failed: " + err.Error())
	}

	return key
}

// RandomKey returns size bytes from the system CSPRNG.
func RandomKey(size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.New("invalid key size")
	}

	key := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Sum computes HMAC-SHA256 of data under key. Used for non-reversible
// identifier digests.
func Sum(data, key []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, IVSize)
}
