package vaultgate

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/solenlabs/vaultgate/crypto"
)

// EncryptText encrypts a message body under the deployment message key
// and returns it as base64 of iv || tag || ciphertext.
func (e *Engine) EncryptText(plaintext string) (string, error) {
	key := e.config.Crypto.MessageKey
	if len(key) == 0 {
		return "", ErrMessageKeyMissing
	}

	blob, err := crypto.Encrypt([]byte(plaintext), key)
	if err != nil {
		return "", err
	}

	packed := make([]byte, 0, crypto.IVSize+crypto.TagSize+len(blob.Ciphertext))
	packed = append(packed, blob.IV...)
	packed = append(packed, blob.Tag...)
	packed = append(packed, blob.Ciphertext...)

	return base64.StdEncoding.EncodeToString(packed), nil
}

// DecryptText reverses EncryptText. Any tampering, truncation, or key
// mismatch surfaces as a single integrity failure, and integrity
// failures are always audited.
func (e *Engine) DecryptText(ctx context.Context, encoded string) (string, error) {
	key := e.config.Crypto.MessageKey
	if len(key) == 0 {
		return "", ErrMessageKeyMissing
	}

	packed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(packed) < crypto.IVSize+crypto.TagSize {
		e.recordIntegrityFailure(ctx, "text")
		return "", crypto.ErrIntegrity
	}

	blob := &crypto.Blob{
		IV:         packed[:crypto.IVSize],
		Tag:        packed[crypto.IVSize : crypto.IVSize+crypto.TagSize],
		Ciphertext: packed[crypto.IVSize+crypto.TagSize:],
	}

	plaintext, err := crypto.Decrypt(blob, key)
	if err != nil {
		e.recordIntegrityFailure(ctx, "text")
		return "", err
	}

	return string(plaintext), nil
}

// EncryptMedia seals a media payload for the participant pair (a, b).
// The pair order does not matter; both directions derive the same key.
func (e *Engine) EncryptMedia(data []byte, a, b string) ([]byte, error) {
	if a == "" || b == "" {
		return nil, fmt.Errorf("%w: media participants", ErrValidation)
	}
	return e.mediaCipher.Seal(data, a, b)
}

// DecryptMedia opens a sealed media payload for the participant pair.
func (e *Engine) DecryptMedia(ctx context.Context, packed []byte, a, b string) ([]byte, error) {
	if a == "" || b == "" {
		return nil, fmt.Errorf("%w: media participants", ErrValidation)
	}

	data, err := e.mediaCipher.Open(packed, a, b)
	if err != nil {
		if errors.Is(err, crypto.ErrIntegrity) {
			e.recordIntegrityFailure(ctx, "media")
		}
		return nil, err
	}
	return data, nil
}

// SaveEncryptedMedia seals a payload for the pair and writes it to the
// configured media store under a random name, which it returns.
func (e *Engine) SaveEncryptedMedia(ctx context.Context, data []byte, a, b string) (string, error) {
	if e.mediaStore == nil {
		return "", ErrMediaStorageDisabled
	}

	packed, err := e.EncryptMedia(data, a, b)
	if err != nil {
		return "", err
	}

	name, err := e.mediaStore.Save(packed)
	if err != nil {
		return "", err
	}

	e.metrics.Inc(MetricMediaStored)
	e.emitAudit(ctx, auditEventMediaStored, true, "", "", nil, func() map[string]string {
		return map[string]string{"blob": name}
	})

	return name, nil
}

// ReadEncryptedMedia loads a stored blob by name and opens it for the
// participant pair.
func (e *Engine) ReadEncryptedMedia(ctx context.Context, name string, a, b string) ([]byte, error) {
	if e.mediaStore == nil {
		return nil, ErrMediaStorageDisabled
	}

	packed, err := e.mediaStore.Read(name)
	if err != nil {
		return nil, err
	}

	return e.DecryptMedia(ctx, packed, a, b)
}

// DeleteMedia removes a stored blob. Deleting a name that is already
// gone is not an error.
func (e *Engine) DeleteMedia(ctx context.Context, name string) error {
	if e.mediaStore == nil {
		return ErrMediaStorageDisabled
	}

	if err := e.mediaStore.Delete(name); err != nil {
		return err
	}

	e.metrics.Inc(MetricMediaDeleted)
	e.emitAudit(ctx, auditEventMediaDeleted, true, "", "", nil, func() map[string]string {
		return map[string]string{"blob": name}
	})

	return nil
}

func (e *Engine) recordIntegrityFailure(ctx context.Context, surface string) {
	e.metrics.Inc(MetricIntegrityFailure)
	e.emitAudit(ctx, auditEventIntegrityFailure, false, "", "", crypto.ErrIntegrity, func() map[string]string {
		return map[string]string{"surface": surface}
	})
}
