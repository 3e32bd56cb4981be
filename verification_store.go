package vaultgate

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	verificationCodePrefix     = "vvc"
	verificationVerifiedPrefix = "vvd"
	verificationIssuePrefix    = "vvi"

	verificationRecordVersionV1 = 1
)

var (
	errCodeNotFound         = errors.New("verification record not found")
	errCodeMismatch         = errors.New("verification code mismatch")
	errCodeAttemptsExceeded = errors.New("verification record attempts exceeded")
	errVerificationBackend  = errors.New("verification redis unavailable")
)

// verificationRecord is the stored state of one active code. Saving a new
// record for the same (channel, target) overwrites the old one, so only the
// most recently issued code is ever live.
type verificationRecord struct {
	CodeHash  [32]byte
	ExpiresAt int64
	Attempts  uint16
}

type verificationStore struct {
	redis *redis.Client
}

func newVerificationStore(redisClient *redis.Client) *verificationStore {
	return &verificationStore{redis: redisClient}
}

func (s *verificationStore) codeKey(channel Channel, target string) string {
	return verificationCodePrefix + ":" + string(channel) + ":" + target
}

func (s *verificationStore) verifiedKey(channel Channel, target string) string {
	return verificationVerifiedPrefix + ":" + string(channel) + ":" + target
}

func (s *verificationStore) issueKey(channel Channel, target string) string {
	return verificationIssuePrefix + ":" + string(channel) + ":" + target
}

func (s *verificationStore) Save(ctx context.Context, channel Channel, target string, record *verificationRecord, ttl time.Duration) error {
	encoded, err := encodeVerificationRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.codeKey(channel, target), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errVerificationBackend, err)
	}
	return nil
}

// Consume checks providedHash against the live record for (channel, target)
// under a WATCH transaction. A match deletes the record so the code cannot
// be replayed; a mismatch increments the attempt counter, discarding the
// record once maxAttempts is reached.
func (s *verificationStore) Consume(ctx context.Context, channel Channel, target string, providedHash [32]byte, maxAttempts int) error {
	const maxRetries = 4
	key := s.codeKey(channel, target)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeVerificationRecord(data)
			if err != nil {
				return err
			}

			if time.Now().Unix() > record.ExpiresAt {
				return deleteInTx(ctx, tx, key, errCodeNotFound)
			}

			if subtle.ConstantTimeCompare(record.CodeHash[:], providedHash[:]) != 1 {
				record.Attempts++
				if int(record.Attempts) >= maxAttempts {
					return deleteInTx(ctx, tx, key, errCodeAttemptsExceeded)
				}

				ttl := time.Until(time.Unix(record.ExpiresAt, 0))
				if ttl <= 0 {
					return deleteInTx(ctx, tx, key, errCodeNotFound)
				}

				updated, err := encodeVerificationRecord(record)
				if err != nil {
					return err
				}
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, updated, ttl)
					return nil
				})
				if err != nil {
					return err
				}
				return errCodeMismatch
			}

			return deleteInTx(ctx, tx, key, nil)
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return errCodeNotFound
			case errors.Is(err, errCodeNotFound),
				errors.Is(err, errCodeMismatch),
				errors.Is(err, errCodeAttemptsExceeded):
				return err
			default:
				return fmt.Errorf("%w: %v", errVerificationBackend, err)
			}
		}

		return nil
	}

	return errCodeNotFound
}

func (s *verificationStore) MarkVerified(ctx context.Context, channel Channel, target string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.verifiedKey(channel, target), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errVerificationBackend, err)
	}
	return nil
}

func (s *verificationStore) IsVerified(ctx context.Context, channel Channel, target string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.verifiedKey(channel, target)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", errVerificationBackend, err)
	}
	return n == 1, nil
}

// ClearVerified consumes a verified marker, typically after a successful
// registration used it.
func (s *verificationStore) ClearVerified(ctx context.Context, channel Channel, target string) error {
	if err := s.redis.Del(ctx, s.verifiedKey(channel, target)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errVerificationBackend, err)
	}
	return nil
}

func deleteInTx(ctx context.Context, tx *redis.Tx, key string, result error) error {
	_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return err
	}
	return result
}

func encodeVerificationRecord(record *verificationRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(verificationRecordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	buf.Write(record.CodeHash[:])

	return buf.Bytes(), nil
}

func decodeVerificationRecord(data []byte) (*verificationRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != verificationRecordVersionV1 {
		return nil, errors.New("invalid verification record version")
	}

	record := &verificationRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, record.CodeHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
