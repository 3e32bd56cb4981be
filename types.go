package vaultgate

import (
	"context"
	"time"
)

// AccountStatus is the lifecycle state of a credential record.
type AccountStatus uint8

const (
	// AccountActive accounts can log in and hold sessions.
	AccountActive AccountStatus = iota
	// AccountDisabled accounts are rejected at login; an operator can
	// re-enable them.
	AccountDisabled
	// AccountBanned accounts are rejected unconditionally, independent of
	// lockout state, and their live sessions are revoked on first contact.
	AccountBanned
)

// CredentialProvider is the persistence interface callers implement to
// integrate their user database. It is read-mostly: lockout counters and
// verification state live in Redis, not on the credential record.
//
// Implementations return ErrCredentialNotFound for unknown identifiers and
// ErrDuplicateIdentifier for create collisions.
type CredentialProvider interface {
	GetByIdentifier(ctx context.Context, identifier string) (CredentialRecord, error)
	GetByID(ctx context.Context, userID string) (CredentialRecord, error)
	Create(ctx context.Context, input CreateCredentialInput) (CredentialRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error
	SetStatus(ctx context.Context, userID string, status AccountStatus) error
}

// CredentialRecord is the account record returned by a CredentialProvider.
type CredentialRecord struct {
	UserID       string
	Email        string
	Username     string
	Mobile       string
	PasswordHash string
	Role         string
	Status       AccountStatus
	CreatedAt    int64
}

// CreateCredentialInput is the input to CredentialProvider.Create. The
// password arrives pre-hashed.
type CreateCredentialInput struct {
	Email        string
	Username     string
	Mobile       string
	PasswordHash string
	Role         string
	Status       AccountStatus
}

// UserSummary is the public projection of a credential record. It never
// carries the password hash or the mobile number.
type UserSummary struct {
	UserID   string
	Email    string
	Username string
	Role     string
}

// AuthResult is returned by Login and Register.
type AuthResult struct {
	Token     string
	SessionID string
	ExpiresAt time.Time
	User      UserSummary
}

// RegisterRequest is the input to Register. Mobile is optional; when set it
// must hold a verified marker like the email.
type RegisterRequest struct {
	Email    string
	Username string
	Mobile   string
	Password string
	Role     string
}

// Channel names a verification delivery channel.
type Channel string

const (
	// ChannelEmail verifies ownership of an email address.
	ChannelEmail Channel = "email"
	// ChannelMobile verifies ownership of a mobile number.
	ChannelMobile Channel = "mobile"
)

func (c Channel) valid() bool {
	return c == ChannelEmail || c == ChannelMobile
}

// VerificationStatus reports which of a prospective account's channels hold
// a live verified marker.
type VerificationStatus struct {
	EmailVerified  bool
	MobileVerified bool
}

func summaryOf(rec CredentialRecord) UserSummary {
	return UserSummary{
		UserID:   rec.UserID,
		Email:    rec.Email,
		Username: rec.Username,
		Role:     rec.Role,
	}
}
