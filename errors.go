package vaultgate

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrValidation is the root of all input-shape failures. Field-specific
	// sentinels below wrap it so callers can match either the family or the
	// exact cause.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidCredentials carries a uniform message for every credential
	// failure so callers cannot tell a wrong password from an unknown
	// identifier.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrAccountBanned is returned unconditionally for banned accounts,
	// before any password or lockout work.
	ErrAccountBanned = errors.New("account banned")
	// ErrAccountDisabled is returned for disabled accounts.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrAccountLocked is the match target for *LockoutError.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountExists is returned when a register identifier is taken.
	ErrAccountExists = errors.New("account already exists")

	// ErrEmailNotVerified rejects registration for an email without a live
	// verified marker.
	ErrEmailNotVerified = fmt.Errorf("%w: email not verified", ErrValidation)
	// ErrMobileNotVerified rejects registration for a mobile number without
	// a live verified marker.
	ErrMobileNotVerified = fmt.Errorf("%w: mobile not verified", ErrValidation)
	// ErrPasswordPolicy is returned when a password fails the length policy.
	ErrPasswordPolicy = fmt.Errorf("%w: password policy violation", ErrValidation)

	// ErrRegistrationDisabled is returned when account creation is off.
	ErrRegistrationDisabled = errors.New("registration disabled")
	// ErrRegistrationRateLimited is returned when the per-origin register
	// window is exhausted.
	ErrRegistrationRateLimited = errors.New("registration rate limited")

	// ErrCodeInvalid covers unknown, superseded, expired, and mismatched
	// verification codes alike.
	ErrCodeInvalid = errors.New("verification code invalid")
	// ErrCodeAttempts is returned once a code has absorbed too many wrong
	// guesses; the code is discarded.
	ErrCodeAttempts = errors.New("verification attempts exceeded")
	// ErrCodeRateLimited is returned when code issuance for a target is
	// exhausted for the current window.
	ErrCodeRateLimited = errors.New("verification code rate limited")

	// ErrTokenInvalid is returned for tokens that fail signature or claim
	// checks, or whose claims disagree with the session record.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrSessionNotFound is returned when a token's session was revoked or
	// has expired.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionCreationFailed is returned when a login could not persist
	// its session.
	ErrSessionCreationFailed = errors.New("session creation failed")

	// ErrMessageKeyMissing is returned by the text operations when no
	// message key is configured.
	ErrMessageKeyMissing = errors.New("message key not configured")
	// ErrMediaStorageDisabled is returned by the stored-media operations
	// when no media root is configured.
	ErrMediaStorageDisabled = errors.New("media storage not configured")

	// ErrLockoutUnavailable indicates the lockout backend is unreachable.
	ErrLockoutUnavailable = errors.New("lockout backend unavailable")
	// ErrVerificationUnavailable indicates the verification backend is
	// unreachable.
	ErrVerificationUnavailable = errors.New("verification backend unavailable")
	// ErrLimiterUnavailable indicates the rate-limit backend is unreachable.
	ErrLimiterUnavailable = errors.New("rate limit backend unavailable")

	// ErrCredentialNotFound is returned by CredentialProvider
	// implementations for unknown identifiers.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrDuplicateIdentifier is returned by CredentialProvider
	// implementations when a create collides with an existing identifier.
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
)

// LockoutError rejects a login while the account is locked out. Until is
// the instant the lockout lapses; callers surface it so clients know when
// to retry.
type LockoutError struct {
	Until time.Time
}

func (e *LockoutError) Error() string {
	return "account locked until " + e.Until.UTC().Format(time.RFC3339)
}

// Is makes errors.Is(err, ErrAccountLocked) match a *LockoutError.
func (e *LockoutError) Is(target error) bool {
	return target == ErrAccountLocked
}
