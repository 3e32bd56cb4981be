package vaultgate

import (
	"context"
	"errors"
	"time"

	"github.com/solenlabs/vaultgate/crypto"
	"github.com/solenlabs/vaultgate/media"
)

const (
	auditEventLoginSuccess     = "login_success"
	auditEventLoginFailure     = "login_failure"
	auditEventLoginLockedOut   = "login_locked_out"
	auditEventLoginBanned      = "login_banned"
	auditEventRegisterSuccess  = "register_success"
	auditEventRegisterFailure  = "register_failure"
	auditEventCodeIssued       = "verification_code_issued"
	auditEventCodeConfirmed    = "verification_code_confirmed"
	auditEventCodeFailed       = "verification_code_failed"
	auditEventLogoutSession    = "logout_session"
	auditEventLogoutAll        = "logout_all"
	auditEventTokenRejected    = "token_rejected"
	auditEventPasswordChanged  = "password_change_success"
	auditEventPasswordFailure  = "password_change_failure"
	auditEventIntegrityFailure = "integrity_failure"
	auditEventMediaStored      = "media_stored"
	auditEventMediaDeleted     = "media_deleted"
	auditEventRateLimited      = "rate_limit_triggered"
)

// AuditErrorCode is the coarse error classification attached to audit
// events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrAccountBanned      AuditErrorCode = "account_banned"
	auditErrAccountDisabled    AuditErrorCode = "account_disabled"
	auditErrValidation         AuditErrorCode = "validation"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrCodeInvalid        AuditErrorCode = "code_invalid"
	auditErrAttemptsExceeded   AuditErrorCode = "attempts_exceeded"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrSessionNotFound    AuditErrorCode = "session_not_found"
	auditErrIntegrity          AuditErrorCode = "integrity"
	auditErrNotFound           AuditErrorCode = "not_found"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope string, metadataBuilder func() map[string]string) {
	e.metrics.Inc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimited, false, "", "", nil, func() map[string]string {
		base := map[string]string{
			"scope": scope,
		}
		if metadataBuilder == nil {
			return base
		}
		for k, v := range metadataBuilder() {
			base[k] = v
		}
		return base
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrAccountBanned):
		return auditErrAccountBanned
	case errors.Is(err, ErrAccountDisabled):
		return auditErrAccountDisabled
	case errors.Is(err, ErrAccountExists):
		return auditErrDuplicate
	case errors.Is(err, ErrValidation):
		return auditErrValidation
	case errors.Is(err, ErrCodeInvalid):
		return auditErrCodeInvalid
	case errors.Is(err, ErrCodeAttempts):
		return auditErrAttemptsExceeded
	case errors.Is(err, ErrCodeRateLimited),
		errors.Is(err, ErrRegistrationRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, crypto.ErrIntegrity):
		return auditErrIntegrity
	case errors.Is(err, media.ErrNotFound),
		errors.Is(err, media.ErrInvalidName):
		return auditErrNotFound
	case errors.Is(err, ErrLockoutUnavailable),
		errors.Is(err, ErrVerificationUnavailable),
		errors.Is(err, ErrLimiterUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
