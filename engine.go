package vaultgate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/solenlabs/vaultgate/internal"
	"github.com/solenlabs/vaultgate/media"
	"github.com/solenlabs/vaultgate/password"
	"github.com/solenlabs/vaultgate/session"
	"github.com/solenlabs/vaultgate/token"
)

// Engine is the security core. It owns login, sessions, tokens, the
// verification gate, and the encryption surface; persistence for
// credentials is injected through CredentialProvider and everything
// ephemeral lives in Redis.
type Engine struct {
	config Config

	provider      CredentialProvider
	sessions      *session.Store
	tokens        *token.Manager
	passwords     *password.Hasher
	lockouts      *lockoutLimiter
	verifications *verificationStore
	limiter       *windowLimiter
	mediaCipher   *media.Cipher
	mediaStore    *media.Store

	audit   *auditDispatcher
	metrics *Metrics
}

// Login authenticates an identifier/password pair and opens a session.
// Banned accounts are rejected before anything else; locked accounts are
// rejected before the password is even checked.
func (e *Engine) Login(ctx context.Context, identifier, pass string) (*AuthResult, error) {
	identifier = normalizeIdentifier(identifier)
	if identifier == "" || pass == "" {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	rec, err := e.provider.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			e.metrics.Inc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	switch rec.Status {
	case AccountBanned:
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginBanned, false, rec.UserID, "", ErrAccountBanned, nil)
		return nil, ErrAccountBanned
	case AccountDisabled:
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, rec.UserID, "", ErrAccountDisabled, nil)
		return nil, ErrAccountDisabled
	}

	until, locked, err := e.lockouts.Locked(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if locked {
		lockErr := &LockoutError{Until: until}
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginLockedOut, false, rec.UserID, "", lockErr, nil)
		return nil, lockErr
	}

	ok, err := e.passwords.Verify(pass, rec.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		until, lockedNow, recordErr := e.lockouts.RecordFailure(ctx, identifier)
		if recordErr != nil {
			return nil, recordErr
		}

		e.metrics.Inc(MetricLoginFailure)
		if lockedNow {
			lockErr := &LockoutError{Until: until}
			e.metrics.Inc(MetricLockoutTriggered)
			e.emitAudit(ctx, auditEventLoginLockedOut, false, rec.UserID, "", lockErr, nil)
			return nil, lockErr
		}

		e.emitAudit(ctx, auditEventLoginFailure, false, rec.UserID, "", ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	if err := e.lockouts.Reset(ctx, identifier); err != nil {
		return nil, err
	}

	e.maybeRehashPassword(ctx, rec, pass)

	result, err := e.openSession(ctx, rec)
	if err != nil {
		e.emitAudit(ctx, auditEventLoginFailure, false, rec.UserID, "", err, nil)
		return nil, err
	}

	e.metrics.Inc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, rec.UserID, result.SessionID, nil, func() map[string]string {
		return map[string]string{
			"fingerprint": internal.FingerprintHex(
				clientIPFromContext(ctx),
				clientStringFromContext(ctx),
				acceptLanguageFromContext(ctx),
			),
		}
	})

	return result, nil
}

// Verify checks a token's signature and claims, confirms the backing
// session is still live, and returns the account summary. A revoked or
// expired session invalidates the token no matter what its claims say.
func (e *Engine) Verify(ctx context.Context, tokenStr string) (*UserSummary, error) {
	claims, err := e.tokens.Parse(tokenStr)
	if err != nil {
		e.metrics.Inc(MetricTokenRejected)
		e.emitAudit(ctx, auditEventTokenRejected, false, "", "", ErrTokenInvalid, nil)
		return nil, ErrTokenInvalid
	}

	sess, err := e.sessions.Get(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			e.metrics.Inc(MetricTokenRejected)
			e.emitAudit(ctx, auditEventTokenRejected, false, claims.UID, claims.SID, ErrSessionNotFound, nil)
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	if sess.UserID != claims.UID {
		e.metrics.Inc(MetricTokenRejected)
		e.emitAudit(ctx, auditEventTokenRejected, false, claims.UID, claims.SID, ErrTokenInvalid, nil)
		return nil, ErrTokenInvalid
	}

	rec, err := e.provider.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			_ = e.sessions.Delete(ctx, sess.SessionID)
			e.metrics.Inc(MetricTokenRejected)
			e.emitAudit(ctx, auditEventTokenRejected, false, claims.UID, claims.SID, ErrSessionNotFound, nil)
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	if rec.Status == AccountBanned {
		// First contact after a ban tears down every live session.
		_ = e.sessions.DeleteAllForUser(ctx, rec.UserID)
		e.metrics.Inc(MetricTokenRejected)
		e.emitAudit(ctx, auditEventTokenRejected, false, rec.UserID, sess.SessionID, ErrAccountBanned, nil)
		return nil, ErrAccountBanned
	}
	if rec.Status == AccountDisabled {
		e.metrics.Inc(MetricTokenRejected)
		e.emitAudit(ctx, auditEventTokenRejected, false, rec.UserID, sess.SessionID, ErrAccountDisabled, nil)
		return nil, ErrAccountDisabled
	}

	summary := summaryOf(rec)
	return &summary, nil
}

// Logout revokes a single session. Revoking an unknown session is not an
// error.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := e.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}

	e.metrics.Inc(MetricLogout)
	e.metrics.Inc(MetricSessionInvalidated)
	e.emitAudit(ctx, auditEventLogoutSession, true, "", sessionID, nil, nil)
	return nil
}

// LogoutAll revokes every session of a user.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}

	if err := e.sessions.DeleteAllForUser(ctx, userID); err != nil {
		return err
	}

	e.metrics.Inc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, userID, "", nil, nil)
	return nil
}

// Metrics exposes the engine's counters.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// AuditDropped reports how many audit events the dispatcher discarded
// because its buffer was full.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}

// Ping checks the Redis backend.
func (e *Engine) Ping(ctx context.Context) error {
	return e.sessions.Ping(ctx)
}

// Close drains and stops the audit dispatcher.
func (e *Engine) Close() {
	e.audit.Close()
}

// openSession creates a session and its mirrored token for an
// authenticated account.
func (e *Engine) openSession(ctx context.Context, rec CredentialRecord) (*AuthResult, error) {
	if e.config.Session.SingleSessionPerUser {
		if err := e.sessions.DeleteAllForUser(ctx, rec.UserID); err != nil {
			return nil, err
		}
	}

	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, ErrSessionCreationFailed
	}

	now := time.Now()
	expiresAt := now.Add(e.config.Session.Lifetime)

	sess := &session.Session{
		SessionID: sid.String(),
		UserID:    rec.UserID,
		Role:      rec.Role,
		IP:        clientIPFromContext(ctx),
		Client:    clientStringFromContext(ctx),
		Fingerprint: internal.Fingerprint(
			clientIPFromContext(ctx),
			clientStringFromContext(ctx),
			acceptLanguageFromContext(ctx),
		),
		CreatedAt: now.Unix(),
		ExpiresAt: expiresAt.Unix(),
	}

	if err := e.sessions.Save(ctx, sess, e.config.Session.Lifetime); err != nil {
		return nil, ErrSessionCreationFailed
	}

	tok, err := e.tokens.Create(rec.UserID, sess.SessionID, rec.Role, expiresAt)
	if err != nil {
		_ = e.sessions.Delete(ctx, sess.SessionID)
		return nil, ErrSessionCreationFailed
	}

	e.metrics.Inc(MetricSessionCreated)

	return &AuthResult{
		Token:     tok,
		SessionID: sess.SessionID,
		ExpiresAt: expiresAt,
		User:      summaryOf(rec),
	}, nil
}

// maybeRehashPassword transparently upgrades a stored hash whose
// parameters fall behind the configured cost. Best effort; login proceeds
// either way.
func (e *Engine) maybeRehashPassword(ctx context.Context, rec CredentialRecord, pass string) {
	upgrade, err := e.passwords.NeedsRehash(rec.PasswordHash)
	if err != nil || !upgrade {
		return
	}

	newHash, err := e.passwords.Hash(pass)
	if err != nil {
		return
	}
	_ = e.provider.UpdatePasswordHash(ctx, rec.UserID, newHash)
}

func normalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
