package vaultgate

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ChangePassword rotates the password behind a live session. The caller
// must present a valid token and the current password; every other live
// session of the account stays valid.
func (e *Engine) ChangePassword(ctx context.Context, tokenStr, oldPass, newPass string) error {
	claims, err := e.tokens.Parse(tokenStr)
	if err != nil {
		e.metrics.Inc(MetricTokenRejected)
		e.emitAudit(ctx, auditEventTokenRejected, false, "", "", ErrTokenInvalid, nil)
		return ErrTokenInvalid
	}

	sess, err := e.sessions.Get(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			e.metrics.Inc(MetricTokenRejected)
			e.emitAudit(ctx, auditEventTokenRejected, false, claims.UID, claims.SID, ErrSessionNotFound, nil)
			return ErrSessionNotFound
		}
		return err
	}
	if sess.UserID != claims.UID {
		e.metrics.Inc(MetricTokenRejected)
		e.emitAudit(ctx, auditEventTokenRejected, false, claims.UID, claims.SID, ErrTokenInvalid, nil)
		return ErrTokenInvalid
	}

	rec, err := e.provider.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			_ = e.sessions.Delete(ctx, sess.SessionID)
			return ErrSessionNotFound
		}
		return err
	}

	ok, err := e.passwords.Verify(oldPass, rec.PasswordHash)
	if err != nil || !ok {
		e.emitAudit(ctx, auditEventPasswordFailure, false, rec.UserID, sess.SessionID, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if newPass == oldPass {
		e.emitAudit(ctx, auditEventPasswordFailure, false, rec.UserID, sess.SessionID, ErrPasswordPolicy, nil)
		return fmt.Errorf("%w: new password must differ from the current one", ErrPasswordPolicy)
	}
	if len(newPass) < e.config.Password.MinLength {
		e.emitAudit(ctx, auditEventPasswordFailure, false, rec.UserID, sess.SessionID, ErrPasswordPolicy, nil)
		return fmt.Errorf("%w: minimum length %d", ErrPasswordPolicy, e.config.Password.MinLength)
	}

	newHash, err := e.passwords.Hash(newPass)
	if err != nil {
		return err
	}
	if err := e.provider.UpdatePasswordHash(ctx, rec.UserID, newHash); err != nil {
		return err
	}

	// Best effort: a stale failure counter should not survive a rotation.
	_ = e.lockouts.Reset(ctx, normalizeIdentifier(rec.Email))

	e.metrics.Inc(MetricPasswordChanged)
	e.emitAudit(ctx, auditEventPasswordChanged, true, rec.UserID, sess.SessionID, nil, nil)
	return nil
}
