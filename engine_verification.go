package vaultgate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/solenlabs/vaultgate/internal"
)

// SendCode issues a fresh one-time code for (channel, target) and returns
// it for the caller to deliver. Issuing supersedes any code previously
// outstanding for the same pair; only the newest code is ever accepted.
func (e *Engine) SendCode(ctx context.Context, channel Channel, target string) (string, error) {
	target = normalizeIdentifier(target)
	if !channel.valid() || target == "" {
		return "", fmt.Errorf("%w: verification channel or target", ErrValidation)
	}

	allowed, err := e.limiter.allow(
		ctx,
		e.verifications.issueKey(channel, target),
		e.config.Verification.MaxIssuePerWindow,
		e.config.Verification.IssueWindow,
	)
	if err != nil {
		return "", err
	}
	if !allowed {
		e.emitRateLimit(ctx, "verification_issue", func() map[string]string {
			return map[string]string{"channel": string(channel)}
		})
		return "", ErrCodeRateLimited
	}

	code, err := internal.NewCode(e.config.Verification.CodeDigits)
	if err != nil {
		return "", err
	}

	record := &verificationRecord{
		CodeHash:  internal.HashCode(code),
		ExpiresAt: time.Now().Add(e.config.Verification.CodeTTL).Unix(),
	}
	if err := e.verifications.Save(ctx, channel, target, record, e.config.Verification.CodeTTL); err != nil {
		return "", fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}

	e.metrics.Inc(MetricCodeIssued)
	e.emitAudit(ctx, auditEventCodeIssued, true, "", "", nil, func() map[string]string {
		return map[string]string{"channel": string(channel)}
	})

	return code, nil
}

// ConfirmCode consumes the live code for (channel, target). A correct code
// is single use and leaves behind a verified marker; an unknown, expired,
// superseded, or mismatched code is reported uniformly as invalid.
func (e *Engine) ConfirmCode(ctx context.Context, channel Channel, target, code string) error {
	target = normalizeIdentifier(target)
	if !channel.valid() || target == "" || code == "" {
		return fmt.Errorf("%w: verification channel, target, or code", ErrValidation)
	}

	err := e.verifications.Consume(ctx, channel, target, internal.HashCode(code), e.config.Verification.MaxAttempts)
	if err != nil {
		mapped := mapVerificationError(err)
		e.metrics.Inc(MetricCodeFailed)
		e.emitAudit(ctx, auditEventCodeFailed, false, "", "", mapped, func() map[string]string {
			return map[string]string{"channel": string(channel)}
		})
		return mapped
	}

	if err := e.verifications.MarkVerified(ctx, channel, target, e.config.Verification.VerifiedTTL); err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}

	e.metrics.Inc(MetricCodeConfirmed)
	e.emitAudit(ctx, auditEventCodeConfirmed, true, "", "", nil, func() map[string]string {
		return map[string]string{"channel": string(channel)}
	})

	return nil
}

// VerificationStatus reports which channels of a prospective account hold
// a live verified marker. Empty targets report false.
func (e *Engine) VerificationStatus(ctx context.Context, email, mobile string) (VerificationStatus, error) {
	var status VerificationStatus

	if email = normalizeIdentifier(email); email != "" {
		verified, err := e.verifications.IsVerified(ctx, ChannelEmail, email)
		if err != nil {
			return status, fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
		}
		status.EmailVerified = verified
	}

	if mobile = normalizeIdentifier(mobile); mobile != "" {
		verified, err := e.verifications.IsVerified(ctx, ChannelMobile, mobile)
		if err != nil {
			return status, fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
		}
		status.MobileVerified = verified
	}

	return status, nil
}

func mapVerificationError(err error) error {
	switch {
	case errors.Is(err, errCodeNotFound), errors.Is(err, errCodeMismatch):
		return ErrCodeInvalid
	case errors.Is(err, errCodeAttemptsExceeded):
		return ErrCodeAttempts
	default:
		return fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}
}
