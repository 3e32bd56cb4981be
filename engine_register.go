package vaultgate

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

const (
	registerRatePrefix = "vrg:"

	minUsernameLength = 3
	maxUsernameLength = 32
	minMobileDigits   = 7
	maxMobileDigits   = 15
)

// Register creates an account. The email, and the mobile number when one
// is supplied, must each hold a live verified marker from the code gate;
// success consumes the markers and opens a session for the new account.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	if !e.config.Register.Enabled {
		return nil, ErrRegistrationDisabled
	}

	req.Email = normalizeIdentifier(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	req.Mobile = strings.TrimSpace(req.Mobile)

	if err := e.validateRegisterRequest(req); err != nil {
		e.metrics.Inc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", err, nil)
		return nil, err
	}

	if ip := clientIPFromContext(ctx); ip != "" {
		allowed, err := e.limiter.allow(ctx, registerRatePrefix+ip, e.config.Register.MaxPerWindow, e.config.Register.Window)
		if err != nil {
			return nil, err
		}
		if !allowed {
			e.metrics.Inc(MetricRegisterFailure)
			e.emitRateLimit(ctx, "register", nil)
			return nil, ErrRegistrationRateLimited
		}
	}

	if err := e.checkVerifiedChannels(ctx, req); err != nil {
		e.metrics.Inc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", err, nil)
		return nil, err
	}

	hash, err := e.passwords.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = e.config.Register.DefaultRole
	}

	rec, err := e.provider.Create(ctx, CreateCredentialInput{
		Email:        req.Email,
		Username:     req.Username,
		Mobile:       req.Mobile,
		PasswordHash: hash,
		Role:         role,
		Status:       AccountActive,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateIdentifier) {
			e.metrics.Inc(MetricRegisterFailure)
			e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", ErrAccountExists, nil)
			return nil, ErrAccountExists
		}
		return nil, err
	}

	// The markers are single use: a second registration must re-verify.
	_ = e.verifications.ClearVerified(ctx, ChannelEmail, req.Email)
	if req.Mobile != "" {
		_ = e.verifications.ClearVerified(ctx, ChannelMobile, req.Mobile)
	}

	result, err := e.openSession(ctx, rec)
	if err != nil {
		e.emitAudit(ctx, auditEventRegisterFailure, false, rec.UserID, "", err, nil)
		return nil, err
	}

	e.metrics.Inc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, rec.UserID, result.SessionID, nil, func() map[string]string {
		return map[string]string{"role": role}
	})

	return result, nil
}

func (e *Engine) validateRegisterRequest(req RegisterRequest) error {
	if req.Email == "" {
		return fmt.Errorf("%w: email required", ErrValidation)
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return fmt.Errorf("%w: malformed email", ErrValidation)
	}

	if n := len(req.Username); n < minUsernameLength || n > maxUsernameLength {
		return fmt.Errorf("%w: username length", ErrValidation)
	}
	for _, r := range req.Username {
		if !isUsernameRune(r) {
			return fmt.Errorf("%w: username characters", ErrValidation)
		}
	}

	if req.Mobile != "" {
		if err := validateMobile(req.Mobile); err != nil {
			return err
		}
	}

	if len(req.Password) < e.config.Password.MinLength {
		return ErrPasswordPolicy
	}

	return nil
}

func (e *Engine) checkVerifiedChannels(ctx context.Context, req RegisterRequest) error {
	verified, err := e.verifications.IsVerified(ctx, ChannelEmail, req.Email)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}
	if !verified {
		return ErrEmailNotVerified
	}

	if req.Mobile != "" {
		verified, err := e.verifications.IsVerified(ctx, ChannelMobile, req.Mobile)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
		}
		if !verified {
			return ErrMobileNotVerified
		}
	}

	return nil
}

func validateMobile(mobile string) error {
	if n := len(mobile); n < minMobileDigits || n > maxMobileDigits {
		return fmt.Errorf("%w: mobile length", ErrValidation)
	}
	for _, r := range mobile {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: mobile must be digits", ErrValidation)
		}
	}
	return nil
}

func isUsernameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_', r == '-', r == '.':
		return true
	default:
		return false
	}
}
