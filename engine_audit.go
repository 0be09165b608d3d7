package goMFA

import (
	"context"
	"errors"
)

const (
	auditEventRegisterSuccess  = "register_success"
	auditEventRegisterFailure  = "register_failure"
	auditEventLoginSuccess     = "login_success"
	auditEventLoginFailure     = "login_failure"
	auditEventLogoutSession    = "logout_session"
	auditEventTOTPSetup        = "totp_setup"
	auditEventTOTPSuccess      = "totp_success"
	auditEventTOTPFailure      = "totp_failure"
	auditEventTOTPReset        = "totp_reset"
	auditEventMFARequired      = "mfa_required"
	auditEventTokenIssued      = "token_issued"
	auditEventTokenRejected    = "token_rejected"
	auditEventSessionRejected  = "session_rejected"
	auditEventBackendFailure   = "backend_failure"
	auditEventTOTPSetupFailure = "totp_setup_failure"
)

var auditEventTypes = []string{
	auditEventRegisterSuccess,
	auditEventRegisterFailure,
	auditEventLoginSuccess,
	auditEventLoginFailure,
	auditEventLogoutSession,
	auditEventTOTPSetup,
	auditEventTOTPSuccess,
	auditEventTOTPFailure,
	auditEventTOTPReset,
	auditEventMFARequired,
	auditEventTokenIssued,
	auditEventTokenRejected,
	auditEventSessionRejected,
	auditEventBackendFailure,
	auditEventTOTPSetupFailure,
}

// AuditErrorCode is the internal failure reason attached to audit events.
// These codes are never returned to callers.
type AuditErrorCode string

const (
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrPasswordMismatch   AuditErrorCode = "password_mismatch"
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrUnauthenticated    AuditErrorCode = "unauthenticated"
	auditErrMFARequired        AuditErrorCode = "mfa_required"
	auditErrTOTPMismatch       AuditErrorCode = "totp_mismatch"
	auditErrTOTPMalformed      AuditErrorCode = "totp_malformed"
	auditErrTOTPNotConfigured  AuditErrorCode = "totp_not_configured"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrTokenSignature     AuditErrorCode = "token_signature"
	auditErrTokenMalformed     AuditErrorCode = "token_malformed"
	auditErrStoreFailure       AuditErrorCode = "store_failure"
	auditErrSessionUnavailable AuditErrorCode = "session_backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	username string,
	sessionID string,
	code AuditErrorCode,
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
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Username:  username,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Error:     string(code),
		Metadata:  metadata,
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrInvalidRegistration):
		return auditErrInvalidInput
	case errors.Is(err, ErrDuplicateUsername):
		return auditErrDuplicate
	case errors.Is(err, ErrUnauthenticated):
		return auditErrUnauthenticated
	case errors.Is(err, ErrUnauthorizedMFAStep):
		return auditErrMFARequired
	case errors.Is(err, ErrTOTPNotConfigured):
		return auditErrTOTPNotConfigured
	case errors.Is(err, ErrInvalidTOTP):
		return auditErrTOTPMismatch
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenInvalidSignature):
		return auditErrTokenSignature
	case errors.Is(err, ErrTokenMalformed):
		return auditErrTokenMalformed
	case errors.Is(err, ErrStoreFailure):
		return auditErrStoreFailure
	default:
		return auditErrInternal
	}
}
