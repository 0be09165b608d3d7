package goMFA

import (
	"context"
	"errors"

	"github.com/MrEthical07/goMFA/session"
)

// BeginProvisioning generates a new TOTP secret for the session owner,
// stores it with MFA active, and returns the secret, its otpauth URI and a
// QR image. Calling it again replaces the secret. The session level is not
// changed.
func (e *Engine) BeginProvisioning(ctx context.Context, sess *session.Session) (*Provisioning, error) {
	if e == nil || e.users == nil || e.sessions == nil || e.totp == nil {
		return nil, ErrEngineNotReady
	}
	if err := requireLevel(sess, session.LevelPasswordVerified); err != nil {
		return nil, err
	}
	if err := e.liveSession(ctx, "totp_setup", sess); err != nil {
		return nil, err
	}

	secret, err := e.totp.GenerateSecret()
	if err != nil {
		e.failSetup(ctx, sess, err)
		return nil, errors.Join(ErrStoreFailure, err)
	}
	uri := e.totp.ProvisioningURI(secret, sess.Username, "")

	// render before persisting so a failed render leaves the account unchanged
	image, err := e.qr.Render(uri)
	if err != nil {
		e.failSetup(ctx, sess, err)
		return nil, errors.Join(ErrStoreFailure, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := e.users.SetTOTP(ctx, sess.Username, secret, true); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		e.storeFailure(ctx, "totp_setup", sess.Username, sess.ID, err)
		return nil, errors.Join(ErrStoreFailure, err)
	}

	e.metricInc(MetricTOTPSetup)
	e.logger.InfoContext(ctx, "totp provisioned", "username", sess.Username, "session_id", sess.ID)
	e.emitAudit(ctx, auditEventTOTPSetup, true, sess.Username, sess.ID, "", nil)

	return &Provisioning{
		Secret:  secret,
		URI:     uri,
		QRImage: image,
	}, nil
}

func (e *Engine) failSetup(ctx context.Context, sess *session.Session, err error) {
	e.logger.ErrorContext(ctx, "totp provisioning failed", "username", sess.Username, "session_id", sess.ID, "error", err)
	e.emitAudit(ctx, auditEventTOTPSetupFailure, false, sess.Username, sess.ID, auditErrInternal, nil)
}

// VerifyTOTP checks code against the owner's secret. On success the session
// is promoted to MFA_VERIFIED and a bearer token is issued. Malformed and
// wrong codes both yield ErrInvalidTOTP.
func (e *Engine) VerifyTOTP(ctx context.Context, sess *session.Session, code string) (*IssuedToken, error) {
	if e == nil || e.users == nil || e.totp == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}
	if err := requireLevel(sess, session.LevelPasswordVerified); err != nil {
		return nil, err
	}

	rec, err := e.loadSessionUser(ctx, "totp_verify", sess)
	if err != nil {
		return nil, err
	}
	if !rec.MFAActive || rec.TOTPSecret == "" {
		e.failTOTP(ctx, sess, auditErrTOTPNotConfigured)
		return nil, ErrTOTPNotConfigured
	}

	if !e.totp.WellFormed(code) {
		e.failTOTP(ctx, sess, auditErrTOTPMalformed)
		return nil, ErrInvalidTOTP
	}

	ok, err := e.totp.Verify(rec.TOTPSecret, code, e.now())
	if err != nil {
		e.storeFailure(ctx, "totp_verify", sess.Username, sess.ID, err)
		return nil, errors.Join(ErrStoreFailure, err)
	}
	if !ok {
		e.failTOTP(ctx, sess, auditErrTOTPMismatch)
		return nil, ErrInvalidTOTP
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	promoted, err := e.sessions.Promote(ctx, sess.ID, session.LevelMFAVerified)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrCorrupt) {
			return nil, ErrUnauthenticated
		}
		e.storeFailure(ctx, "totp_verify", sess.Username, sess.ID, err)
		return nil, errors.Join(ErrStoreFailure, err)
	}
	sess.Level = promoted.Level

	token, err := e.issueToken(ctx, sess.Username, sess.ID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricTOTPSuccess)
	e.logger.InfoContext(ctx, "totp verified", "username", sess.Username, "session_id", sess.ID)
	e.emitAudit(ctx, auditEventTOTPSuccess, true, sess.Username, sess.ID, "", nil)

	return token, nil
}

func (e *Engine) failTOTP(ctx context.Context, sess *session.Session, code AuditErrorCode) {
	e.metricInc(MetricTOTPFailure)
	e.logger.InfoContext(ctx, "totp rejected", "username", sess.Username, "session_id", sess.ID, "reason", code)
	e.emitAudit(ctx, auditEventTOTPFailure, false, sess.Username, sess.ID, code, nil)
}

// ResetMFA clears the owner's secret and deactivates MFA. It is idempotent.
// Existing sessions and issued tokens are not revoked.
func (e *Engine) ResetMFA(ctx context.Context, sess *session.Session) error {
	if e == nil || e.users == nil || e.sessions == nil {
		return ErrEngineNotReady
	}
	if err := requireLevel(sess, session.LevelPasswordVerified); err != nil {
		return err
	}
	if err := e.liveSession(ctx, "totp_reset", sess); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := e.users.SetTOTP(ctx, sess.Username, "", false); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUnauthenticated
		}
		e.storeFailure(ctx, "totp_reset", sess.Username, sess.ID, err)
		return errors.Join(ErrStoreFailure, err)
	}

	e.metricInc(MetricMFAReset)
	e.logger.InfoContext(ctx, "mfa reset", "username", sess.Username, "session_id", sess.ID)
	e.emitAudit(ctx, auditEventTOTPReset, true, sess.Username, sess.ID, "", nil)
	return nil
}
