package goMFA

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/goMFA/internal"
	"github.com/MrEthical07/goMFA/jwt"
	"github.com/MrEthical07/goMFA/password"
	"github.com/MrEthical07/goMFA/session"
	"github.com/MrEthical07/goMFA/totp"
)

// Engine runs the password and TOTP state machine. Methods are safe for
// concurrent use after Builder.Build.
type Engine struct {
	config    Config
	users     UserStore
	sessions  *session.Store
	hasher    password.Hasher
	dummyHash string
	totp      *totp.Manager
	qr        QRRenderer
	tokens    *jwt.Manager
	audit     *auditDispatcher
	metrics   *Metrics
	logger    *slog.Logger
	clock     func() time.Time
}

// Close flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports events that never reached the sink because the
// audit queue was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditDroppedByEvent breaks AuditDropped down by event type.
func (e *Engine) AuditDroppedByEvent() map[string]uint64 {
	if e == nil {
		return map[string]uint64{}
	}
	return e.audit.DroppedByEvent()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock()
}

// Ping checks the session backend.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}
	if _, err := e.sessions.Ping(ctx); err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}

// Register creates an account with MFA inactive. It has no session side
// effect.
func (e *Engine) Register(ctx context.Context, username, password string) error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}

	if strings.TrimSpace(username) == "" || len(username) > e.config.Login.MaxUsernameLength {
		e.failRegister(ctx, username, auditErrInvalidInput)
		return ErrInvalidRegistration
	}
	if len(password) < e.config.Password.MinLength || len(password) > e.config.Password.MaxLength {
		e.failRegister(ctx, username, auditErrInvalidInput)
		return ErrInvalidRegistration
	}

	hash, err := e.hasher.Hash(password)
	if err != nil {
		e.logger.ErrorContext(ctx, "password hashing failed", "op", "register", "username", username, "error", err)
		e.failRegister(ctx, username, auditErrInternal)
		return errors.Join(ErrStoreFailure, err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	err = e.users.CreateUser(ctx, UserRecord{
		Username:     username,
		PasswordHash: hash,
		MFAActive:    false,
		TOTPSecret:   "",
		CreatedAt:    e.now().UTC(),
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrDuplicateUsername):
		e.metricInc(MetricRegisterDuplicate)
		e.logger.InfoContext(ctx, "registration rejected", "username", username, "reason", auditErrDuplicate)
		e.emitAudit(ctx, auditEventRegisterFailure, false, username, "", auditErrDuplicate, nil)
		return ErrDuplicateUsername
	default:
		e.storeFailure(ctx, "register", username, "", err)
		return errors.Join(ErrStoreFailure, err)
	}

	e.metricInc(MetricRegisterSuccess)
	e.logger.InfoContext(ctx, "user registered", "username", username)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, username, "", "", nil)
	return nil
}

func (e *Engine) failRegister(ctx context.Context, username string, code AuditErrorCode) {
	e.metricInc(MetricRegisterInvalid)
	e.logger.InfoContext(ctx, "registration rejected", "username", username, "reason", code)
	e.emitAudit(ctx, auditEventRegisterFailure, false, username, "", code, nil)
}

// Login verifies the password and establishes a session at
// PASSWORD_VERIFIED. Unknown users and wrong passwords both yield
// ErrInvalidCredentials after the same hashing work.
func (e *Engine) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if e == nil || e.users == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	rec, err := e.users.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// equalize timing with the known-user branch
			_, _ = e.hasher.Verify(password, e.dummyHash)
			e.failLogin(ctx, username, auditErrUserNotFound)
			return nil, ErrInvalidCredentials
		}
		e.storeFailure(ctx, "login", username, "", err)
		return nil, errors.Join(ErrStoreFailure, err)
	}

	ok, err := e.hasher.Verify(password, rec.PasswordHash)
	if err != nil {
		e.logger.ErrorContext(ctx, "stored password hash unusable", "op", "login", "username", username, "error", err)
		e.failLogin(ctx, username, auditErrInternal)
		return nil, errors.Join(ErrStoreFailure, err)
	}
	if !ok {
		e.failLogin(ctx, username, auditErrPasswordMismatch)
		return nil, ErrInvalidCredentials
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sess, err := e.newSession(ctx, rec.Username)
	if err != nil {
		return nil, err
	}

	result := &LoginResult{
		SessionID: sess.ID,
		Username:  rec.Username,
		MFAActive: rec.MFAActive,
	}

	if !rec.MFAActive && e.config.Login.IssueTokenWithoutMFA {
		token, err := e.issueToken(ctx, rec.Username, sess.ID)
		if err != nil {
			return nil, err
		}
		result.Token = token
	}

	e.metricInc(MetricLoginSuccess)
	e.logger.InfoContext(ctx, "password verified", "username", rec.Username, "session_id", sess.ID, "mfa_active", rec.MFAActive)
	e.emitAudit(ctx, auditEventLoginSuccess, true, rec.Username, sess.ID, "", func() map[string]string {
		if rec.MFAActive {
			return map[string]string{"next": "totp"}
		}
		return nil
	})

	return result, nil
}

func (e *Engine) failLogin(ctx context.Context, username string, code AuditErrorCode) {
	e.metricInc(MetricLoginFailure)
	e.logger.InfoContext(ctx, "login rejected", "username", username, "reason", code)
	e.emitAudit(ctx, auditEventLoginFailure, false, username, "", code, nil)
}

func (e *Engine) newSession(ctx context.Context, username string) (*session.Session, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		e.storeFailure(ctx, "session_create", username, "", err)
		return nil, errors.Join(ErrStoreFailure, err)
	}

	sess := &session.Session{
		ID:        sid.String(),
		Username:  username,
		Level:     session.LevelPasswordVerified,
		CreatedAt: e.now().Unix(),
	}
	if err := e.sessions.Save(ctx, sess); err != nil {
		e.storeFailure(ctx, "session_create", username, sess.ID, err)
		return nil, errors.Join(ErrStoreFailure, err)
	}

	e.metricInc(MetricSessionCreated)
	return sess, nil
}

// Session resolves a session ID. Unknown, expired and malformed IDs all
// yield ErrUnauthenticated.
func (e *Engine) Session(ctx context.Context, sessionID string) (*session.Session, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}
	if _, err := internal.ParseSessionID(sessionID); err != nil {
		e.metricInc(MetricSessionRejected)
		return nil, ErrUnauthenticated
	}

	sess, err := e.sessions.Get(ctx, sessionID)
	switch {
	case err == nil:
		return sess, nil
	case errors.Is(err, session.ErrNotFound):
		e.metricInc(MetricSessionRejected)
		return nil, ErrUnauthenticated
	case errors.Is(err, session.ErrCorrupt):
		e.metricInc(MetricSessionRejected)
		e.logger.WarnContext(ctx, "corrupt session discarded", "session_id", sessionID, "error", err)
		e.emitAudit(ctx, auditEventSessionRejected, false, "", sessionID, auditErrInternal, nil)
		return nil, ErrUnauthenticated
	default:
		e.storeFailure(ctx, "session_get", "", sessionID, err)
		return nil, errors.Join(ErrStoreFailure, err)
	}
}

// liveSession re-reads sess from the store so a value held past logout or
// expiry cannot act for its owner.
func (e *Engine) liveSession(ctx context.Context, op string, sess *session.Session) error {
	stored, err := e.sessions.Get(ctx, sess.ID)
	switch {
	case err == nil:
		if stored.Username != sess.Username {
			e.metricInc(MetricSessionRejected)
			return ErrUnauthenticated
		}
		return nil
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrCorrupt):
		e.metricInc(MetricSessionRejected)
		return ErrUnauthenticated
	default:
		e.storeFailure(ctx, op, sess.Username, sess.ID, err)
		return errors.Join(ErrStoreFailure, err)
	}
}

// Status reports the owner and level of sess.
func (e *Engine) Status(ctx context.Context, sess *session.Session) (*AuthStatus, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	if err := requireLevel(sess, session.LevelPasswordVerified); err != nil {
		return nil, err
	}

	rec, err := e.loadSessionUser(ctx, "status", sess)
	if err != nil {
		return nil, err
	}

	return &AuthStatus{
		Username:  rec.Username,
		MFAActive: rec.MFAActive,
		Level:     sess.Level,
	}, nil
}

// Logout deletes sess. A session that is already gone is rejected with
// ErrUnauthenticated. Tokens already issued stay valid until expiry.
func (e *Engine) Logout(ctx context.Context, sess *session.Session) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}
	if sess == nil || sess.ID == "" {
		return ErrUnauthenticated
	}

	deleted, err := e.sessions.Delete(ctx, sess.ID)
	if err != nil {
		e.storeFailure(ctx, "logout", sess.Username, sess.ID, err)
		return errors.Join(ErrStoreFailure, err)
	}
	if !deleted {
		e.metricInc(MetricSessionRejected)
		return ErrUnauthenticated
	}

	e.metricInc(MetricLogout)
	e.logger.InfoContext(ctx, "session ended", "username", sess.Username, "session_id", sess.ID)
	e.emitAudit(ctx, auditEventLogoutSession, true, sess.Username, sess.ID, "", nil)
	return nil
}

// Authorize reports whether sess may perform MFA-protected actions. A
// session that only passed the password step is refused when its owner has
// MFA active.
func (e *Engine) Authorize(ctx context.Context, sess *session.Session) error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}
	if err := requireLevel(sess, session.LevelPasswordVerified); err != nil {
		return err
	}

	rec, err := e.loadSessionUser(ctx, "authorize", sess)
	if err != nil {
		return err
	}

	if rec.MFAActive && sess.Level < session.LevelMFAVerified {
		e.metricInc(MetricMFAStepRequired)
		e.emitAudit(ctx, auditEventMFARequired, false, sess.Username, sess.ID, auditErrMFARequired, nil)
		return ErrUnauthorizedMFAStep
	}
	return nil
}

// ValidateToken verifies a bearer token against the configured key and clock.
func (e *Engine) ValidateToken(ctx context.Context, token string) (*TokenClaims, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
		defer func() {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}()
	}

	claims, err := e.tokens.Verify(token)
	if err != nil {
		mapped := mapTokenError(err)
		e.metricInc(MetricTokenRejected)
		e.logger.DebugContext(ctx, "token rejected", "reason", auditErrorCode(mapped))
		return nil, mapped
	}

	out := &TokenClaims{
		Subject: claims.Subject,
		TokenID: claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrInvalidSignature):
		return ErrTokenInvalidSignature
	default:
		return ErrTokenMalformed
	}
}

func (e *Engine) issueToken(ctx context.Context, username, sessionID string) (*IssuedToken, error) {
	signed, claims, err := e.tokens.Issue(username)
	if err != nil {
		e.logger.ErrorContext(ctx, "token signing failed", "username", username, "error", err)
		e.emitAudit(ctx, auditEventBackendFailure, false, username, sessionID, auditErrInternal, nil)
		return nil, errors.Join(ErrStoreFailure, err)
	}

	e.metricInc(MetricTokenIssued)
	e.emitAudit(ctx, auditEventTokenIssued, true, username, sessionID, "", func() map[string]string {
		return map[string]string{"jti": claims.ID}
	})
	return &IssuedToken{Token: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// loadSessionUser fetches the owner of sess. A session whose user vanished
// is treated as unauthenticated.
func (e *Engine) loadSessionUser(ctx context.Context, op string, sess *session.Session) (*UserRecord, error) {
	rec, err := e.users.GetUser(ctx, sess.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.logger.WarnContext(ctx, "session owner missing", "op", op, "username", sess.Username, "session_id", sess.ID)
			return nil, ErrUnauthenticated
		}
		e.storeFailure(ctx, op, sess.Username, sess.ID, err)
		return nil, errors.Join(ErrStoreFailure, err)
	}
	return rec, nil
}

func (e *Engine) storeFailure(ctx context.Context, op, username, sessionID string, err error) {
	code := auditErrStoreFailure
	if errors.Is(err, session.ErrRedisUnavailable) {
		code = auditErrSessionUnavailable
	}
	e.metricInc(MetricStoreFailure)
	e.logger.ErrorContext(ctx, "backend failure", "op", op, "username", username, "session_id", sessionID, "reason", code, "error", err)
	e.emitAudit(ctx, auditEventBackendFailure, false, username, sessionID, code, func() map[string]string {
		return map[string]string{"op": op}
	})
}

func requireLevel(sess *session.Session, min session.Level) error {
	if sess == nil || sess.ID == "" || sess.Username == "" {
		return ErrUnauthenticated
	}
	if sess.Level < min {
		return ErrUnauthenticated
	}
	return nil
}
