package httpapi

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	goMFA "github.com/MrEthical07/goMFA"
	"github.com/MrEthical07/goMFA/middleware"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Code string `json:"code"`
	// Token is accepted as an alias for Code.
	Token string `json:"token"`
}

type loginResponse struct {
	Username    string     `json:"username"`
	IsMFAActive bool       `json:"isMfaActive"`
	Token       string     `json:"token,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

type statusResponse struct {
	Username    string `json:"username"`
	IsMFAActive bool   `json:"isMfaActive"`
	Level       string `json:"level"`
}

type setupResponse struct {
	Secret  string `json:"secret"`
	URI     string `json:"uri"`
	QRImage string `json:"qrImage"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := s.engine.Register(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, map[string]string{"message": "user registered"})
	case errors.Is(err, goMFA.ErrInvalidRegistration):
		writeError(w, http.StatusBadRequest, "invalid username or password")
	case errors.Is(err, goMFA.ErrDuplicateUsername):
		writeError(w, http.StatusConflict, "username already exists")
	default:
		s.internalError(w, r, "register", err)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.engine.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, goMFA.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		s.internalError(w, r, "login", err)
		return
	}

	s.setSessionCookie(w, res.SessionID)

	out := loginResponse{Username: res.Username, IsMFAActive: res.MFAActive}
	if res.Token != nil {
		out.Token = res.Token.Token
		out.ExpiresAt = &res.Token.ExpiresAt
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())

	st, err := s.engine.Status(r.Context(), sess)
	if err != nil {
		s.sessionError(w, r, "status", err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Username:    st.Username,
		IsMFAActive: st.MFAActive,
		Level:       st.Level.String(),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())

	if err := s.engine.Logout(r.Context(), sess); err != nil {
		s.sessionError(w, r, "logout", err)
		return
	}
	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())

	p, err := s.engine.BeginProvisioning(r.Context(), sess)
	if err != nil {
		s.sessionError(w, r, "totp_setup", err)
		return
	}
	writeJSON(w, http.StatusOK, setupResponse{
		Secret:  p.Secret,
		URI:     p.URI,
		QRImage: "data:image/png;base64," + base64.StdEncoding.EncodeToString(p.QRImage),
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())

	var req verifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	code := req.Code
	if code == "" {
		code = req.Token
	}

	tok, err := s.engine.VerifyTOTP(r.Context(), sess, code)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, tokenResponse{Token: tok.Token, ExpiresAt: tok.ExpiresAt})
	case errors.Is(err, goMFA.ErrInvalidTOTP):
		writeError(w, http.StatusBadRequest, "invalid code")
	case errors.Is(err, goMFA.ErrTOTPNotConfigured):
		writeError(w, http.StatusBadRequest, "two-factor authentication is not set up")
	default:
		s.sessionError(w, r, "totp_verify", err)
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())

	if err := s.engine.ResetMFA(r.Context(), sess); err != nil {
		s.sessionError(w, r, "totp_reset", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "two-factor authentication reset"})
}

// handleSecure is reachable only once the session has cleared every step its
// owner requires.
func (s *Server) handleSecure(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{
		"username": sess.Username,
		"level":    sess.Level.String(),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"username":  claims.Subject,
		"expiresAt": claims.ExpiresAt,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ping(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
