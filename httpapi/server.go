package httpapi

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	goMFA "github.com/MrEthical07/goMFA"
	"github.com/MrEthical07/goMFA/middleware"
)

const maxBodyBytes = 1 << 20

// Options configures the HTTP surface.
type Options struct {
	CookieName   string
	CookieSecure bool
	// TrustProxy takes the client IP from the first X-Forwarded-For entry.
	TrustProxy bool
	Logger     *slog.Logger
	// Metrics, when set, is mounted at GET /metrics.
	Metrics http.Handler
}

type Server struct {
	engine *goMFA.Engine
	opts   Options
	logger *slog.Logger
}

func New(engine *goMFA.Engine, opts Options) *Server {
	if opts.CookieName == "" {
		opts.CookieName = "mfa_session"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{engine: engine, opts: opts, logger: logger}
}

// Handler returns the routed handler with client-IP and access logging
// applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	withSession := middleware.RequireSession(s.engine, s.opts.CookieName, false)
	withMFA := middleware.RequireSession(s.engine, s.opts.CookieName, true)

	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.Handle("GET /auth/status", withSession(http.HandlerFunc(s.handleStatus)))
	mux.Handle("POST /auth/logout", withSession(http.HandlerFunc(s.handleLogout)))
	mux.Handle("POST /auth/2fa/setup", withSession(http.HandlerFunc(s.handleSetup)))
	mux.Handle("POST /auth/2fa/verify", withSession(http.HandlerFunc(s.handleVerify)))
	mux.Handle("POST /auth/2fa/reset", withSession(http.HandlerFunc(s.handleReset)))
	mux.Handle("GET /auth/session/secure", withMFA(http.HandlerFunc(s.handleSecure)))
	mux.Handle("GET /auth/me", middleware.Guard(s.engine)(http.HandlerFunc(s.handleMe)))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.opts.Metrics != nil {
		mux.Handle("GET /metrics", s.opts.Metrics)
	}

	return s.accessLog(s.clientIP(mux))
}

func (s *Server) clientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := remoteIP(r, s.opts.TrustProxy)
		next.ServeHTTP(w, r.WithContext(goMFA.WithClientIP(r.Context(), ip)))
	})
}

func remoteIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.LogAttrs(r.Context(), slog.LevelDebug, "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}
