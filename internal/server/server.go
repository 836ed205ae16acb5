package server

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zombor/veripay/internal/receipt"
	"github.com/zombor/veripay/internal/reconcile"
)

// Server handles HTTP requests for captures, statements and reconciliations
type Server struct {
	receipts   *receipt.Service
	reconciler *reconcile.Service
	basicAuth  BasicAuth
	mux        *http.ServeMux
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(receipts *receipt.Service, reconciler *reconcile.Service, basicAuth BasicAuth) *Server {
	return NewServerWithMux(receipts, reconciler, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(receipts *receipt.Service, reconciler *reconcile.Service, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		receipts:   receipts,
		reconciler: reconciler,
		basicAuth:  basicAuth,
		mux:        mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true
	}

	user, pass, ok := basicCredentials(r.Header.Get("Authorization"))
	if !ok {
		return false
	}
	return user == s.basicAuth.Username && pass == s.basicAuth.Password
}

func basicCredentials(header string) (string, string, bool) {
	if !strings.HasPrefix(header, "Basic ") {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "Basic "))
	if err != nil {
		return "", "", false
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	return user, pass, ok
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		// Preflight requests never reach the routes
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Veripay"`)
			corsError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// operator is the authenticated user, recorded as the capturer when the
// request does not name one.
func (s *Server) operator(r *http.Request, given string) string {
	if given = strings.TrimSpace(given); given != "" {
		return given
	}
	if user, _, ok := basicCredentials(r.Header.Get("Authorization")); ok {
		return user
	}
	return "unknown"
}

// registerRoutes registers all API routes on the server's mux
// Routes must be registered from most specific to least specific to avoid conflicts
func (s *Server) registerRoutes() {
	// Captured records
	s.mux.HandleFunc("GET /api/records/{id}/evidence", s.requireAuth(s.handleGetEvidence))
	s.mux.HandleFunc("GET /api/records/{id}", s.requireAuth(s.handleGetRecord))
	s.mux.HandleFunc("GET /api/records", s.requireAuth(s.handleListRecords))

	// Captures
	s.mux.HandleFunc("POST /api/receipts/text", s.requireAuth(s.handleCaptureText))
	s.mux.HandleFunc("POST /api/receipts", s.requireAuth(s.handleCaptureImage))

	// Statements and reconciliation
	s.mux.HandleFunc("GET /api/statements", s.requireAuth(s.handleListStatements))
	s.mux.HandleFunc("POST /api/statements", s.requireAuth(s.handleUploadStatement))
	s.mux.HandleFunc("POST /api/reconciliations", s.requireAuth(s.handleReconcile))

	s.mux.Handle("GET /metrics", promhttp.Handler())
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, s.corsMiddleware(s.mux))
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.corsMiddleware(s.mux).ServeHTTP(w, r)
}
