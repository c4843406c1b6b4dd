package api

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/andi-frame/TeamName-KulkasKu/internal/provider"
	"github.com/andi-frame/TeamName-KulkasKu/internal/scanning"
)

const (
	// DefaultMaxUploadBytes caps multipart uploads; phone photos of receipts run large
	DefaultMaxUploadBytes = 20 << 20

	requestIDHeader = "X-Request-ID"
)

// Analyzer runs the image flows behind the HTTP endpoints
type Analyzer interface {
	Availability() provider.Availability
	IdentifyItem(ctx context.Context, data []byte, contentType string) (scanning.Identification, error)
	PredictItem(ctx context.Context, data []byte, contentType string) (scanning.Prediction, error)
	AnalyzeReceipt(ctx context.Context, data []byte, contentType string) provider.AnalysisResult
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// Options configures a Server
type Options struct {
	BasicAuth BasicAuth
	// BackendTimeout bounds the backend calls of one request; zero means no limit
	BackendTimeout time.Duration
	// MaxUploadBytes caps the request body; zero means DefaultMaxUploadBytes
	MaxUploadBytes int64
	// Metrics is served on GET /metrics when set
	Metrics http.Handler
}

// Server handles HTTP requests for the image flows
type Server struct {
	analyzer Analyzer
	opts     Options
	mux      *http.ServeMux
	handler  http.Handler
}

// NewServer creates a new Server with default mux
func NewServer(analyzer Analyzer, opts Options) *Server {
	return NewServerWithMux(analyzer, opts, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(analyzer Analyzer, opts Options, mux *http.ServeMux) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}

	s := &Server{
		analyzer: analyzer,
		opts:     opts,
		mux:      mux,
	}
	s.registerRoutes()
	s.handler = s.requestID(s.corsMiddleware(s.mux))
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	creds := s.opts.BasicAuth
	if creds.Username == "" && creds.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return false
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(creds.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(creds.Password)) == 1
	return userOK && passOK
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="KulkasKu AI"`)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r)
	}
}

// corsMiddleware adds CORS headers to every response and answers preflight requests
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		w.Header().Set("Access-Control-Expose-Headers", requestIDHeader)
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type requestIDKey struct{}

// requestID tags the request with the caller's X-Request-ID, or a fresh one,
// and echoes it back on the response.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// backendContext derives the context the backend calls of a request run under
func (s *Server) backendContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.opts.BackendTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.opts.BackendTimeout)
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleHealth)

	s.mux.HandleFunc("POST /identify-item", s.requireAuth(s.handleIdentifyItem))
	s.mux.HandleFunc("POST /predict-item", s.requireAuth(s.handlePredictItem))
	s.mux.HandleFunc("POST /analyze-receipt", s.requireAuth(s.handleAnalyzeReceipt))

	if s.opts.Metrics != nil {
		s.mux.HandleFunc("GET /metrics", s.requireAuth(s.opts.Metrics.ServeHTTP))
	}
}

// Start serves HTTP on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
