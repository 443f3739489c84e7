// Package httpfront wraps the streamable MCP handler for http mode: a health
// check, OAuth protected-resource metadata and a static bearer token check.
package httpfront

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// MetadataPath is where protected-resource metadata is served.
const MetadataPath = "/.well-known/oauth-protected-resource"

// Options configures the front.
type Options struct {
	// BearerToken, when set, is required on every MCP request.
	BearerToken string
	// ResourceURL is the public URL of the MCP endpoint.
	ResourceURL string
	// AuthServerURL is advertised in the metadata. Empty disables the
	// metadata endpoint.
	AuthServerURL string
}

type front struct {
	opts Options
	mcp  http.Handler
	log  *zap.Logger
}

// Handler returns mcp behind the front's routes and middleware.
func Handler(mcp http.Handler, opts Options, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	f := &front{opts: opts, mcp: mcp, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", f.handleHealth)
	if opts.AuthServerURL != "" {
		mux.HandleFunc("GET "+MetadataPath, f.handleProtectedResource)
	}
	mux.Handle("/", f.requireBearer(mcp))
	return f.logging(mux)
}

func (f *front) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (f *front) handleProtectedResource(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"resource":              f.opts.ResourceURL,
		"authorization_servers": []string{f.opts.AuthServerURL},
	})
}

func (f *front) requireBearer(next http.Handler) http.Handler {
	if f.opts.BearerToken == "" {
		return next
	}
	want := []byte(f.opts.BearerToken)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), want) != 1 {
			challenge := `Bearer realm="conport"`
			if f.opts.AuthServerURL != "" {
				challenge += `, resource_metadata="` + strings.TrimRight(f.opts.ResourceURL, "/") + MetadataPath + `"`
			}
			w.Header().Set("WWW-Authenticate", challenge)
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error":             "invalid_token",
				"error_description": "missing or invalid bearer token",
			})
			f.log.Warn("rejected request", zap.String("path", r.URL.Path), zap.String("remote", r.RemoteAddr))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Flush keeps streamed responses working through the recorder.
func (s *statusRecorder) Flush() {
	if fl, ok := s.ResponseWriter.(http.Flusher); ok {
		fl.Flush()
	}
}

func (f *front) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		f.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
