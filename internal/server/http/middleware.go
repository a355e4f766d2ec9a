package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/ronnia/internal/common"
)

type ctxKey string

const sessionTokenKey ctxKey = "sessionToken"

// requireSession rejects requests without a session token and hands the
// token to next through the context. Verification happens in the service,
// against storage.
func (s *HTTPServer) requireSession(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			s.writeError(w, r, common.ErrorUnauthorized)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), sessionTokenKey, token)))
	})
}

// sessionToken reads the session cookie, falling back to a bearer header for
// non-browser clients.
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(common.SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

func tokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(sessionTokenKey).(string)
	return token
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *HTTPServer) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		// the query string carries OAuth codes, so only the path is logged
		s.logger.Debug(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
