// Package http is the browser-facing transport: OAuth redirects, cookies and
// a small JSON API over services.SessionService.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/ronnia/internal/logging"
	"github.com/dmitrijs2005/ronnia/internal/server/services"
)

type HTTPServer struct {
	address         string
	sessions        *services.SessionService
	logger          logging.Logger
	secureCookies   bool
	shutdownTimeout time.Duration
}

// NewHTTPServer wires the handlers. secureCookies marks every cookie Secure
// and should be set when the public URL is https.
func NewHTTPServer(a string, l logging.Logger, sessions *services.SessionService, secureCookies bool, shutdownTimeout time.Duration) *HTTPServer {
	return &HTTPServer{
		address:         a,
		sessions:        sessions,
		logger:          l.With("module", "http_server"),
		secureCookies:   secureCookies,
		shutdownTimeout: shutdownTimeout,
	}
}

// Handler returns the routed handler with access logging applied.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /oauth2/{provider}/login", s.beginLogin)
	mux.HandleFunc("GET /oauth2/{provider}/callback", s.finishLogin)

	mux.Handle("GET /api/me", s.requireSession(s.whoami))
	mux.Handle("DELETE /api/me", s.requireSession(s.removeAccount))
	mux.HandleFunc("POST /api/logout", s.logout)
	mux.Handle("PUT /api/excluded/{peer}", s.requireSession(s.addExcludedPeer))
	mux.Handle("DELETE /api/excluded/{peer}", s.requireSession(s.removeExcludedPeer))
	mux.HandleFunc("GET /api/live", s.listLive)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	return s.accessLog(mux)
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *HTTPServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
