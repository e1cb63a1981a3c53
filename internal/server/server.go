// Package server implements the HTTP/HTTPS front end: listeners, the
// request router, the static file pipeline and the POST plugin
// dispatch.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/samualtnorman/apex-web-server/internal/config"
	"github.com/samualtnorman/apex-web-server/internal/plugin"
)

// Default TLS material paths, read once at startup.
const (
	DefaultCertFile = "fullchain.pem"
	DefaultKeyFile  = "privkey.pem"
)

// Server ties the configuration store and plugin registry to a pair of
// listeners: plaintext always-redirect and TLS main handler. When TLS
// material cannot be loaded the main handler is served in plaintext on
// the HTTP port instead.
type Server struct {
	store    *config.Store
	registry *plugin.Registry
	logger   *slog.Logger

	certFile string
	keyFile  string

	httpSrv  *http.Server
	httpsSrv *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithTLSFiles sets the certificate chain and private key paths.
func WithTLSFiles(certFile, keyFile string) Option {
	return func(s *Server) {
		s.certFile = certFile
		s.keyFile = keyFile
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a server over the given store and registry.
func New(store *config.Store, registry *plugin.Registry, opts ...Option) *Server {
	s := &Server{
		store:    store,
		registry: registry,
		logger:   slog.Default(),
		certFile: DefaultCertFile,
		keyFile:  DefaultKeyFile,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run starts the listeners and blocks until ctx is canceled or a
// listener fails. Listen ports come from the snapshot taken at
// startup; changing ports requires a restart.
func (s *Server) Run(ctx context.Context) error {
	cfg := s.store.Snapshot()

	errCh := make(chan error, 2)

	cert, err := tls.LoadX509KeyPair(s.certFile, s.keyFile)
	if err != nil {
		// Plaintext fallback: no redirect listener, main handler on
		// the HTTP port.
		s.logger.Warn("TLS material unavailable, serving plaintext only",
			"cert", s.certFile, "key", s.keyFile, "error", err)

		s.httpSrv = &http.Server{
			Addr:    ":" + strconv.Itoa(cfg.HTTPPort),
			Handler: s.mainHandler(),
		}
		go func() { errCh <- s.httpSrv.ListenAndServe() }()
		s.logger.Info("listening", "mode", "plaintext", "port", cfg.HTTPPort)
	} else {
		s.httpsSrv = &http.Server{
			Addr:      ":" + strconv.Itoa(cfg.HTTPSPort),
			Handler:   s.mainHandler(),
			TLSConfig: &tls.Config{Certificates: []tls.Certificate{cert}},
		}
		s.httpSrv = &http.Server{
			Addr:    ":" + strconv.Itoa(cfg.HTTPPort),
			Handler: s.redirectHandler(),
		}
		go func() { errCh <- s.httpsSrv.ListenAndServeTLS("", "") }()
		go func() { errCh <- s.httpSrv.ListenAndServe() }()
		s.logger.Info("listening", "mode", "tls", "httpsPort", cfg.HTTPSPort, "httpPort", cfg.HTTPPort)
	}

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		_ = s.shutdown()
		return err
	}
}

// shutdown drains both listeners.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var first error
	for _, srv := range []*http.Server{s.httpsSrv, s.httpSrv} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
