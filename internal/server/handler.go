package server

import (
	"io"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/samualtnorman/apex-web-server/internal/config"
	"github.com/samualtnorman/apex-web-server/internal/plugin"
)

// mainHandler serves the encrypted listener: GET goes to the static
// pipeline, POST to the plugin registry. The configuration snapshot is
// read once per request; a reload mid-flight does not affect it.
func (s *Server) mainHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg := s.store.Snapshot()

		host := hostOnly(r.Host)
		if host == "" {
			// No Host header: empty 200, nothing to route on.
			return
		}

		ip, isLocal := clientAddr(r)

		reqID := uuid.NewString()
		s.logger.Info("request",
			"id", reqID, "method", r.Method, "host", host, "path", r.URL.Path, "ip", ip)
		if cfg.LogHeaders {
			for name, values := range r.Header {
				for _, v := range values {
					s.logger.Info("request header", "id", reqID, "name", name, "value", v)
				}
			}
		}

		switch r.Method {
		case http.MethodGet:
			s.serveStatic(w, r, cfg, host, isLocal)

		case http.MethodPost:
			s.servePost(w, r, cfg, host, ip, isLocal)

		default:
			w.Header().Set("Allow", "GET, POST")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		}
	})
}

// servePost accumulates the request body and dispatches it to the
// plugin route for host+path.
func (s *Server) servePost(w http.ResponseWriter, r *http.Request, cfg *config.Config, host, ip string, isLocal bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(plugin.EnvelopeInternalError)
		return
	}

	route := host + r.URL.Path
	pctx := plugin.Context{IsLocal: isLocal, ClientIP: ip, Config: cfg}

	payload, ok := s.registry.Invoke(route, pctx, string(body))
	if !ok {
		payload = plugin.EnvelopeNoRoute
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}

// redirectHandler serves the plaintext listener: every request with a
// Host header is redirected to its HTTPS equivalent; without one the
// response is an empty 200.
func (s *Server) redirectHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := hostOnly(r.Host)
		if host == "" {
			return
		}
		redirect(w, "https://"+host+r.URL.RequestURI(), http.StatusMovedPermanently, "")
	})
}

// hostOnly strips a port from a Host header value, so configuration
// keyed by bare hostname matches requests on nonstandard ports.
func hostOnly(hostport string) string {
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return host
	}
	return hostport
}
