package server

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"syscall"

	"github.com/samualtnorman/apex-web-server/internal/config"
)

// Status page locations under the web directory. The pages are read
// fresh on every error so they can be edited without a restart.
const (
	statusDir     = "_status"
	notFoundPage  = "404.html"
	serverErrPage = "500.html"
	notFoundText  = "404 not found"
	serverErrText = "500 internal server error"
)

// translateError maps a filesystem error from the static pipeline to
// an HTTP response.
//
//   - not exist      → 404 with the configured error page
//   - ENOTDIR        → 301 to the parent of the requested path (a path
//     segment used as a directory is actually a file)
//   - EISDIR         → 301 to the path with a trailing slash
//   - anything else  → 500 with the configured error page; the error
//     detail is appended only for local clients
func (s *Server) translateError(w http.ResponseWriter, cfg *config.Config, host, urlPath string, err error, isLocal bool) {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.serveStatusPage(w, cfg, http.StatusNotFound, notFoundPage, notFoundText)

	case errors.Is(err, syscall.ENOTDIR):
		redirect(w, "https://"+host+path.Dir(urlPath), http.StatusMovedPermanently, "")

	case errors.Is(err, syscall.EISDIR):
		redirect(w, "https://"+host+urlPath+"/", http.StatusMovedPermanently, "")

	default:
		detail := ""
		if isLocal {
			detail = "\n\n" + err.Error()
		}
		s.logger.Error("static file error", "host", host, "path", urlPath, "error", err)
		s.serveStatusPageDetail(w, cfg, http.StatusInternalServerError, serverErrPage, serverErrText, detail)
	}
}

// serveStatusPage writes an error response using the configured HTML
// page when readable, else the plaintext fallback.
func (s *Server) serveStatusPage(w http.ResponseWriter, cfg *config.Config, status int, page, fallback string) {
	s.serveStatusPageDetail(w, cfg, status, page, fallback, "")
}

func (s *Server) serveStatusPageDetail(w http.ResponseWriter, cfg *config.Config, status int, page, fallback, detail string) {
	body, err := os.ReadFile(filepath.Join(cfg.WebDirectory, statusDir, page))
	if err != nil {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(fallback + detail))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
	if detail != "" {
		_, _ = w.Write([]byte(detail))
	}
}

// redirect writes a 301/302 with an optional short plaintext body.
func redirect(w http.ResponseWriter, location string, status int, body string) {
	w.Header().Set("Location", location)
	w.WriteHeader(status)
	if body != "" {
		_, _ = w.Write([]byte(body))
	}
}
