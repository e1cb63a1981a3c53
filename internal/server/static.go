package server

import (
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samualtnorman/apex-web-server/internal/config"
)

// serveStatic is the GET pipeline: host redirect, symlink aliasing,
// path resolution, then file or directory serving.
func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request, cfg *config.Config, host string, isLocal bool) {
	// A host with a configured redirect short-circuits everything,
	// whether or not a matching file exists.
	if target, ok := cfg.Redirects[host]; ok {
		redirect(w, target+r.URL.EscapedPath(), http.StatusMovedPermanently, "")
		return
	}

	dir := host
	if alias, ok := cfg.Symlinks[host]; ok {
		dir = alias
	}

	urlPath := resolvePath(r.URL.EscapedPath())

	root := filepath.Join(cfg.WebDirectory, dir)
	fsPath := filepath.Join(root, filepath.FromSlash(urlPath))
	// Join cleans the path, but a decoded ".." must still never escape
	// the host's directory.
	if fsPath != root && !strings.HasPrefix(fsPath, root+string(filepath.Separator)) {
		s.serveStatusPage(w, cfg, http.StatusNotFound, notFoundPage, notFoundText)
		return
	}

	info, err := os.Stat(fsPath)
	if err != nil {
		s.translateError(w, cfg, host, urlPath, err, isLocal)
		return
	}

	if info.IsDir() {
		target := "https://" + host + urlPath + "/"
		redirect(w, target, http.StatusMovedPermanently, "redirecting to "+target+"\n")
		return
	}

	s.serveFile(w, r, cfg, host, urlPath, fsPath, info.Size(), isLocal)
}

// resolvePath turns a raw request path into a relative file path:
// ".." sequences are stripped before percent-decoding, and a trailing
// slash resolves to the directory's index.html.
func resolvePath(escaped string) string {
	p := strings.ReplaceAll(escaped, "..", "")

	decoded, err := url.PathUnescape(p)
	if err != nil {
		decoded = p
	}

	if decoded == "" || strings.HasSuffix(decoded, "/") {
		decoded += "index.html"
	}
	return decoded
}

// serveFile streams a regular file, honoring a Range header.
func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, cfg *config.Config, host, urlPath, fsPath string, size int64, isLocal bool) {
	f, err := os.Open(fsPath)
	if err != nil {
		s.translateError(w, cfg, host, urlPath, err, isLocal)
		return
	}
	defer f.Close()

	h := w.Header()
	h.Set("Content-Type", contentType(fsPath))
	h.Set("Content-Location", "https://"+host+urlPath)
	for name, value := range cfg.Headers {
		h.Set(name, value)
	}

	br, err := ParseRange(r.Header.Get("Range"), size)
	if err != nil {
		h.Set("Content-Range", "bytes */"+strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	if br == nil {
		h.Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		_, _ = io.Copy(w, f)
		return
	}

	if _, err := f.Seek(br.Start, io.SeekStart); err != nil {
		s.translateError(w, cfg, host, urlPath, err, isLocal)
		return
	}

	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Range", br.ContentRange(size))
	h.Set("Content-Length", strconv.FormatInt(br.Length(), 10))
	w.WriteHeader(http.StatusPartialContent)
	_, _ = io.CopyN(w, f, br.Length())
}

// contentType resolves the Content-Type from the file extension.
func contentType(fsPath string) string {
	if ct := mime.TypeByExtension(filepath.Ext(fsPath)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
