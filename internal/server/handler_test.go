package server

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/samualtnorman/apex-web-server/internal/config"
	"github.com/samualtnorman/apex-web-server/internal/plugin"
)

// testEnv wires a server over a temp web directory and api dir, the way
// main does, minus the listeners.
type testEnv struct {
	srv  *Server
	web  string
	apis string
}

func newTestEnv(t *testing.T, extraConfig string) *testEnv {
	t.Helper()

	root := t.TempDir()
	web := filepath.Join(root, "web")
	apis := filepath.Join(root, "apis")
	for _, d := range []string{web, apis} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	cfgPath := filepath.Join(root, "config.yml")
	content := fmt.Sprintf("webDirectory: %s\n%s", web, extraConfig)
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := config.NewStore(cfgPath, config.WithLogger(logger))
	if err := store.Load(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(store.Close)

	registry := plugin.NewRegistry(
		plugin.WithLoader(plugin.NewLoader(plugin.WithPaths(apis))),
		plugin.WithRegistryLogger(logger),
	)
	t.Cleanup(registry.Close)
	registry.Reconcile(store.Snapshot().APIs)

	return &testEnv{
		srv:  New(store, registry, WithLogger(logger)),
		web:  web,
		apis: apis,
	}
}

// writeSite creates a file under the host's directory in the web root.
func (e *testEnv) writeSite(t *testing.T, host, rel, content string) {
	t.Helper()
	path := filepath.Join(e.web, host, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (e *testEnv) get(t *testing.T, host, path string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "https://"+host+path, nil)
	for k, v := range hdr {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.srv.mainHandler().ServeHTTP(w, r)
	return w
}

func (e *testEnv) post(t *testing.T, host, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "https://"+host+path, strings.NewReader(body))
	w := httptest.NewRecorder()
	e.srv.mainHandler().ServeHTTP(w, r)
	return w
}

func TestHandler_IndexAtRoot(t *testing.T) {
	env := newTestEnv(t, "")
	env.writeSite(t, "a.example", "index.html", "<h1>home</h1>")

	w := env.get(t, "a.example", "/", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Body.String(); got != "<h1>home</h1>" {
		t.Errorf("body = %q", got)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	if cl := w.Header().Get("Content-Location"); cl != "https://a.example/index.html" {
		t.Errorf("content location = %q", cl)
	}
}

func TestHandler_NestedIndexAndHostPort(t *testing.T) {
	env := newTestEnv(t, "")
	env.writeSite(t, "a.example", "docs/index.html", "docs")

	// A Host header carrying a port still matches the bare hostname.
	r := httptest.NewRequest(http.MethodGet, "https://a.example/docs/", nil)
	r.Host = "a.example:8443"
	w := httptest.NewRecorder()
	env.srv.mainHandler().ServeHTTP(w, r)

	if w.Code != http.StatusOK || w.Body.String() != "docs" {
		t.Errorf("status = %d, body = %q", w.Code, w.Body.String())
	}
}

func TestHandler_HostRedirect(t *testing.T) {
	env := newTestEnv(t, "redirects:\n  old.example: https://new.example\n")
	// A redirect wins even when the host has its own content.
	env.writeSite(t, "old.example", "index.html", "stale")

	w := env.get(t, "old.example", "/page?x=1", nil)

	if w.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "https://new.example/page" {
		t.Errorf("location = %q", loc)
	}
}

func TestHandler_SymlinkAlias(t *testing.T) {
	env := newTestEnv(t, "symlinks:\n  www.a.example: a.example\n")
	env.writeSite(t, "a.example", "index.html", "canonical")

	w := env.get(t, "www.a.example", "/", nil)

	if w.Code != http.StatusOK || w.Body.String() != "canonical" {
		t.Errorf("status = %d, body = %q", w.Code, w.Body.String())
	}
}

func TestHandler_ConfiguredHeaders(t *testing.T) {
	env := newTestEnv(t, "headers:\n  Cache-Control: no-store\n")
	env.writeSite(t, "a.example", "style.css", "body{}")

	w := env.get(t, "a.example", "/style.css", nil)

	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q", got)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/css") {
		t.Errorf("content type = %q", ct)
	}
}

func TestHandler_DirectoryRedirect(t *testing.T) {
	env := newTestEnv(t, "")
	env.writeSite(t, "a.example", "docs/index.html", "docs")

	w := env.get(t, "a.example", "/docs", nil)

	if w.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "https://a.example/docs/" {
		t.Errorf("location = %q", loc)
	}
}

func TestHandler_NotFoundUsesStatusPage(t *testing.T) {
	env := newTestEnv(t, "")
	env.writeSite(t, "_status", "404.html", "<p>gone</p>")

	w := env.get(t, "a.example", "/missing", nil)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Body.String(); got != "<p>gone</p>" {
		t.Errorf("body = %q", got)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
}

func TestHandler_NotFoundFallbackText(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.get(t, "a.example", "/missing", nil)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Body.String(); got != notFoundText {
		t.Errorf("body = %q", got)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
}

func TestHandler_TraversalBlocked(t *testing.T) {
	env := newTestEnv(t, "")
	env.writeSite(t, "a.example", "index.html", "home")
	// The secret lives outside the host directory.
	if err := os.WriteFile(filepath.Join(env.web, "secret.txt"), []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{"/../secret.txt", "/%2e%2e/secret.txt"} {
		w := env.get(t, "a.example", path, nil)
		if w.Code == http.StatusOK && w.Body.String() == "secret" {
			t.Errorf("%s: traversal escaped the host directory", path)
		}
	}
}

func TestHandler_RangeRequests(t *testing.T) {
	env := newTestEnv(t, "")
	env.writeSite(t, "a.example", "data.bin", "0123456789")

	t.Run("interior", func(t *testing.T) {
		w := env.get(t, "a.example", "/data.bin", map[string]string{"Range": "bytes=2-5"})

		if w.Code != http.StatusPartialContent {
			t.Fatalf("status = %d", w.Code)
		}
		if got := w.Body.String(); got != "2345" {
			t.Errorf("body = %q", got)
		}
		if cr := w.Header().Get("Content-Range"); cr != "bytes 2-5/10" {
			t.Errorf("content range = %q", cr)
		}
		if cl := w.Header().Get("Content-Length"); cl != "4" {
			t.Errorf("content length = %q", cl)
		}
		if ar := w.Header().Get("Accept-Ranges"); ar != "bytes" {
			t.Errorf("accept ranges = %q", ar)
		}
	})

	t.Run("suffix", func(t *testing.T) {
		w := env.get(t, "a.example", "/data.bin", map[string]string{"Range": "bytes=-3"})

		if w.Code != http.StatusPartialContent {
			t.Fatalf("status = %d", w.Code)
		}
		if got := w.Body.String(); got != "789" {
			t.Errorf("body = %q", got)
		}
	})

	t.Run("unsatisfiable", func(t *testing.T) {
		w := env.get(t, "a.example", "/data.bin", map[string]string{"Range": "bytes=50-60"})

		if w.Code != http.StatusRequestedRangeNotSatisfiable {
			t.Fatalf("status = %d", w.Code)
		}
		if cr := w.Header().Get("Content-Range"); cr != "bytes */10" {
			t.Errorf("content range = %q", cr)
		}
	})

	t.Run("malformed header serves whole file", func(t *testing.T) {
		w := env.get(t, "a.example", "/data.bin", map[string]string{"Range": "bytes=junk"})

		if w.Code != http.StatusOK || w.Body.String() != "0123456789" {
			t.Errorf("status = %d, body = %q", w.Code, w.Body.String())
		}
	})
}

func TestHandler_PostDispatch(t *testing.T) {
	env := newTestEnv(t, "apis:\n  a.example/api/echo: echo\n")
	if err := os.WriteFile(filepath.Join(env.apis, "echo.lua"), []byte(`
function handle(body, ctx)
	return { ok = true, echo = body }
end
`), 0o644); err != nil {
		t.Fatal(err)
	}
	env.srv.registry.Reconcile(env.srv.store.Snapshot().APIs)

	w := env.post(t, "a.example", "/api/echo", "ping")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	body := w.Body.String()
	if !gjson.Get(body, "ok").Bool() || gjson.Get(body, "echo").String() != "ping" {
		t.Errorf("body = %s", body)
	}
}

func TestHandler_PostNoRoute(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.post(t, "a.example", "/api/none", "x")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Body.String(); got != string(plugin.EnvelopeNoRoute) {
		t.Errorf("body = %q", got)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, "")

	r := httptest.NewRequest(http.MethodPut, "https://a.example/", nil)
	w := httptest.NewRecorder()
	env.srv.mainHandler().ServeHTTP(w, r)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", w.Code)
	}
	if allow := w.Header().Get("Allow"); allow != "GET, POST" {
		t.Errorf("allow = %q", allow)
	}
}

func TestHandler_NoHostHeader(t *testing.T) {
	env := newTestEnv(t, "")

	r := httptest.NewRequest(http.MethodGet, "https://a.example/", nil)
	r.Host = ""
	w := httptest.NewRecorder()
	env.srv.mainHandler().ServeHTTP(w, r)

	if w.Code != http.StatusOK || w.Body.Len() != 0 {
		t.Errorf("status = %d, body = %q", w.Code, w.Body.String())
	}
}

func TestRedirectHandler(t *testing.T) {
	env := newTestEnv(t, "")

	r := httptest.NewRequest(http.MethodGet, "http://a.example/page?q=1", nil)
	w := httptest.NewRecorder()
	env.srv.redirectHandler().ServeHTTP(w, r)

	if w.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "https://a.example/page?q=1" {
		t.Errorf("location = %q", loc)
	}

	r = httptest.NewRequest(http.MethodGet, "http://a.example/", nil)
	r.Host = ""
	w = httptest.NewRecorder()
	env.srv.redirectHandler().ServeHTTP(w, r)

	if w.Code != http.StatusOK || w.Body.Len() != 0 {
		t.Errorf("no host: status = %d, body = %q", w.Code, w.Body.String())
	}
}
