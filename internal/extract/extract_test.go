package extract_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/verdict-radar/backend/internal/extract"
	"github.com/DeafMist/verdict-radar/backend/internal/orchestrator"
)

const articlePage = `<html><head><script>var tracking = "ignore me please";</script></head><body>
<nav><p>Inicio | Política | Economía | Deportes | Espectáculos</p></nav>
<article>
<h1>El Banco Central mantuvo la tasa de política monetaria</h1>
<p>La autoridad monetaria decidió sostener la tasa en su reunión de directorio del jueves.</p>
<p>corto</p>
<p>Analistas privados esperaban una baja de al menos dos puntos porcentuales.</p>
</article>
<footer><p>Todos los derechos reservados, prohibida su reproducción total o parcial.</p></footer>
</body></html>`

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/nota", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(articlePage))
	})
	mux.HandleFunc("/sin-articulo", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div>Texto suelto</div><p>Un párrafo de fallback suficientemente largo para contar.</p></body></html>`))
	})
	mux.HandleFunc("/vacia", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>hola</p></body></html>`))
	})
	mux.HandleFunc("/lenta", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		ok   bool
	}{
		{name: "empty", in: "", ok: false},
		{name: "blank", in: "   ", ok: false},
		{name: "relative", in: "/nota", ok: false},
		{name: "ftp", in: "ftp://example.com/a", ok: false},
		{name: "https", in: "https://www.lanacion.com.ar/politica/nota", ok: true},
		{name: "http trimmed", in: " http://example.com/a ", ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extract.ValidateURL(tt.in)
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.Equal(t, orchestrator.KindMissingInput, orchestrator.KindOf(err))
		})
	}
}

func TestHTMLExtract(t *testing.T) {
	srv := newSite(t)
	h := extract.NewHTML(srv.Client(), 2*time.Second, 1<<20, nil)

	res, err := h.Extract(context.Background(), srv.URL+"/nota")
	require.NoError(t, err)
	require.Contains(t, res.Content, "El Banco Central mantuvo la tasa")
	require.Contains(t, res.Content, "Analistas privados esperaban")
	require.NotContains(t, res.Content, "corto")
	require.NotContains(t, res.Content, "derechos reservados")
	require.NotContains(t, res.Content, "tracking")
	require.Equal(t, len([]rune(res.Content)), res.Length)
}

func TestHTMLExtractFallsBackToBodyParagraphs(t *testing.T) {
	srv := newSite(t)
	h := extract.NewHTML(srv.Client(), 2*time.Second, 1<<20, nil)

	res, err := h.Extract(context.Background(), srv.URL+"/sin-articulo")
	require.NoError(t, err)
	require.Equal(t, "Un párrafo de fallback suficientemente largo para contar.", res.Content)
}

func TestHTMLExtractFailures(t *testing.T) {
	srv := newSite(t)

	tests := []struct {
		name    string
		path    string
		timeout time.Duration
		want    orchestrator.Kind
	}{
		{name: "no content", path: "/vacia", timeout: 2 * time.Second, want: orchestrator.KindParseError},
		{name: "not found", path: "/nada", timeout: 2 * time.Second, want: orchestrator.KindProcessFailure},
		{name: "timeout", path: "/lenta", timeout: 100 * time.Millisecond, want: orchestrator.KindProcessTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := extract.NewHTML(srv.Client(), tt.timeout, 1<<20, nil)
			_, err := h.Extract(context.Background(), srv.URL+tt.path)
			require.Error(t, err)
			require.Equal(t, tt.want, orchestrator.KindOf(err))
		})
	}
}

func shellExtractor(t *testing.T, script string, timeout time.Duration, maxBytes int) *extract.Command {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("extractor scripts need a POSIX shell")
	}
	c, err := extract.NewCommand([]string{"/bin/sh", "-c", script, "sh"}, timeout, maxBytes, nil)
	require.NoError(t, err)
	return c
}

func TestCommandExtract(t *testing.T) {
	c := shellExtractor(t, `printf '{"success":true,"content":"texto de %s","length":3}' "$1"`, 5*time.Second, 1<<20)

	res, err := c.Extract(context.Background(), "https://example.com/nota")
	require.NoError(t, err)
	require.Equal(t, "texto de https://example.com/nota", res.Content)
	require.Equal(t, len([]rune(res.Content)), res.Length)
}

func TestCommandExtractFailures(t *testing.T) {
	tests := []struct {
		name     string
		script   string
		timeout  time.Duration
		maxBytes int
		want     orchestrator.Kind
	}{
		{name: "reported failure", script: `printf '{"success":false,"error":"403 Forbidden"}'`, timeout: 5 * time.Second, maxBytes: 1 << 20, want: orchestrator.KindProcessFailure},
		{name: "non-zero exit", script: `echo boom >&2; exit 2`, timeout: 5 * time.Second, maxBytes: 1 << 20, want: orchestrator.KindProcessFailure},
		{name: "malformed", script: `printf 'not json'`, timeout: 5 * time.Second, maxBytes: 1 << 20, want: orchestrator.KindParseError},
		{name: "empty content", script: `printf '{"success":true,"content":"  "}'`, timeout: 5 * time.Second, maxBytes: 1 << 20, want: orchestrator.KindParseError},
		{name: "oversized output", script: `printf '{"success":true,"content":"` + strings.Repeat("a", 512) + `"}'`, timeout: 5 * time.Second, maxBytes: 64, want: orchestrator.KindProcessFailure},
		{name: "timeout", script: `sleep 10`, timeout: 150 * time.Millisecond, maxBytes: 1 << 20, want: orchestrator.KindProcessTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := shellExtractor(t, tt.script, tt.timeout, tt.maxBytes)
			_, err := c.Extract(context.Background(), "https://example.com/nota")
			require.Error(t, err)
			require.Equal(t, tt.want, orchestrator.KindOf(err))
		})
	}
}

func TestCommandExtractRejectsMissingURL(t *testing.T) {
	c := shellExtractor(t, `exit 0`, time.Second, 1024)
	_, err := c.Extract(context.Background(), "")
	require.Equal(t, orchestrator.KindMissingInput, orchestrator.KindOf(err))
}

func TestNewCommandRequiresArgv(t *testing.T) {
	_, err := extract.NewCommand(nil, time.Second, 1024, nil)
	require.Error(t, err)
}
