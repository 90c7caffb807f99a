package scraper_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/verdict-radar/backend/internal/config"
	"github.com/DeafMist/verdict-radar/backend/internal/models"
	"github.com/DeafMist/verdict-radar/backend/internal/scraper"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Clarín</title>
<item>
  <title>Récord de exportaciones agrícolas argentinas en junio</title>
  <link>https://www.clarin.com/economia/record-exportaciones</link>
  <description>&lt;p&gt;Las exportaciones de granos y carnes alcanzaron &lt;b&gt;cifras históricas&lt;/b&gt;.&lt;/p&gt;</description>
  <pubDate>Sat, 07 Jun 2025 10:00:00 -0300</pubDate>
</item>
<item>
  <title>Corto</title>
  <link>https://www.clarin.com/x</link>
</item>
<item>
  <title>Nuevo sistema de transporte público en el AMBA</title>
  <link>https://www.clarin.com/ciudades/transporte</link>
  <pubDate>Fri, 06 Jun 2025 09:00:00 -0300</pubDate>
</item>
<item>
  <title>Una cuarta noticia que excede el límite por fuente</title>
  <link>https://www.clarin.com/otra</link>
</item>
</channel></rss>`

const frontPage = `<html><body>
<h2><a href="/politica/gobierno-anuncia-nueva-politica-economica">Gobierno anuncia nueva política económica para el segundo semestre</a></h2>
<h2><a href="https://otro-sitio.com/nota">Una nota de otro sitio que no debería aparecer</a></h2>
<h3><a href="/deportes/copa">Argentina clasifica a cuartos de final en Copa América</a></h3>
<div class="title"><a href="/corta">Muy corta</a></div>
<a href="/economia/record">RÉCORD DE EXPORTACIONES AGRÍCOLAS ARGENTINAS EN JUNIO</a>
</body></html>`

var today = time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/rss", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, feedXML)
	})
	mux.HandleFunc("/portada", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, frontPage)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func collector(srv *httptest.Server, sources ...config.Source) *scraper.Collector {
	cfg := config.Scraper{
		PerSource:   2,
		MaxItems:    25,
		Concurrency: 4,
		Timeout:     2 * time.Second,
		HTTPTimeout: time.Second,
		Sources:     sources,
	}
	return scraper.New(cfg, nil).WithHTTPClient(srv.Client()).WithClock(func() time.Time { return today })
}

func TestCollectMergesSources(t *testing.T) {
	srv := newServer(t)
	c := collector(srv,
		config.Source{Name: "Clarín", Kind: "rss", URL: srv.URL + "/rss"},
		config.Source{Name: "TN", Kind: "web", URL: srv.URL + "/portada"},
		config.Source{Name: "Caído", Kind: "web", URL: srv.URL + "/missing"},
	)

	items, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.NoError(t, models.ValidateBatch(items))
	require.Len(t, items, 4)

	// Web items are dated today and sort ahead of the feed entries.
	require.Equal(t, "TN", items[0].Source)
	require.Equal(t, "2025-06-08", items[0].Date)
	require.Equal(t, srv.URL+"/politica/gobierno-anuncia-nueva-politica-economica", items[0].URL)
	require.Equal(t, "Noticia de TN", items[0].Summary)

	rss := items[2]
	require.Equal(t, "Clarín", rss.Source)
	require.Equal(t, "Récord de exportaciones agrícolas argentinas en junio", rss.Title)
	require.Equal(t, "2025-06-07", rss.Date)
	require.Equal(t, "Las exportaciones de granos y carnes alcanzaron cifras históricas .", rss.Summary)
	require.Equal(t, "Noticia de Clarín", items[3].Summary)

	for i, item := range items {
		require.Equal(t, models.ID(fmt.Sprint(i+1)), item.ID)
		require.Equal(t, models.VerdictUncertain, item.Verdict)
		require.True(t, item.Agents.Complete())
	}
}

func TestCollectDedupesAcrossSources(t *testing.T) {
	srv := newServer(t)
	c := collector(srv,
		config.Source{Name: "Clarín", Kind: "rss", URL: srv.URL + "/rss"},
		config.Source{Name: "Ámbito", Kind: "rss", URL: srv.URL + "/rss"},
	)

	items, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestCollectCapsBatch(t *testing.T) {
	srv := newServer(t)
	cfg := config.Scraper{PerSource: 10, MaxItems: 1, Concurrency: 1, Timeout: time.Second, HTTPTimeout: time.Second,
		Sources: []config.Source{{Name: "TN", Kind: "web", URL: srv.URL + "/portada"}}}
	c := scraper.New(cfg, nil).WithHTTPClient(srv.Client())

	items, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestCollectNoNews(t *testing.T) {
	srv := newServer(t)
	c := collector(srv, config.Source{Name: "Caído", Kind: "rss", URL: srv.URL + "/missing"})

	_, err := c.Collect(context.Background())
	require.ErrorIs(t, err, scraper.ErrNoNews)
}

func TestCollectTimeout(t *testing.T) {
	srv := newServer(t)
	cfg := config.Scraper{PerSource: 2, MaxItems: 5, Concurrency: 1, Timeout: 100 * time.Millisecond, HTTPTimeout: 5 * time.Second,
		Sources: []config.Source{{Name: "Lento", Kind: "web", URL: srv.URL + "/slow"}}}
	c := scraper.New(cfg, nil).WithHTTPClient(srv.Client())

	start := time.Now()
	_, err := c.Collect(context.Background())
	require.ErrorIs(t, err, scraper.ErrNoNews)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 2*time.Second)
}
