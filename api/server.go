package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/DeafMist/verdict-radar/backend/internal/elasticsearch"
	"github.com/DeafMist/verdict-radar/backend/internal/extract"
	"github.com/DeafMist/verdict-radar/backend/internal/models"
	"github.com/DeafMist/verdict-radar/backend/internal/orchestrator"
)

const maxExtractBody = 64 << 10

type newsFetcher interface {
	Fetch(ctx context.Context) (orchestrator.Result, error)
	CacheAge() (time.Duration, bool)
}

type archive interface {
	SearchArchive(ctx context.Context, params elasticsearch.SearchParams) (*elasticsearch.SearchResult, error)
	Health(ctx context.Context) error
}

type server struct {
	log         *slog.Logger
	news        newsFetcher
	extractor   extract.Extractor
	archive     archive // nil when the archive is disabled
	defaultPage int
	maxPage     int
	now         func() time.Time
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/news/live", s.handleLive)
		r.Get("/news/search", s.handleSearch)
		r.Post("/content/extract", s.handleExtract)
	})
	return r
}

type liveResponse struct {
	Success   bool              `json:"success"`
	Data      []models.NewsItem `json:"data"`
	Timestamp string            `json:"timestamp"`
	Count     int               `json:"count"`
	Source    string            `json:"source"`
	Cached    bool              `json:"cached,omitempty"`
	Warning   string            `json:"warning,omitempty"`
	BatchID   string            `json:"batch_id,omitempty"`
}

type extractResponse struct {
	Success   bool   `json:"success"`
	Content   string `json:"content"`
	Length    int    `json:"length"`
	Timestamp string `json:"timestamp"`
}

type searchResponse struct {
	Success bool                  `json:"success"`
	Total   int64                 `json:"total"`
	Data    []models.ArchivedItem `json:"data"`
}

type errorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Timestamp string `json:"timestamp"`
}

type healthResponse struct {
	Status        string `json:"status"`
	CacheAge      string `json:"cache_age,omitempty"`
	Elasticsearch string `json:"elasticsearch,omitempty"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if age, ok := s.news.CacheAge(); ok {
		resp.CacheAge = age.Round(time.Second).String()
	}

	if s.archive != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.archive.Health(ctx); err != nil {
			s.log.Warn("elasticsearch health", slog.Any("err", err))
			resp.Status = "degraded"
			resp.Elasticsearch = "unavailable"
		} else {
			resp.Elasticsearch = "ok"
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleLive(w http.ResponseWriter, r *http.Request) {
	res, err := s.news.Fetch(r.Context())
	if err != nil {
		s.fail(w, r, "Error al obtener noticias en vivo", err)
		return
	}
	if res.Items == nil {
		res.Items = []models.NewsItem{}
	}

	writeJSON(w, http.StatusOK, liveResponse{
		Success:   true,
		Data:      res.Items,
		Timestamp: s.timestamp(),
		Count:     len(res.Items),
		Source:    string(res.Provenance),
		Cached:    res.Provenance.Cached(),
		Warning:   res.Warning,
		BatchID:   res.BatchID,
	})
}

func (s *server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxExtractBody)).Decode(&body); err != nil {
		s.fail(w, r, "URL requerida", orchestrator.NewError(orchestrator.KindMissingInput, "decode request", err))
		return
	}

	res, err := s.extractor.Extract(r.Context(), body.URL)
	if err != nil {
		msg := "Error extrayendo contenido"
		if orchestrator.KindOf(err) == orchestrator.KindMissingInput {
			msg = "URL requerida"
		}
		s.fail(w, r, msg, err)
		return
	}

	writeJSON(w, http.StatusOK, extractResponse{
		Success:   true,
		Content:   res.Content,
		Length:    res.Length,
		Timestamp: s.timestamp(),
	})
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error:     "Archivo no disponible",
			Message:   "archive search is disabled: ELASTICSEARCH_ADDR is not set",
			Timestamp: s.timestamp(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q := r.URL.Query()
	params := elasticsearch.SearchParams{
		Query:  strings.TrimSpace(q.Get("q")),
		Source: strings.TrimSpace(q.Get("source")),
		From:   clampInt(q.Get("from"), 0, 10_000),
		Size:   clampInt(q.Get("size"), s.defaultPage, s.maxPage),
		Start:  parseTime(q.Get("start")),
		End:    parseTime(q.Get("end")),
	}
	if raw := strings.TrimSpace(q.Get("verdict")); raw != "" {
		v := models.Verdict(strings.ToLower(raw))
		if !v.Valid() {
			s.fail(w, r, "Veredicto inválido", orchestrator.NewError(orchestrator.KindMissingInput, "search",
				errors.New("verdict must be true, false or uncertain")))
			return
		}
		params.Verdict = v
	}

	result, err := s.archive.SearchArchive(ctx, params)
	if err != nil {
		s.fail(w, r, "Error al buscar en el archivo", err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{Success: true, Total: result.Total, Data: result.Items})
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	kind := orchestrator.KindOf(err)
	status := statusFor(kind)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.log.Log(r.Context(), level, "request failed",
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("kind", string(kind)),
		slog.Any("err", err),
	)

	writeJSON(w, status, errorResponse{
		Error:     msg,
		Message:   err.Error(),
		Kind:      string(kind),
		Timestamp: s.timestamp(),
	})
}

func statusFor(kind orchestrator.Kind) int {
	switch kind {
	case orchestrator.KindMissingInput:
		return http.StatusBadRequest
	case orchestrator.KindProcessTimeout:
		return http.StatusGatewayTimeout
	case orchestrator.KindProcessFailure, orchestrator.KindParseError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func parseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return &ts
	}
	if ts, err := time.Parse("2006-01-02", raw); err == nil {
		return &ts
	}
	return nil
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
