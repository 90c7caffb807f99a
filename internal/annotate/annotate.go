// Package annotate fills in the fields every served batch must carry.
// Scraped items arrive without verdict rationale; they get placeholder agents
// derived from their source and date so that the batch invariants hold before
// anything is persisted.
package annotate

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/DeafMist/verdict-radar/backend/internal/models"
)

const (
	dateLayout    = "2006-01-02"
	unknownSource = "Fuente desconocida"
)

// Enrich returns a new batch where every item has an id, a known verdict, a
// date, a summary and complete agents. Existing non-empty fields are kept.
// The input slice and its agents are never modified.
func Enrich(items []models.NewsItem, now time.Time) []models.NewsItem {
	out := make([]models.NewsItem, len(items))
	used := make(map[models.ID]struct{}, len(items))
	for _, item := range items {
		if item.ID != "" {
			used[item.ID] = struct{}{}
		}
	}

	next := 1
	nextID := func() models.ID {
		for {
			id := models.ID(strconv.Itoa(next))
			next++
			if _, taken := used[id]; !taken {
				used[id] = struct{}{}
				return id
			}
		}
	}

	today := now.Format(dateLayout)
	for i, item := range items {
		if item.ID == "" {
			item.ID = nextID()
		}
		item.Title = strings.TrimSpace(item.Title)
		item.Source = strings.TrimSpace(item.Source)
		if item.Source == "" {
			item.Source = unknownSource
		}
		if strings.TrimSpace(item.Date) == "" {
			item.Date = today
		}
		if strings.TrimSpace(item.Summary) == "" {
			item.Summary = "Noticia de " + item.Source
		}
		item.Verdict = models.ParseVerdict(string(item.Verdict))
		item.Agents = completeAgents(item.Agents, item.Source, item.Date)
		out[i] = item
	}
	return out
}

// Prepare enriches items and checks the batch invariants.
func Prepare(items []models.NewsItem, now time.Time) ([]models.NewsItem, error) {
	enriched := Enrich(items, now)
	if err := models.ValidateBatch(enriched); err != nil {
		return nil, err
	}
	return enriched, nil
}

// DefaultAgents is the placeholder analysis attached to freshly scraped news.
func DefaultAgents(source, date string) models.Agents {
	return models.Agents{
		Logic:   fmt.Sprintf("Noticia de %s - Fuente reconocida que requiere verificación de hechos específicos", source),
		Context: fmt.Sprintf("Publicada el %s - Análisis de contexto histórico y social pendiente", date),
		Expert:  "Evaluación técnica especializada requerida para confirmar datos y cifras mencionadas",
		Synth: []string{
			"📰 Fuente: " + source,
			"📅 Fecha: " + date,
			"🔍 Estado: Noticia obtenida en vivo",
			"⏳ Verificación: Pendiente",
		},
	}
}

func completeAgents(in *models.Agents, source, date string) *models.Agents {
	def := DefaultAgents(source, date)
	if in == nil {
		return &def
	}

	out := models.Agents{
		Logic:   pick(in.Logic, def.Logic),
		Context: pick(in.Context, def.Context),
		Expert:  pick(in.Expert, def.Expert),
	}
	for _, s := range in.Synth {
		if strings.TrimSpace(s) != "" {
			out.Synth = append(out.Synth, s)
		}
	}
	if len(out.Synth) == 0 {
		out.Synth = def.Synth
	}
	return &out
}

func pick(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
