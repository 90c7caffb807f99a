package annotate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/verdict-radar/backend/internal/annotate"
	"github.com/DeafMist/verdict-radar/backend/internal/models"
)

var now = time.Date(2025, 6, 8, 10, 0, 0, 0, time.UTC)

func TestEnrichFillsScrapedItems(t *testing.T) {
	in := []models.NewsItem{
		{Title: "Récord de exportaciones", Source: "Ámbito", Date: "2025-06-07", Verdict: "uncertain"},
		{ID: "1", Title: "Nuevo sistema de transporte", Source: "Clarín"},
		{Title: "Sin fuente"},
	}

	out := annotate.Enrich(in, now)
	require.Len(t, out, 3)
	require.NoError(t, models.ValidateBatch(out))

	require.Equal(t, models.ID("2"), out[0].ID, "id 1 is already taken")
	require.Equal(t, models.ID("1"), out[1].ID)
	require.Equal(t, models.ID("3"), out[2].ID)

	require.Equal(t, "2025-06-08", out[1].Date)
	require.Equal(t, models.VerdictUncertain, out[1].Verdict)
	require.Equal(t, "Noticia de Clarín", out[1].Summary)
	require.Equal(t, "Fuente desconocida", out[2].Source)
	require.Contains(t, out[0].Agents.Synth, "📰 Fuente: Ámbito")
	require.Contains(t, out[0].Agents.Context, "2025-06-07")

	require.Nil(t, in[0].Agents, "input must not be modified")
	require.Empty(t, in[0].ID)
}

func TestEnrichKeepsExistingAnalysis(t *testing.T) {
	agents := &models.Agents{
		Logic:   "La afirmación coincide con el comunicado oficial de ANSES.",
		Context: "",
		Expert:  "Basado en la fórmula de movilidad.",
		Synth:   []string{"💰 Aumento: 8.5%", " "},
	}
	in := []models.NewsItem{{ID: "1", Source: "La Nación", Date: "2025-06-08", Verdict: "TRUE", Agents: agents}}

	out := annotate.Enrich(in, now)
	require.Equal(t, models.VerdictTrue, out[0].Verdict)
	require.Equal(t, agents.Logic, out[0].Agents.Logic)
	require.Equal(t, agents.Expert, out[0].Agents.Expert)
	require.NotEmpty(t, out[0].Agents.Context)
	require.Equal(t, []string{"💰 Aumento: 8.5%"}, out[0].Agents.Synth)

	require.Empty(t, agents.Context, "caller's agents must not be modified")
	require.Len(t, agents.Synth, 2)
}

func TestPrepareRejectsDuplicateIDs(t *testing.T) {
	in := []models.NewsItem{{ID: "9", Title: "a"}, {ID: "9", Title: "b"}}
	_, err := annotate.Prepare(in, now)
	require.ErrorIs(t, err, models.ErrInvalidBatch)
}
