package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wine-cellar/internal/cellar"
	"wine-cellar/internal/llm"
	"wine-cellar/internal/shared"
	"wine-cellar/internal/testutil"
)

type MockTextGenerator struct {
	prompts []string
	reply   func(prompt string) (string, error)
}

func (m *MockTextGenerator) GenerateContent(_ context.Context, prompt string) (llm.ContentResponse, error) {
	m.prompts = append(m.prompts, prompt)
	content, err := m.reply(prompt)
	if err != nil {
		return llm.ContentResponse{}, err
	}
	return llm.ContentResponse{
		Content: content,
		Usage:   shared.TokenUsage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120, Model: "mock"},
	}, nil
}

type metaSink struct {
	metas []shared.AgentMeta
}

func (s *metaSink) RecordMeta(meta shared.AgentMeta) error {
	s.metas = append(s.metas, meta)
	return nil
}

func TestBuildPrompt(t *testing.T) {
	b := cellar.Bottle{
		ID: "b1",
		Wine: cellar.Wine{
			Name: "Barolo", Producer: "Vietti", Region: "Piedmont", Grape: "Nebbiolo",
			Color: cellar.ColorRed, Vintage: cellar.Int(2016),
		},
	}
	prompt, err := buildPrompt(b, 2026)
	require.NoError(t, err)
	assert.Contains(t, prompt, "# Readiness Agent Prompt")
	assert.Contains(t, prompt, "Current year: 2026")
	assert.Contains(t, prompt, "- Vintage: 2016")
	assert.Contains(t, prompt, "- Grape: Nebbiolo")

	b.Wine.Vintage = nil
	b.Wine.Grape = ""
	prompt, err = buildPrompt(b, 2026)
	require.NoError(t, err)
	assert.Contains(t, prompt, "non-vintage")
	assert.NotContains(t, prompt, "- Grape:")
}

func TestParseResult(t *testing.T) {
	r, err := parseResult("```json\n{\"label\": \"peak_soon\", \"drink_from\": 2027, \"drink_until\": 2035, \"reason\": \"young\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, cellar.ReadinessPeakSoon, r.Label)
	assert.Equal(t, 2027, *r.DrinkFrom)
	assert.Equal(t, "young", r.Reason)

	r, err = parseResult(`{"label": "READY", "drink_from": null, "drink_until": null}`)
	require.NoError(t, err)
	assert.Nil(t, r.DrinkFrom)

	_, err = parseResult(`{"label": "DRINK_NOW"}`)
	assert.Error(t, err)
	_, err = parseResult(`{"label": "READY", "drink_from": 2030, "drink_until": 2020}`)
	assert.Error(t, err)
	_, err = parseResult(`not json`)
	assert.Error(t, err)
}

func TestAnalyzePending(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	repo := cellar.NewRepository(db.SQL)

	save := func(b cellar.Bottle) {
		t.Helper()
		b.UserID = "u1"
		_, err := repo.Save(ctx, b)
		require.NoError(t, err)
	}
	save(cellar.Bottle{ID: "young", Quantity: 2, Wine: cellar.Wine{Name: "Young Barolo", Color: cellar.ColorRed}})
	save(cellar.Bottle{ID: "old", Quantity: 1, Wine: cellar.Wine{Name: "Old Rioja", Color: cellar.ColorRed}})
	save(cellar.Bottle{ID: "broken", Quantity: 1, Wine: cellar.Wine{Name: "Mystery", Color: cellar.ColorWhite}})
	save(cellar.Bottle{ID: "empty", Quantity: 0, Wine: cellar.Wine{Name: "Drunk", Color: cellar.ColorRed}})
	save(cellar.Bottle{ID: "done", Quantity: 1, Readiness: cellar.Label(cellar.ReadinessHold), Wine: cellar.Wine{Name: "Done", Color: cellar.ColorRed}})

	gen := &MockTextGenerator{reply: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "Young Barolo"):
			return `{"label": "HOLD", "drink_from": 2030, "drink_until": 2045}`, nil
		case strings.Contains(prompt, "Old Rioja"):
			return `{"label": "READY", "drink_from": 2020, "drink_until": 2028}`, nil
		}
		return "", errors.New("model overloaded")
	}}
	sink := &metaSink{}

	analyzer := NewAnalyzer(NewAgent(gen), repo, sink, zap.NewNop())
	analyzer.now = testutil.FixedClock(time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC))

	sum, err := analyzer.AnalyzePending(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Analyzed)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 2, sum.Skipped)
	assert.Equal(t, 200, sum.Usage.PromptTokens)
	assert.Len(t, gen.prompts, 3)
	assert.Len(t, sink.metas, 3)
	assert.Equal(t, AgentName, sink.metas[0].AgentName)

	young, err := repo.Get(ctx, "young")
	require.NoError(t, err)
	require.NotNil(t, young.Readiness)
	assert.Equal(t, cellar.ReadinessHold, *young.Readiness)
	assert.Equal(t, 2045, *young.DrinkUntil)
	require.NotNil(t, young.AnalyzedAt)

	broken, err := repo.Get(ctx, "broken")
	require.NoError(t, err)
	assert.Nil(t, broken.Readiness)

	// Nothing is left to analyze on a second run.
	sum, err = analyzer.AnalyzePending(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Analyzed)
	assert.Equal(t, 1, sum.Failed)
}
