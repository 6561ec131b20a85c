// Package analysis labels bottles with a readiness bucket using a text
// generator and writes the result back to the cellar.
package analysis

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"wine-cellar/internal/cellar"
	"wine-cellar/internal/llm"
	"wine-cellar/internal/shared"
)

// AgentName is recorded with every execution metric.
const AgentName = "ReadinessAnalyst"

//go:embed readiness_prompt.md
var readinessPrompt string

var promptTmpl = template.Must(template.New("readiness").Parse(readinessPrompt))

type promptData struct {
	Year    int
	Wine    cellar.Wine
	Vintage int
}

// Result is the agent's verdict for one bottle.
type Result struct {
	Label      cellar.ReadinessLabel
	DrinkFrom  *int
	DrinkUntil *int
	Reason     string
}

type rawResult struct {
	Label      string `json:"label"`
	DrinkFrom  *int   `json:"drink_from"`
	DrinkUntil *int   `json:"drink_until"`
	Reason     string `json:"reason"`
}

// Agent asks a text generator for a bottle's readiness.
type Agent struct {
	textGen llm.TextGenerator
}

// NewAgent creates an Agent.
func NewAgent(textGen llm.TextGenerator) *Agent {
	return &Agent{textGen: textGen}
}

// Analyze classifies one bottle as of year.
func (a *Agent) Analyze(ctx context.Context, b cellar.Bottle, year int) (Result, shared.AgentMeta, error) {
	start := time.Now()
	meta := shared.AgentMeta{AgentName: AgentName}

	prompt, err := buildPrompt(b, year)
	if err != nil {
		return Result{}, meta, err
	}

	resp, err := a.textGen.GenerateContent(ctx, prompt)
	if err != nil {
		return Result{}, meta, fmt.Errorf("failed to analyze bottle %s: %w", b.ID, err)
	}
	meta.Usage = resp.Usage
	meta.Latency = time.Since(start)

	result, err := parseResult(resp.Content)
	if err != nil {
		return Result{}, meta, fmt.Errorf("bottle %s: %w", b.ID, err)
	}
	return result, meta, nil
}

func buildPrompt(b cellar.Bottle, year int) (string, error) {
	data := promptData{Year: year, Wine: b.Wine}
	if b.Wine.Vintage != nil {
		data.Vintage = *b.Wine.Vintage
	}

	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render readiness prompt: %w", err)
	}
	return buf.String(), nil
}

func parseResult(content string) (Result, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var raw rawResult
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return Result{}, fmt.Errorf("failed to parse readiness response %w. Response: %s", err, content)
	}

	label, err := cellar.ParseReadinessLabel(raw.Label)
	if err != nil {
		return Result{}, err
	}
	if raw.DrinkFrom != nil && raw.DrinkUntil != nil && *raw.DrinkUntil < *raw.DrinkFrom {
		return Result{}, fmt.Errorf("drink window %d-%d is inverted", *raw.DrinkFrom, *raw.DrinkUntil)
	}

	return Result{
		Label:      label,
		DrinkFrom:  raw.DrinkFrom,
		DrinkUntil: raw.DrinkUntil,
		Reason:     raw.Reason,
	}, nil
}
