// Package importer turns a wine shop product page into a draft bottle.
package importer

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/PuerkitoBio/goquery"

	"wine-cellar/internal/cellar"
	"wine-cellar/internal/llm"
	"wine-cellar/internal/shared"
)

// AgentName is recorded with every execution metric.
const AgentName = "Importer"

// maxContentRunes bounds the page text sent to the model.
const maxContentRunes = 12000

//go:embed extractor_prompt.md
var extractorPrompt string

var extractorTmpl = template.Must(template.New("extractor").Parse(extractorPrompt))

// Importer handles fetching and extracting wines from URLs.
type Importer struct {
	textGen    llm.TextGenerator
	httpClient *http.Client
}

// ExtractedWine represents the data structured by the AI.
type ExtractedWine struct {
	Name     string `json:"name"`
	Producer string `json:"producer"`
	Vintage  *int   `json:"vintage"`
	Color    string `json:"color"`
	Region   string `json:"region"`
	Grape    string `json:"grape"`
}

// Draft is an imported wine waiting for a quantity.
type Draft struct {
	Wine      cellar.Wine
	SourceURL string
}

// Bottle turns the draft into a bottle for userID.
func (d Draft) Bottle(userID string, quantity int) cellar.Bottle {
	return cellar.Bottle{UserID: userID, Quantity: quantity, Wine: d.Wine}
}

// NewImporter creates a new Importer instance.
func NewImporter(textGen llm.TextGenerator) *Importer {
	return &Importer{
		textGen:    textGen,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// ImportURL fetches the URL and extracts the wine using AI.
func (i *Importer) ImportURL(ctx context.Context, url string) (Draft, shared.AgentMeta, error) {
	start := time.Now()
	meta := shared.AgentMeta{AgentName: AgentName}

	title, content, err := i.fetchAndCleanHTML(ctx, url)
	if err != nil {
		return Draft{}, meta, fmt.Errorf("failed to fetch content: %w", err)
	}

	var buf bytes.Buffer
	if err := extractorTmpl.Execute(&buf, struct{ Title, Content string }{title, content}); err != nil {
		return Draft{}, meta, fmt.Errorf("failed to render extractor prompt: %w", err)
	}

	resp, err := i.textGen.GenerateContent(ctx, buf.String())
	if err != nil {
		return Draft{}, meta, fmt.Errorf("ai extraction failed: %w", err)
	}
	meta.Usage = resp.Usage
	meta.Latency = time.Since(start)

	var extracted ExtractedWine
	if err := json.Unmarshal([]byte(resp.Content), &extracted); err != nil {
		return Draft{}, meta, fmt.Errorf("failed to parse AI response: %w. Response: %s", err, resp.Content)
	}

	wine, err := extracted.toWine()
	if err != nil {
		return Draft{}, meta, err
	}
	return Draft{Wine: wine, SourceURL: url}, meta, nil
}

func (e ExtractedWine) toWine() (cellar.Wine, error) {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return cellar.Wine{}, fmt.Errorf("no wine name found on page")
	}
	color, err := cellar.ParseColor(e.Color)
	if err != nil {
		return cellar.Wine{}, err
	}
	return cellar.Wine{
		Name:     name,
		Producer: strings.TrimSpace(e.Producer),
		Vintage:  e.Vintage,
		Color:    color,
		Region:   strings.TrimSpace(e.Region),
		Grape:    strings.TrimSpace(e.Grape),
	}, nil
}

func (i *Importer) fetchAndCleanHTML(ctx context.Context, url string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", err
	}
	resp, err := i.httpClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("failed to fetch URL: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", "", err
	}

	title := strings.TrimSpace(doc.Find(`meta[property="og:title"]`).AttrOr("content", ""))
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	// Remove noise to save LLM tokens
	doc.Find("script, style, nav, header, footer, iframe, form, .ads, #ads, .cookie-banner").Remove()

	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	if r := []rune(text); len(r) > maxContentRunes {
		text = string(r[:maxContentRunes])
	}
	return title, text, nil
}

// Describe renders a one-line summary of a draft for chat and terminal output.
func Describe(d Draft) string {
	var sb strings.Builder
	sb.WriteString(d.Wine.Name)
	if d.Wine.Producer != "" {
		fmt.Fprintf(&sb, " by %s", d.Wine.Producer)
	}
	if d.Wine.Vintage != nil {
		fmt.Fprintf(&sb, " (%d)", *d.Wine.Vintage)
	}
	fmt.Fprintf(&sb, ", %s", d.Wine.Color)
	if d.Wine.Region != "" {
		fmt.Fprintf(&sb, ", %s", d.Wine.Region)
	}
	if d.Wine.Grape != "" {
		fmt.Fprintf(&sb, ", %s", d.Wine.Grape)
	}
	return sb.String()
}
