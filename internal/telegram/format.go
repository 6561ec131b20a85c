package telegram

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"wine-cellar/internal/cellar"
	"wine-cellar/internal/evening"
	"wine-cellar/internal/insight"
	"wine-cellar/internal/metrics"
)

var bucketTitles = map[cellar.ReadinessLabel]string{
	cellar.ReadinessHold:     "🕰 Hold",
	cellar.ReadinessPeakSoon: "📈 Peak soon",
	cellar.ReadinessReady:    "🍷 Ready",
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func formatInsights(r insight.Report) string {
	var sb strings.Builder
	sb.WriteString("📊 *Drink Window*\n\n")
	if r.Total == 0 {
		sb.WriteString("_No analyzed bottles yet. Try /analyze_\n")
		return sb.String()
	}

	for _, l := range cellar.Labels {
		fmt.Fprintf(&sb, "%s: *%d*", bucketTitles[l], r.Counts.Get(l))
		if d, ok := r.Delta(l); ok {
			fmt.Fprintf(&sb, " (%+d vs last month)", d)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "\nAnalyzed: %d\n", r.Total)

	if r.Tonight != nil && r.Tonight.Actionable() {
		fmt.Fprintf(&sb, "\n✨ *Tonight*: %d ready bottle(s) rated %.1f or more.", r.Tonight.Count, r.Tonight.Threshold)
	}
	return sb.String()
}

func formatPlan(p evening.Plan) string {
	var sb strings.Builder
	switch p.Status {
	case evening.StateLive:
		sb.WriteString("🥂 *Evening in progress*\n\n")
	case evening.StateComplete:
		sb.WriteString("🌙 *Evening complete*\n\n")
	default:
		title := "Lineup"
		if p.Occasion() != "" {
			title = "Lineup for " + p.Occasion()
		}
		fmt.Fprintf(&sb, "📋 *%s*\n\n", escape(title))
	}

	if len(p.Lineup) == 0 {
		sb.WriteString("_No bottles match these preferences._\n")
		return sb.String()
	}

	if p.Status == evening.StateLineup {
		for _, s := range p.Lineup {
			lock := ""
			if s.Locked {
				lock = " 🔒"
			}
			fmt.Fprintf(&sb, "%d. *%s*: %s%s\n", s.Position, s.Label, escape(s.Bottle.DisplayName()), lock)
		}
		sb.WriteString("\n/alts to see swaps, /go to start")
		return sb.String()
	}

	for i, q := range p.Queue {
		marker := "▫️"
		switch {
		case q.ServedAt != nil:
			marker = "✅"
		case i == p.CurrentIndex && p.Status == evening.StateLive:
			marker = "👉"
		}
		fmt.Fprintf(&sb, "%s %d. *%s*: %s\n", marker, q.Position, q.Label, escape(q.BottleName))
	}
	if p.Status == evening.StateLive {
		sb.WriteString("\n/next when served, /end to finish")
	}
	return sb.String()
}

func formatAlternatives(alts []cellar.Bottle) string {
	if len(alts) == 0 {
		return "🤷 No other bottles match this lineup."
	}
	var sb strings.Builder
	sb.WriteString("🔁 *Alternatives*\n\n")
	for i, b := range alts {
		fmt.Fprintf(&sb, "%d. %s", i+1, escape(b.DisplayName()))
		if b.Wine.Rating != nil {
			fmt.Fprintf(&sb, " (%.1f)", *b.Wine.Rating)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n/swap <position> <alternative>")
	return sb.String()
}

func formatMetrics(usage []metrics.DailyUsage, health metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent LLM Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		fmt.Fprintf(&sb, "• *%s*: %d tokens (%d execs)\n", d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution)
	}

	sb.WriteString("\n🧠 *System Health*\n")
	fmt.Fprintf(&sb, "• RAM: %s (Alloc) / %s (Sys)\n", health.Alloc, health.Sys)
	fmt.Fprintf(&sb, "• Goroutines: %d\n", health.Goroutines)
	fmt.Fprintf(&sb, "• Disk Data: %s\n", health.DataDiskSize)
	return sb.String()
}

// parsePlanArgs reads "<occasion> <size> [reds] [top]". Occasion may span words.
func parsePlanArgs(args []string) (evening.Preferences, error) {
	var prefs evening.Preferences
	var occasion []string
	for _, a := range args {
		switch strings.ToLower(a) {
		case "reds", "red":
			prefs.RedsOnly = true
		case "top":
			prefs.HighRatingOnly = true
		default:
			if g, err := evening.ParseGroupSize(a); err == nil {
				prefs.GroupSize = g
				continue
			}
			occasion = append(occasion, a)
		}
	}
	if prefs.GroupSize == "" {
		return prefs, errors.New("missing group size")
	}
	prefs.Occasion = strings.Join(occasion, " ")
	return prefs, nil
}

func parseInts(args []string, n int) ([]int, error) {
	if len(args) < n {
		return nil, fmt.Errorf("want %d numbers, got %d", n, len(args))
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		v, err := strconv.Atoi(args[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
