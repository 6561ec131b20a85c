package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"wine-cellar/internal/cellar"
	"wine-cellar/internal/evening"
	"wine-cellar/internal/insight"
)

func printInsights(w io.Writer, r insight.Report) {
	fmt.Fprintf(w, "=== DRINK WINDOW (%s) ===\n", r.Day)
	for _, l := range cellar.Labels {
		fmt.Fprintf(w, "%-10s %3d", l, r.Counts.Get(l))
		if d, ok := r.Delta(l); ok {
			fmt.Fprintf(w, "  (%+d vs last month)", d)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Analyzed:  %3d\n", r.Total)

	if r.Tonight != nil && r.Tonight.Actionable() {
		fmt.Fprintf(w, "\nTonight: %d ready bottle(s) rated %.1f or more\n", r.Tonight.Count, r.Tonight.Threshold)
		for _, b := range r.Buckets.Ready {
			if b.RatingAtLeast(r.Tonight.Threshold) {
				fmt.Fprintf(w, "- %s (%.1f)\n", b.DisplayName(), *b.Wine.Rating)
			}
		}
	}
}

func printBottles(w io.Writer, bottles []cellar.Bottle) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWINE\tCOLOR\tQTY\tRATING\tREADINESS")
	for _, b := range bottles {
		rating, label := "-", "-"
		if b.Wine.Rating != nil {
			rating = fmt.Sprintf("%.1f", *b.Wine.Rating)
		}
		if b.Readiness != nil {
			label = string(*b.Readiness)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", b.ID, b.DisplayName(), b.Wine.Color, b.Quantity, rating, label)
	}
	tw.Flush()
}

func printPlan(w io.Writer, p evening.Plan) {
	fmt.Fprintf(w, "=== EVENING PLAN [%s] ===\n", p.Status)
	if p.Occasion() != "" {
		fmt.Fprintf(w, "Occasion: %s (%s)\n", p.Occasion(), p.GroupSize())
	}
	if len(p.Lineup) == 0 {
		fmt.Fprintln(w, "No bottles match these preferences.")
		return
	}

	if p.Status == evening.StateLineup {
		for _, s := range p.Lineup {
			lock := ""
			if s.Locked {
				lock = " [locked]"
			}
			fmt.Fprintf(w, "%d. %-12s %s%s\n", s.Position, s.Label, s.Bottle.DisplayName(), lock)
		}
		return
	}

	for i, q := range p.Queue {
		mark := " "
		switch {
		case q.ServedAt != nil:
			mark = "x"
		case i == p.CurrentIndex && p.Status == evening.StateLive:
			mark = ">"
		}
		fmt.Fprintf(w, "[%s] %d. %-12s %s\n", mark, q.Position, q.Label, q.BottleName)
	}
}

func printAlternatives(w io.Writer, alts []cellar.Bottle) {
	if len(alts) == 0 {
		fmt.Fprintln(w, "No alternatives available.")
		return
	}
	for i, b := range alts {
		fmt.Fprintf(w, "%d. %s\n", i+1, b.DisplayName())
	}
}
