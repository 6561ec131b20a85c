package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"wine-cellar/internal/cellar"
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Show readiness buckets, monthly deltas and the tonight signal",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := opContext(cmd)
		defer cancel()

		report, err := application.Insights(ctx, userID)
		if err != nil {
			return err
		}
		printInsights(cmd.OutOrStdout(), report)
		return nil
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Label unanalyzed bottles with the readiness agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireLLM(); err != nil {
			return err
		}
		ctx, cancel := opContext(cmd)
		defer cancel()

		sum, err := application.AnalyzePending(ctx, userID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Analyzed %d bottle(s), %d failed, %d skipped. Tokens used: %d\n",
			sum.Analyzed, sum.Failed, sum.Skipped, sum.Usage.TotalTokens)
		return nil
	},
}

var importQuantity int

var importCmd = &cobra.Command{
	Use:   "import <url>",
	Short: "Add a bottle from a wine shop page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireLLM(); err != nil {
			return err
		}
		ctx, cancel := opContext(cmd)
		defer cancel()

		b, err := application.Import(ctx, userID, args[0], importQuantity)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s x%d (id %s)\n", b.DisplayName(), b.Quantity, b.ID)
		return nil
	},
}

var bottlesCmd = &cobra.Command{
	Use:   "bottles",
	Short: "List the cellar",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := opContext(cmd)
		defer cancel()

		bottles, err := application.Bottles(ctx, userID)
		if err != nil {
			return err
		}
		printBottles(cmd.OutOrStdout(), bottles)
		return nil
	},
}

var (
	addName     string
	addProducer string
	addColor    string
	addRegion   string
	addGrape    string
	addVintage  int
	addRating   float64
	addQuantity int
	addLabel    string
)

var bottlesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a bottle by hand",
	RunE: func(cmd *cobra.Command, args []string) error {
		color, err := cellar.ParseColor(addColor)
		if err != nil {
			return err
		}
		b := cellar.Bottle{
			UserID:   userID,
			Quantity: addQuantity,
			Wine: cellar.Wine{
				Name:     addName,
				Producer: addProducer,
				Color:    color,
				Region:   addRegion,
				Grape:    addGrape,
			},
		}
		if cmd.Flags().Changed("vintage") {
			b.Wine.Vintage = cellar.Int(addVintage)
		}
		if cmd.Flags().Changed("rating") {
			if addRating < 0 || addRating > 5 {
				return fmt.Errorf("rating must be within 0..5")
			}
			b.Wine.Rating = cellar.Float(addRating)
		}
		if addLabel != "" {
			label, err := cellar.ParseReadinessLabel(addLabel)
			if err != nil {
				return err
			}
			b.Readiness = &label
		}

		ctx, cancel := opContext(cmd)
		defer cancel()
		saved, err := application.AddBottle(ctx, b)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s x%d (id %s)\n", saved.DisplayName(), saved.Quantity, saved.ID)
		return nil
	},
}

var bottlesQtyCmd = &cobra.Command{
	Use:   "qty <id> <quantity>",
	Short: "Set how many of a bottle are left",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		qty, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid quantity %q", args[1])
		}
		ctx, cancel := opContext(cmd)
		defer cancel()
		return application.SetQuantity(ctx, args[0], qty)
	},
}

var (
	snapshotDays int
	metricsDays  int
)

var snapshotsCleanupCmd = &cobra.Command{
	Use:   "snapshots-cleanup",
	Short: "Remove readiness snapshots older than --days",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := opContext(cmd)
		defer cancel()

		affected, err := application.CleanupSnapshots(ctx, snapshotDays)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Successfully removed %d old snapshots.\n", affected)
		return nil
	},
}

var metricsCleanupCmd = &cobra.Command{
	Use:   "metrics-cleanup",
	Short: "Remove LLM execution metrics and expired drafts older than --days",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := opContext(cmd)
		defer cancel()

		affected, err := application.CleanupMetrics(ctx, metricsDays)
		if err != nil {
			return err
		}
		sessions, err := application.CleanupSessions(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Successfully removed %d old metric records and %d expired drafts.\n", affected, sessions)
		return nil
	},
}

func init() {
	importCmd.Flags().IntVarP(&importQuantity, "quantity", "q", 1, "Number of bottles")

	bottlesAddCmd.Flags().StringVar(&addName, "name", "", "Wine name (required)")
	bottlesAddCmd.Flags().StringVar(&addProducer, "producer", "", "Producer")
	bottlesAddCmd.Flags().StringVar(&addColor, "color", "red", "red, white, rose or sparkling")
	bottlesAddCmd.Flags().StringVar(&addRegion, "region", "", "Region")
	bottlesAddCmd.Flags().StringVar(&addGrape, "grape", "", "Grape")
	bottlesAddCmd.Flags().IntVar(&addVintage, "vintage", 0, "Vintage year")
	bottlesAddCmd.Flags().Float64Var(&addRating, "rating", 0, "Rating from 0 to 5")
	bottlesAddCmd.Flags().IntVarP(&addQuantity, "quantity", "q", 1, "Number of bottles")
	bottlesAddCmd.Flags().StringVar(&addLabel, "label", "", "HOLD, PEAK_SOON or READY")
	_ = bottlesAddCmd.MarkFlagRequired("name")
	bottlesCmd.AddCommand(bottlesAddCmd)
	bottlesCmd.AddCommand(bottlesQtyCmd)

	snapshotsCleanupCmd.Flags().IntVar(&snapshotDays, "days", 365, "Keep snapshots for the last N days")
	metricsCleanupCmd.Flags().IntVar(&metricsDays, "days", 30, "Keep records for the last N days")
}
