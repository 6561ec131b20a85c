package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"wine-cellar/internal/evening"
)

var (
	planOccasion string
	planSize     string
	planReds     bool
	planTop      bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan and run an evening lineup",
}

var planGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Build a lineup draft from the cellar",
	RunE: func(cmd *cobra.Command, args []string) error {
		size, err := evening.ParseGroupSize(planSize)
		if err != nil {
			return err
		}
		ctx, cancel := opContext(cmd)
		defer cancel()

		plan, err := application.GeneratePlan(ctx, userID, evening.Preferences{
			Occasion:       planOccasion,
			GroupSize:      size,
			RedsOnly:       planReds,
			HighRatingOnly: planTop,
		})
		if err != nil {
			return err
		}
		printPlan(cmd.OutOrStdout(), plan)
		return nil
	},
}

var planAlternativesCmd = &cobra.Command{
	Use:   "alternatives",
	Short: "List bottles that can be swapped into the lineup",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := opContext(cmd)
		defer cancel()

		_, alts, err := application.PlanAlternatives(ctx, userID)
		if err != nil {
			return err
		}
		printAlternatives(cmd.OutOrStdout(), alts)
		return nil
	},
}

var planSwapCmd = &cobra.Command{
	Use:   "swap <position> <alternative>",
	Short: "Replace the wine at a position with a numbered alternative",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		position, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid position %q", args[0])
		}
		choice, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid alternative %q", args[1])
		}
		ctx, cancel := opContext(cmd)
		defer cancel()

		plan, err := application.SwapPlan(ctx, userID, position, choice)
		if err != nil {
			return err
		}
		printPlan(cmd.OutOrStdout(), plan)
		return nil
	},
}

var planLockCmd = &cobra.Command{
	Use:   "lock <position>",
	Short: "Lock or unlock a slot of the draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		position, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid position %q", args[0])
		}
		ctx, cancel := opContext(cmd)
		defer cancel()

		plan, err := application.ToggleLock(ctx, userID, position)
		if err != nil {
			return err
		}
		printPlan(cmd.OutOrStdout(), plan)
		return nil
	},
}

// planStepCmd builds a subcommand around one plan transition.
func planStepCmd(use, short string, step func(*cobra.Command) (evening.Plan, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := step(cmd)
			if err != nil {
				return err
			}
			printPlan(cmd.OutOrStdout(), plan)
			return nil
		},
	}
}

func init() {
	planGenerateCmd.Flags().StringVar(&planOccasion, "occasion", "", "What the evening is for")
	planGenerateCmd.Flags().StringVar(&planSize, "size", "small", "Group size: small, medium or large")
	planGenerateCmd.Flags().BoolVar(&planReds, "reds", false, "Only red wines")
	planGenerateCmd.Flags().BoolVar(&planTop, "top", false, "Only bottles at or above the standout rating")

	planCmd.AddCommand(planGenerateCmd, planAlternativesCmd, planSwapCmd, planLockCmd)
	planCmd.AddCommand(
		planStepCmd("start", "Start the drafted evening", func(cmd *cobra.Command) (evening.Plan, error) {
			ctx, cancel := opContext(cmd)
			defer cancel()
			return application.StartPlan(ctx, userID)
		}),
		planStepCmd("next", "Mark the current wine as served", func(cmd *cobra.Command) (evening.Plan, error) {
			ctx, cancel := opContext(cmd)
			defer cancel()
			return application.NextWine(ctx, userID)
		}),
		planStepCmd("end", "Finish the evening", func(cmd *cobra.Command) (evening.Plan, error) {
			ctx, cancel := opContext(cmd)
			defer cancel()
			return application.EndPlan(ctx, userID)
		}),
		planStepCmd("resume", "Show the live evening or the draft", func(cmd *cobra.Command) (evening.Plan, error) {
			ctx, cancel := opContext(cmd)
			defer cancel()
			return application.CurrentPlan(ctx, userID)
		}),
	)
}
