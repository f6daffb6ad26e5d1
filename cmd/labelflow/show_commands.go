package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"labelflow/internal/lineage"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <image>",
		Short: "Show the current version of a label transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			manager, fieldSchema, _, err := ctx.newManager(cfg)
			if err != nil {
				return err
			}

			head, err := manager.Head(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Version:  %s\n", head.ID)
			fmt.Fprintf(out, "Creator:  %s (%s)\n", head.Generation.CreatedBy, creatorKind(head.Generation.IsAIGenerated))
			fmt.Fprintf(out, "Created:  %s\n", head.Generation.CreatedAt.Local().Format(time.DateTime))
			fmt.Fprintf(out, "Cost:     %s own, %s overall\n\n",
				formatCost(head.Costs.Own), formatCost(head.Costs.Overall))

			rows := make([][]string, 0, len(fieldSchema.Fields()))
			for _, field := range fieldSchema.Fields() {
				value := head.Content[field]
				rating := "-"
				if r, err := manager.FieldValidationRating(cmd.Context(), args[0], field); err == nil {
					rating = strconv.Itoa(r)
				}
				rows = append(rows, []string{field, value.Value, rating, value.Notes})
			}
			table := renderTable(
				[]string{"Field", "Value", "Rating", "Notes"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			)
			fmt.Fprintln(out, table)
			return nil
		},
	}
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history <image>",
		Short: "Show the full version lineage of a label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			manager, _, _, err := ctx.newManager(cfg)
			if err != nil {
				return err
			}

			history, err := manager.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(history))
			for _, version := range history {
				rows = append(rows, []string{
					version.ID,
					version.Generation.CreatedBy,
					creatorKind(version.Generation.IsAIGenerated),
					version.Generation.CreatedAt.Local().Format(time.DateTime),
					formatAlignment(version),
					formatCost(version.Costs.Own),
				})
			}
			table := renderTable(
				[]string{"Version", "Creator", "Kind", "Created", "Alignment", "Cost"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

func newValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <image> [field]",
		Short: "Show validation ratings for the current version",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			manager, fieldSchema, _, err := ctx.newManager(cfg)
			if err != nil {
				return err
			}

			fields := fieldSchema.Fields()
			if len(args) == 2 {
				fields = []string{args[1]}
			}

			rows := make([][]string, 0, len(fields))
			for _, field := range fields {
				rating, err := manager.FieldValidationRating(cmd.Context(), args[0], field)
				if err != nil {
					return err
				}
				rows = append(rows, []string{field, strconv.Itoa(rating), ratingMeaning(rating)})
			}
			table := renderTable(
				[]string{"Field", "Rating", "Meaning"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

func creatorKind(isAI bool) string {
	if isAI {
		return "model"
	}
	return "human"
}

func formatCost(costs lineage.CostData) string {
	return fmt.Sprintf("$%.4f", costs.TotalCost())
}

func formatAlignment(version *lineage.Version) string {
	if len(version.Comparisons) == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f", version.Comparisons[0].AlignmentRating)
}

func ratingMeaning(rating int) string {
	switch rating {
	case 3:
		return "confirmed by two reviewers"
	case 2:
		return "reviewer agrees with model"
	case 1:
		return "two models agree"
	default:
		return "unvalidated"
	}
}
