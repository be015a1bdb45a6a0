package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abhisek/revise/internal/store"
	"github.com/spf13/cobra"
)

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "Inspect outcome batches recorded by the store sink",
}

var batchesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded batches, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		since, _ := cmd.Flags().GetDuration("since")
		owner, _ := cmd.Flags().GetString("owner")

		opts := store.QueryOpts{Limit: limit}
		if since > 0 {
			opts.From = time.Now().Add(-since)
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		batches, err := s.BatchRepo().ListBatches(cmd.Context(), opts)
		if err != nil {
			return fmt.Errorf("list batches: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(batches) == 0 {
			fmt.Fprintln(out, "No batches recorded.")
			return nil
		}

		fmt.Fprintf(out, "%-36s  %-19s  %-16s  %8s  %8s\n", "ID", "Recorded", "Owner", "Outcomes", "Seconds")
		fmt.Fprintln(out, strings.Repeat("─", 96))
		for _, b := range batches {
			if owner != "" && b.OwnerID != owner {
				continue
			}
			fmt.Fprintf(out, "%-36s  %-19s  %-16s  %8d  %8s\n",
				b.ID,
				b.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				truncate(b.OwnerID, 16),
				b.OutcomeCount,
				formatScore(b.DurationSeconds),
			)
		}
		return nil
	},
}

var batchesViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "Show every outcome of a recorded batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		b, err := s.BatchRepo().GetBatch(cmd.Context(), args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("batch %s not found", args[0])
		}
		if err != nil {
			return fmt.Errorf("get batch: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ID:        %s\n", b.ID)
		fmt.Fprintf(out, "Recorded:  %s\n", b.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(out, "Owner:     %s\n", b.OwnerID)
		fmt.Fprintf(out, "Duration:  %ss\n", formatScore(b.DurationSeconds))
		fmt.Fprintln(out)

		fmt.Fprintf(out, "%-12s  %-10s  %6s  %6s  %s\n", "Question", "Focus", "Score", "Secs", "Answer")
		fmt.Fprintln(out, strings.Repeat("─", 80))
		var total float64
		for _, o := range b.Outcomes {
			secs := "-"
			if o.TimeSpentSeconds != nil {
				secs = formatScore(*o.TimeSpentSeconds)
			}
			fmt.Fprintf(out, "%-12s  %-10s  %6s  %6s  %s\n",
				truncate(o.QuestionID, 12),
				o.FocusLabel,
				formatScore(o.ScoreAchieved),
				secs,
				truncate(strings.Join(strings.Fields(o.AnswerText), " "), 40),
			)
			total += o.ScoreAchieved
		}
		fmt.Fprintln(out, strings.Repeat("─", 80))
		fmt.Fprintf(out, "%-12s  %-10s  %6s\n", "TOTAL", "", formatScore(total))
		return nil
	},
}

func init() {
	batchesListCmd.Flags().IntP("limit", "n", 20, "Number of batches to show")
	batchesListCmd.Flags().Duration("since", 0, "Only batches recorded within this window (e.g. 24h)")
	batchesListCmd.Flags().String("owner", "", "Filter by owner ID")

	batchesCmd.AddCommand(batchesListCmd)
	batchesCmd.AddCommand(batchesViewCmd)
}
