package cmd

import (
	"fmt"
	"strings"

	"github.com/abhisek/revise/internal/question"
	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <batch.yaml>",
	Short: "Show the inferred type and marking method of each question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		batch, err := question.LoadBatch(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(batch.Questions) == 0 {
			fmt.Fprintln(out, "No questions in batch.")
			return nil
		}

		fmt.Fprintf(out, "%-12s  %-16s  %-18s  %-6s  %s\n", "ID", "Type", "Method", "Marks", "Text")
		fmt.Fprintln(out, strings.Repeat("─", 80))
		for _, q := range question.ClassifyAll(batch.Questions) {
			text := strings.Join(strings.Fields(q.Text), " ")
			fmt.Fprintf(out, "%-12s  %-16s  %-18s  %-6s  %s\n",
				truncate(q.ID, 12),
				q.Type,
				question.SelectMethod(q),
				formatScore(q.Marks()),
				truncate(text, 40),
			)
		}
		return nil
	},
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
