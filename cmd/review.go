package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/abhisek/revise/internal/evaluation"
	"github.com/abhisek/revise/internal/question"
	"github.com/abhisek/revise/internal/session"
	"github.com/spf13/cobra"
)

var reviewCmd = &cobra.Command{
	Use:   "review <batch.yaml>",
	Short: "Review a batch of questions in the terminal",
	Long: "Review a batch of questions one at a time. Type an answer and press Enter.\n" +
		"Commands: :finish ends early and submits what was answered, :quit abandons the session.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		batch, err := question.LoadBatch(args[0])
		if err != nil {
			return err
		}

		d, err := buildDeps(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		owner, _ := cmd.Flags().GetString("owner")
		if owner == "" {
			owner = batch.OwnerID
		}
		s := session.New(batch.Questions, d.sessionOptions(owner))
		return runReview(cmd.Context(), s, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	reviewCmd.Flags().String("owner", "", "Batch owner ID (overrides the batch file and submission.owner_id)")
}

// runReview drives s from lines read on in until the session reaches a
// terminal phase or in is exhausted.
func runReview(ctx context.Context, s *session.Session, in io.Reader, out io.Writer) error {
	if st := s.State(); st.Phase == session.PhaseError {
		return st.Err
	}

	lines := bufio.NewScanner(in)
	readLine := func() (string, bool) {
		if !lines.Scan() {
			return "", false
		}
		return strings.TrimSpace(lines.Text()), true
	}

	for {
		st := s.State()
		switch st.Phase {
		case session.PhaseActive:
			q, _ := s.Current()
			printQuestion(out, st, q)
			fmt.Fprint(out, "> ")
			line, ok := readLine()
			if !ok {
				s.Abandon()
				fmt.Fprintln(out, "\nInput closed; session abandoned.")
				return nil
			}
			switch line {
			case "":
				continue
			case ":quit":
				s.Abandon()
				fmt.Fprintln(out, "Session abandoned. Nothing was submitted.")
				return nil
			case ":finish":
				if _, err := s.Finish(ctx); err != nil {
					if !handleSubmitError(ctx, s, err, out, readLine) {
						return err
					}
				}
				continue
			}
			res, err := s.SubmitAnswer(ctx, line)
			if err != nil {
				return err
			}
			printResult(out, res)

		case session.PhaseMarked:
			if _, err := s.Advance(ctx); err != nil {
				if !handleSubmitError(ctx, s, err, out, readLine) {
					return err
				}
			}

		case session.PhaseComplete:
			outcomes := s.Outcomes()
			var score float64
			for _, o := range outcomes {
				score += o.ScoreAchieved
			}
			if st.Submitted {
				fmt.Fprintf(out, "\nDone. %d answered, %s marks in total. Results submitted.\n",
					len(outcomes), formatScore(score))
				return nil
			}
			return st.Err

		default:
			return nil
		}
	}
}

// handleSubmitError reports a failed submission and offers retries until
// it succeeds or the learner declines. It returns false for errors that are
// not submission failures.
func handleSubmitError(ctx context.Context, s *session.Session, err error, out io.Writer, readLine func() (string, bool)) bool {
	var se *session.SubmitError
	for errors.As(err, &se) {
		fmt.Fprintf(out, "Could not submit results (%s): %s\n", se.Kind, se.Message)
		fmt.Fprint(out, "Retry? [y/N] ")
		line, ok := readLine()
		if !ok || !strings.EqualFold(line, "y") {
			return true
		}
		_, err = s.Retry(ctx)
	}
	return err == nil
}

func printQuestion(out io.Writer, st session.State, q question.Question) {
	fmt.Fprintf(out, "\n[%d/%d] %s\n", st.CurrentIndex+1, st.Total, q.Text)
	if q.Type == question.TypeMultipleChoice && len(q.Options) > 0 && len(question.ExtractOptions(q.Text)) == 0 {
		for i, opt := range q.Options {
			fmt.Fprintf(out, "  %c) %s\n", 'a'+i, opt)
		}
	}
	if q.Type == question.TypeTrueFalse {
		fmt.Fprintln(out, "  (true/false)")
	}
}

func printResult(out io.Writer, r *evaluation.Result) {
	switch {
	case r.Pending:
		fmt.Fprintf(out, "… %s\n", r.Feedback)
	case r.Correct == evaluation.CorrectnessTrue:
		fmt.Fprintf(out, "✓ %s\n", r.Feedback)
	default:
		fmt.Fprintf(out, "✗ %s\n", r.Feedback)
	}
	if r.Explanation != "" {
		fmt.Fprintf(out, "  %s\n", r.Explanation)
	}
	if r.Score != nil {
		fmt.Fprintf(out, "  Score: %s/%s\n", formatScore(*r.Score), formatScore(r.ScoreAvailable))
	}
}

func formatScore(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
