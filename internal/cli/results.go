package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SAP-F-2025/quiz-portal/internal/client"
	"github.com/SAP-F-2025/quiz-portal/internal/client/notice"
	"github.com/SAP-F-2025/quiz-portal/internal/client/pager"
	"github.com/SAP-F-2025/quiz-portal/internal/client/review"
	"github.com/SAP-F-2025/quiz-portal/internal/client/table"
	"github.com/SAP-F-2025/quiz-portal/internal/models"
)

// loadReview fetches the attempt result together with the caller's role.
func (a *App) loadReview(ctx context.Context, arg string) (*review.Review, error) {
	id, err := parseID(arg)
	if err != nil {
		return nil, err
	}
	c, err := a.client()
	if err != nil {
		return nil, err
	}
	me, err := c.Me(ctx)
	if err != nil {
		return nil, err
	}
	return review.Load(ctx, c, id, me.Role, a.notices)
}

var attemptColumns = []table.Column{
	{Label: "ID", Key: "id", Type: table.Number},
	{Label: "Assessment", Key: "assessmentId", Type: table.Number},
	{Label: "Status", Key: "status", Type: table.Enum},
	{Label: "Score", Key: "score", Type: table.Number},
	{Label: "Published", Key: "isPublished", Type: table.Enum, EnumValues: []string{"true", "false"}},
	{Label: "Started", Key: "startedAt", Type: table.Date},
}

func (a *App) attemptsCmd() *cobra.Command {
	var page, perPage int
	var assessment uint
	cmd := &cobra.Command{
		Use:   "attempts",
		Short: "List attempts visible to you",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			ctx := a.requestContext(cmd)

			var filters map[string]string
			if assessment != 0 {
				filters = map[string]string{"assessmentId": strconv.FormatUint(uint64(assessment), 10)}
			}
			p := pager.New[models.AssessmentAttempt](ctx, c.ListAttempts,
				pager.Pagination{Page: page - 1, PerPage: perPage},
				pager.WithFilters(filters), pager.WithLogger(a.logger))
			defer p.Close()
			return renderPage(ctx, a, p, table.New(table.Config{Columns: attemptColumns}))
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&perPage, "per-page", models.DefaultPerPage, "Rows per page")
	cmd.Flags().UintVar(&assessment, "assessment", 0, "Only attempts at this assessment")
	return cmd
}

func (a *App) resultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "result ATTEMPT_ID",
		Short: "Show the result of an attempt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.loadReview(a.requestContext(cmd), args[0])
			if err != nil {
				return err
			}
			a.printReview(r)
			return nil
		},
	}
}

func (a *App) printReview(r *review.Review) {
	res := r.Result()
	a.title(res.AssessmentName)

	if r.Survey() {
		a.hint("Survey responses")
	} else {
		score := fmt.Sprintf("Score: %g / %g", r.TotalScore(), res.TotalMarks)
		fmt.Fprintln(a.Out, bandStyle(r.Band()).Render(score))
		if res.PassMarks != nil {
			fmt.Fprintf(a.Out, "Pass mark: %g\n", *res.PassMarks)
		}
	}
	status := "not published"
	if r.Published() {
		status = "published"
	}
	a.hint(fmt.Sprintf("Attempt %d, %s, %s", res.AttemptID, res.Status, status))

	for i, q := range r.Questions() {
		fmt.Fprintln(a.Out)
		header := fmt.Sprintf("%d. %s", i+1, q.Content)
		if q.Marks != nil && !r.Survey() {
			got := "-"
			if q.UserMarks != nil {
				got = strconv.FormatFloat(*q.UserMarks, 'g', -1, 64)
			}
			header += fmt.Sprintf("  [%s / %g]", got, *q.Marks)
		}
		a.title(header)
		a.hint(fmt.Sprintf("answer %d", q.AnswerID))

		switch q.Type {
		case models.MultipleChoice, models.TrueFalse, models.MultipleAnswer:
			opts, err := r.Options(q.AnswerID)
			if err != nil {
				continue
			}
			for _, o := range opts {
				fmt.Fprintln(a.Out, optionLine(o, r.Survey()))
			}
		default:
			fmt.Fprintf(a.Out, "  Answer: %s\n", plainAnswer(q.UserAnswer))
			if len(q.CorrectAnswer) > 0 && !r.Survey() {
				fmt.Fprintln(a.Out, correctStyle.Render("  Expected: "+plainAnswer(q.CorrectAnswer)))
			}
		}
		if q.Explanation != nil && *q.Explanation != "" {
			a.hint("  " + *q.Explanation)
		}
		if q.Comment != nil && *q.Comment != "" {
			fmt.Fprintf(a.Out, "  Comment: %s\n", *q.Comment)
		}
	}

	if r.CanMark() {
		if pending := r.Unmarked(); len(pending) > 0 {
			fmt.Fprintln(a.Out)
			a.hint("Still to mark: " + joinIDs(pending))
		}
	}
}

func optionLine(o review.OptionMark, survey bool) string {
	box := "[ ]"
	if o.Selected {
		box = "[x]"
	}
	line := fmt.Sprintf("  %s %s", box, o.Answer)
	switch {
	case survey:
		if o.Selected {
			return selectedStyle.Render(line)
		}
	case o.Correct:
		return correctStyle.Render(line)
	case o.Selected:
		return wrongStyle.Render(line)
	}
	return line
}

// plainAnswer renders a stored answer for display: strings unquoted,
// anything else as compact JSON.
func plainAnswer(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return "(no answer)"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "(no answer)"
		}
		return strings.ReplaceAll(s, "|", " | ")
	}
	return string(raw)
}

func (a *App) markCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mark ATTEMPT_ID ANSWER_ID SCORE",
		Short: "Score a text answer",
		Long:  "The score is clamped to the question's marks before it is saved.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.requestContext(cmd)
			answerID, err := parseID(args[1])
			if err != nil {
				return err
			}
			score, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid score %q", args[2])
			}
			r, err := a.loadReview(ctx, args[0])
			if err != nil {
				return err
			}

			if err := r.BeginScoreEdit(answerID); err != nil {
				return err
			}
			stored, err := r.SetDraftScore(answerID, score)
			if err != nil {
				return err
			}
			if stored != score {
				a.notices.Show(notice.Warning, fmt.Sprintf("Score adjusted to %g", stored), 0)
			}
			if err := r.SaveScore(ctx, answerID); err != nil {
				r.CancelScoreEdit(answerID)
				return err
			}
			fmt.Fprintf(a.Out, "Total: %g / %g\n", r.TotalScore(), r.Result().TotalMarks)
			return nil
		},
	}
}

func (a *App) commentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comment ATTEMPT_ID ANSWER_ID TEXT",
		Short: "Leave a comment on an answer",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.requestContext(cmd)
			answerID, err := parseID(args[1])
			if err != nil {
				return err
			}
			r, err := a.loadReview(ctx, args[0])
			if err != nil {
				return err
			}
			if err := r.BeginCommentEdit(answerID); err != nil {
				return err
			}
			if err := r.SetDraftComment(answerID, strings.Join(args[2:], " ")); err != nil {
				return err
			}
			if err := r.SaveComment(ctx, answerID); err != nil {
				r.CancelCommentEdit(answerID)
				return err
			}
			return nil
		},
	}
}

func (a *App) publishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish ATTEMPT_ID",
		Short: "Publish a marked result to the taker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.requestContext(cmd)
			r, err := a.loadReview(ctx, args[0])
			if err != nil {
				return err
			}
			if !r.CanMark() {
				return review.ErrNotAllowed
			}
			if pending := r.Unmarked(); len(pending) > 0 {
				a.hint("Still to mark: " + joinIDs(pending))
			}
			return r.Publish(ctx)
		},
	}
}

func (a *App) exportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export ASSESSMENT_ID",
		Short: "Download the results of an assessment as a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			data, name, err := c.ExportResults(a.requestContext(cmd), id)
			if err != nil {
				a.notices.Error(client.Message(err, "Failed to export results"))
				return err
			}
			if output == "" {
				output = name
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(a.Out, "Saved %s (%d bytes)\n", output, len(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "File to write (defaults to the server's file name)")
	return cmd
}
