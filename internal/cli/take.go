package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SAP-F-2025/quiz-portal/internal/client/notice"
	"github.com/SAP-F-2025/quiz-portal/internal/client/session"
	"github.com/SAP-F-2025/quiz-portal/internal/models"
)

const takeHelp = `Commands:
  <n>          choose option n (toggles it for multiple answer questions)
  <text>       answer a fill-in or text question; separate blanks with |
  =<text>      answer with text that would otherwise read as a command
  n, next      next question
  p, prev      previous question
  j <n>        jump to question n
  s, submit    submit the attempt
  q, quit      leave without submitting
  ?            show this help`

func (a *App) takeCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "take ASSESSMENT_ID",
		Short: "Take an assessment",
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
			ctx := a.requestContext(cmd)

			s, err := session.Start(ctx, c, session.Entry{
				AssessmentID: id,
				Internal:     yes,
				Confirm:      func() bool { return a.confirm(fmt.Sprintf("Start an attempt at assessment %d?", id)) },
			}, a.notices)
			if errors.Is(err, session.ErrDeclined) {
				fmt.Fprintln(a.Out, "Not started")
				return nil
			}
			if err != nil {
				return err
			}
			return a.runSession(cmd, s)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Start without asking")
	return cmd
}

func (a *App) runSession(cmd *cobra.Command, s *session.Session) error {
	ctx := a.requestContext(cmd)
	a.title(s.AssessmentName())
	if s.Len() == 0 {
		fmt.Fprintln(a.Out, "This assessment has no questions.")
	}
	a.hint(takeHelp)

	submit := func() error {
		result, err := s.Submit(ctx)
		if err != nil {
			return err
		}
		a.printSubmitted(result)
		return nil
	}

	for {
		if s.Expired(a.Now()) {
			a.notices.Show(notice.Warning, "Time is up, submitting your answers", 0)
			return submit()
		}
		a.printQuestion(s)

		line, err := a.prompt("> ")
		if errors.Is(err, io.EOF) {
			_ = s.Save(ctx)
			fmt.Fprintln(a.Out, "\nLeft without submitting; resume with the same command.")
			return nil
		}
		if err != nil {
			return err
		}
		// The deadline may have passed while waiting for input.
		if s.Expired(a.Now()) {
			a.notices.Show(notice.Warning, "Time is up, submitting your answers", 0)
			return submit()
		}

		lower := strings.ToLower(line)
		switch {
		case lower == "":
		case lower == "?" || lower == "h" || lower == "help":
			a.hint(takeHelp)
		case lower == "n" || lower == "next":
			s.Next(ctx)
		case lower == "p" || lower == "prev" || lower == "previous":
			s.Previous(ctx)
		case strings.HasPrefix(lower, "j ") || strings.HasPrefix(lower, "jump "):
			_, arg, _ := strings.Cut(lower, " ")
			n, err := strconv.Atoi(strings.TrimSpace(arg))
			if err != nil || s.Jump(ctx, n-1) != nil {
				a.notices.Error("No such question")
			}
		case lower == "s" || lower == "submit":
			if err := submit(); err != nil {
				// Already posted to the banner; stay in the session.
				continue
			}
			return nil
		case lower == "q" || lower == "quit":
			if err := s.Save(ctx); err != nil {
				fmt.Fprintln(a.Out, "Your last answer was not saved.")
			}
			fmt.Fprintln(a.Out, "Left without submitting; resume with the same command.")
			return nil
		default:
			if err := a.answer(s, strings.TrimPrefix(line, "=")); err != nil {
				a.notices.Error(err.Error())
			}
		}
	}
}

func (a *App) answer(s *session.Session, line string) error {
	q, ok := s.Current()
	if !ok {
		return errors.New("no question selected")
	}
	switch q.Type {
	case models.MultipleChoice, models.TrueFalse, models.MultipleAnswer:
		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > len(q.Options) {
			return fmt.Errorf("choose an option between 1 and %d", len(q.Options))
		}
		optionID := q.Options[n-1].ID
		if q.Type == models.MultipleAnswer {
			return s.ToggleOption(optionID)
		}
		return s.SelectOption(optionID)
	case models.FillIn:
		if q.BlankCount > 1 {
			return s.SetBlanks(strings.Split(line, session.BlankSeparator))
		}
		return s.SetText(line)
	default:
		return s.SetText(line)
	}
}

func (a *App) printQuestion(s *session.Session) {
	q, ok := s.Current()
	if !ok {
		return
	}

	var rail strings.Builder
	for _, ind := range s.Indicators() {
		mark := strconv.Itoa(ind.Index + 1)
		switch {
		case ind.Current:
			mark = "[" + mark + "]"
		case ind.Answered:
			mark = mark + "*"
		case ind.Visited:
			mark = mark + "."
		}
		rail.WriteString(mark + " ")
	}
	fmt.Fprintln(a.Out)
	a.hint(strings.TrimSpace(rail.String()))
	if left, timed := s.Remaining(a.Now()); timed {
		a.hint("Time left: " + left.Truncate(time.Second).String())
	}

	if q.Passage != nil {
		fmt.Fprintf(a.Out, "%s\n%s\n\n", q.Passage.Title, q.Passage.Content)
	}
	header := fmt.Sprintf("Question %d of %d", s.Index()+1, s.Len())
	if q.Marks > 0 {
		header += fmt.Sprintf(" (%g marks)", q.Marks)
	}
	a.title(header)
	fmt.Fprintln(a.Out, q.Content)

	selected := selectedOptions(s, q)
	for i, o := range q.Options {
		line := fmt.Sprintf("  %d) %s", i+1, o.Answer)
		if selected[o.ID] {
			line = selectedStyle.Render("> " + strings.TrimSpace(line))
		}
		fmt.Fprintln(a.Out, line)
	}
	switch q.Type {
	case models.FillIn:
		a.hint(fmt.Sprintf("Type your answer (%d blank(s), separate with |)", max(q.BlankCount, 1)))
	case models.Text:
		a.hint("Type your answer")
	}
}

// selectedOptions reads the current selection back from the submit payload.
func selectedOptions(s *session.Session, q models.AttemptQuestion) map[uint]bool {
	out := map[uint]bool{}
	for _, ans := range s.Answers() {
		if ans.QuestionID != q.QuestionID {
			continue
		}
		for _, o := range q.Options {
			id := strconv.FormatUint(uint64(o.ID), 10)
			raw := string(ans.Answer)
			if raw == `"`+id+`"` || strings.Contains(","+strings.Trim(raw, "[]")+",", ","+id+",") {
				out[o.ID] = true
			}
		}
	}
	return out
}

func (a *App) printSubmitted(r *models.AttemptResult) {
	a.notices.Success("Attempt submitted")
	switch {
	case r.Score != nil && r.RequiredMark:
		fmt.Fprintf(a.Out, "Score: %g / %g\n", *r.Score, r.TotalMarks)
	case r.RequiredMark:
		fmt.Fprintln(a.Out, "Your result will be available once it is published.")
	default:
		fmt.Fprintln(a.Out, "Thank you for your responses.")
	}
	fmt.Fprintf(a.Out, "Attempt id: %d\n", r.AttemptID)
}
