package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SAP-F-2025/quiz-portal/internal/client"
	"github.com/SAP-F-2025/quiz-portal/internal/client/pager"
	"github.com/SAP-F-2025/quiz-portal/internal/client/table"
	"github.com/SAP-F-2025/quiz-portal/internal/client/wizard"
	"github.com/SAP-F-2025/quiz-portal/internal/models"
	"github.com/SAP-F-2025/quiz-portal/internal/validator"
)

func (a *App) assessmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "assessments",
		Aliases: []string{"assessment", "a"},
		Short:   "List, show and author assessments",
	}
	cmd.AddCommand(a.assessmentsListCmd(), a.assessmentsShowCmd(), a.assessmentsCreateCmd(), a.assessmentsEditCmd(), a.assessmentsDeleteCmd())
	return cmd
}

var assessmentColumns = []table.Column{
	{Label: "ID", Key: "id", Type: table.Number},
	{Label: "Name", Key: "name", Type: table.Text, Searchable: true},
	{Label: "Subject", Key: "subject", Type: table.Text, Render: func(v any, _ table.Row) string {
		if m, ok := v.(map[string]any); ok {
			return fmt.Sprint(m["name"])
		}
		return "-"
	}},
	{Label: "Marks", Key: "totalMarks", Type: table.Number},
	{Label: "Duration", Key: "duration", Type: table.Number, Render: func(v any, _ table.Row) string {
		if f, ok := v.(float64); ok && f > 0 {
			return fmt.Sprintf("%.0f min", f)
		}
		return "unlimited"
	}},
	{Label: "Published", Key: "isPublished", Type: table.Enum, EnumValues: []string{"true", "false"}},
	{Label: "Valid to", Key: "validTo", Type: table.Date},
}

func (a *App) assessmentsListCmd() *cobra.Command {
	var (
		page, perPage int
		search        string
		column        string
		match         string
		filters       map[string]string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List assessments visible to you",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			ctx := a.requestContext(cmd)

			tbl := table.New(table.Config{Columns: assessmentColumns})
			bar := table.SearchBar{Column: column, Type: client.SearchType(match), Term: search}
			if err := tbl.SetSearch(bar); err != nil {
				return err
			}
			bar = tbl.Search()

			p := pager.New[models.Assessment](ctx, c.ListAssessments, pager.Pagination{Page: page - 1, PerPage: perPage},
				pager.WithSearchColumn(bar.Column),
				pager.WithSearchType(bar.Type),
				pager.WithTerm(bar.Term),
				pager.WithFilters(filters),
				pager.WithInclude("subject"),
				pager.WithLogger(a.logger),
			)
			defer p.Close()
			return renderPage(ctx, a, p, tbl)
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&perPage, "per-page", models.DefaultPerPage, "Rows per page")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Search term")
	cmd.Flags().StringVar(&column, "column", "name", "Column to search")
	cmd.Flags().StringVar(&match, "match", string(client.SearchContains), "Match type: contains, equals or starts_with")
	cmd.Flags().StringToStringVar(&filters, "filter", nil, "Filter as key=value, repeatable")
	return cmd
}

func pageSummary(p pager.Pagination, total int64) string {
	last := 1
	if p.PerPage > 0 && total > 0 {
		last = int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	}
	return fmt.Sprintf("Page %d of %d, %d total", p.Page+1, last, total)
}

func (a *App) assessmentsDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an assessment that has no attempts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if !yes && !a.confirm(fmt.Sprintf("Delete assessment %d?", id)) {
				return nil
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			if err := c.DeleteAssessment(a.requestContext(cmd), id); err != nil {
				a.notices.Error(client.Message(err, "Failed to delete the assessment"))
				return err
			}
			a.notices.Success("Assessment deleted")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Delete without asking")
	return cmd
}

func (a *App) assessmentsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show an assessment with its questions and groups",
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
			as, err := c.GetAssessment(a.requestContext(cmd), id)
			if err != nil {
				return err
			}

			a.title(fmt.Sprintf("#%d %s", as.ID, as.Name))
			if as.Description != nil && *as.Description != "" {
				fmt.Fprintln(a.Out, *as.Description)
			}
			fmt.Fprintf(a.Out, "Total marks: %g\n", as.TotalMarks)
			if as.PassMarks != nil {
				fmt.Fprintf(a.Out, "Pass marks:  %g\n", *as.PassMarks)
			}
			fmt.Fprintf(a.Out, "Duration:    %s\n", minutes(as.Duration))
			fmt.Fprintf(a.Out, "Attempts:    %s\n", limit(as.MaxAttempts))
			fmt.Fprintf(a.Out, "Window:      %s to %s\n", when(as.ValidFrom), when(as.ValidTo))
			fmt.Fprintf(a.Out, "Published:   %t\n", as.IsPublished)
			if !as.RequiredMark {
				fmt.Fprintln(a.Out, "Mode:        survey")
			}

			if len(as.Questions) > 0 {
				fmt.Fprintln(a.Out)
				a.title("Questions")
				for _, q := range as.Questions {
					content := ""
					if q.Question != nil {
						content = q.Question.Content
					}
					fmt.Fprintf(a.Out, "%3d. [%d] %-60s %g\n", q.Order+1, q.QuestionID, truncate(content, 60), q.Marks)
				}
			}
			if ids := as.GroupIDs(); len(ids) > 0 {
				fmt.Fprintf(a.Out, "\nGroups: %s\n", joinIDs(ids))
			}
			return nil
		},
	}
}

// authorFlags are shared by create and edit.
type authorFlags struct {
	name        string
	description string
	subject     uint
	totalMarks  float64
	passMarks   float64
	duration    int
	maxAttempts int
	survey      bool
	display     string
	questions   string
	marksEach   float64
	moves       []string
	groups      []uint
	from, to    string
	publish     bool
	yes         bool
}

func (f *authorFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.name, "name", "", "Assessment name")
	fl.StringVar(&f.description, "description", "", "Description")
	fl.UintVar(&f.subject, "subject", 0, "Subject id")
	fl.Float64Var(&f.totalMarks, "total-marks", 0, "Total marks")
	fl.Float64Var(&f.passMarks, "pass-marks", 0, "Pass marks")
	fl.IntVar(&f.duration, "duration", 0, "Duration in minutes, 0 for unlimited")
	fl.IntVar(&f.maxAttempts, "max-attempts", 0, "Attempts per user, 0 for unlimited")
	fl.BoolVar(&f.survey, "survey", false, "Ungraded survey: no marks and no marking")
	fl.StringVar(&f.display, "result-display", "", "immediate, after_publish or score_only")
	fl.StringVar(&f.questions, "questions", "", "Questions in order as id:marks, comma separated")
	fl.Float64Var(&f.marksEach, "marks-each", 0, "Give every selected question these marks")
	fl.StringSliceVar(&f.moves, "move", nil, "Reorder as id:position (1-based); repeatable")
	fl.UintSliceVar(&f.groups, "groups", nil, "Group ids to assign")
	fl.StringVar(&f.from, "from", "", "Valid from (RFC 3339 or YYYY-MM-DD HH:MM)")
	fl.StringVar(&f.to, "to", "", "Valid to (RFC 3339 or YYYY-MM-DD HH:MM)")
	fl.BoolVar(&f.publish, "publish", false, "Publish the assessment")
	fl.BoolVarP(&f.yes, "yes", "y", false, "Do not ask for confirmation")
}

func (a *App) assessmentsCreateCmd() *cobra.Command {
	var f authorFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an assessment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			w := wizard.New(c)
			return a.runWizard(cmd, w, &f)
		},
	}
	f.register(cmd)
	return cmd
}

func (a *App) assessmentsEditCmd() *cobra.Command {
	var f authorFlags
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Edit an assessment; only the given flags change",
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
			w := wizard.New(c)
			if err := w.LoadForEdit(a.requestContext(cmd), id); err != nil {
				return err
			}
			return a.runWizard(cmd, w, &f)
		},
	}
	f.register(cmd)
	return cmd
}

// runWizard walks every step with values from the flags. When editing only
// flags that were set replace the loaded values.
func (a *App) runWizard(cmd *cobra.Command, w *wizard.Wizard, f *authorFlags) error {
	changed := func(name string) bool {
		return w.Editing() == 0 || cmd.Flags().Changed(name)
	}

	d := w.Details()
	if changed("name") {
		d.Name = f.name
	}
	if changed("description") {
		d.Description = f.description
	}
	if changed("subject") {
		d.SubjectID = f.subject
	}
	if changed("total-marks") {
		d.TotalMarks = f.totalMarks
	}
	if cmd.Flags().Changed("pass-marks") {
		d.PassMarks = &f.passMarks
	}
	if changed("duration") {
		d.HasDuration = f.duration > 0
		d.Duration = f.duration
	}
	if changed("max-attempts") {
		d.LimitAttempts = f.maxAttempts > 0
		d.MaxAttempts = f.maxAttempts
	}
	if changed("survey") {
		d.RequiredMark = !f.survey
	}
	if cmd.Flags().Changed("result-display") {
		d.ResultDisplayMode = models.ResultDisplayMode(f.display)
	}
	w.SetDetails(d)
	if err := a.next(w); err != nil {
		return err
	}

	if cmd.Flags().Changed("questions") {
		refs, err := parseQuestionRefs(f.questions)
		if err != nil {
			return err
		}
		for _, e := range w.Entries() {
			w.Deselect(e.Question.ID)
		}
		for _, r := range refs {
			w.Select(models.Question{ID: r.id})
		}
		if err := a.next(w); err != nil {
			return err
		}
		for _, r := range refs {
			if err := w.SetMarks(r.id, r.marks); err != nil {
				return err
			}
		}
	} else if err := a.next(w); err != nil {
		return err
	}

	if cmd.Flags().Changed("marks-each") {
		entries := w.Entries()
		ids := make([]uint, len(entries))
		for i, e := range entries {
			ids[i] = e.Question.ID
		}
		if err := w.ApplyMarks(ids, f.marksEach); err != nil {
			return err
		}
	}
	for _, m := range f.moves {
		idText, posText, _ := strings.Cut(m, ":")
		id, err := parseID(idText)
		if err != nil {
			return fmt.Errorf("--move %s: %w", m, err)
		}
		pos, err := strconv.Atoi(strings.TrimSpace(posText))
		if err != nil || pos < 1 {
			return fmt.Errorf("--move %s: position must be a number from 1", m)
		}
		if err := w.Move(id, pos-1); err != nil {
			return err
		}
	}
	if err := a.next(w); err != nil {
		return err
	}

	s := w.Schedule()
	if cmd.Flags().Changed("from") {
		t, err := parseTime(f.from)
		if err != nil {
			return fmt.Errorf("--from: %w", err)
		}
		s.ValidFrom = t
	}
	if cmd.Flags().Changed("to") {
		t, err := parseTime(f.to)
		if err != nil {
			return fmt.Errorf("--to: %w", err)
		}
		s.ValidTo = t
	}
	if changed("publish") {
		s.IsPublished = f.publish
	}
	w.SetSchedule(s)
	if err := a.next(w); err != nil {
		return err
	}

	if cmd.Flags().Changed("groups") {
		for _, id := range w.Groups() {
			w.ToggleGroup(id)
		}
		for _, id := range f.groups {
			w.ToggleGroup(id)
		}
	}

	confirm := func(req *models.AssessmentRequest) bool {
		a.title("Summary")
		fmt.Fprintf(a.Out, "%s: %d questions, %g marks, groups %s\n",
			req.Name, len(req.Questions), req.TotalMarks, joinIDs(req.GroupIDs))
		return f.yes || a.confirm("Save this assessment?")
	}
	saved, err := w.Finish(a.requestContext(cmd), confirm)
	if errors.Is(err, wizard.ErrNotConfirmed) {
		fmt.Fprintln(a.Out, "Cancelled")
		return nil
	}
	if err != nil {
		return err
	}
	a.notices.Success(fmt.Sprintf("Saved assessment #%d %s", saved.ID, saved.Name))
	return nil
}

func (a *App) next(w *wizard.Wizard) error {
	step := w.Step()
	err := w.Next()
	if err == nil {
		return nil
	}
	var se *wizard.StepError
	if !errors.As(err, &se) {
		return err
	}
	var mismatch *validator.MarksMismatchError
	if errors.As(se, &mismatch) {
		return fmt.Errorf("%s: marks add up to %g but the test is worth %g", step, mismatch.Actual, mismatch.Expected)
	}
	return fmt.Errorf("%s: %w", step, se.Err)
}

type questionRef struct {
	id    uint
	marks float64
}

func parseQuestionRefs(s string) ([]questionRef, error) {
	var refs []questionRef
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idText, marksText, _ := strings.Cut(part, ":")
		id, err := parseID(idText)
		if err != nil {
			return nil, err
		}
		ref := questionRef{id: id}
		if marksText != "" {
			if ref.marks, err = strconv.ParseFloat(marksText, 64); err != nil {
				return nil, fmt.Errorf("marks of question %d: %w", id, err)
			}
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognised time %q", s)
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(id), nil
}

func joinIDs(ids []uint) string {
	if len(ids) == 0 {
		return "none"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ", ")
}

func minutes(d *int) string {
	if d == nil || *d <= 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d min", *d)
}

func limit(n *int) string {
	if n == nil || *n <= 0 {
		return "unlimited"
	}
	return strconv.Itoa(*n)
}

func when(t *time.Time) string {
	if t == nil {
		return "open"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	r := []rune(strings.Join(strings.Fields(s), " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
