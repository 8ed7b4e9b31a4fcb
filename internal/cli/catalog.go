package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/SAP-F-2025/quiz-portal/internal/client"
	"github.com/SAP-F-2025/quiz-portal/internal/client/pager"
	"github.com/SAP-F-2025/quiz-portal/internal/client/table"
	"github.com/SAP-F-2025/quiz-portal/internal/models"
)

// listing describes a read-only list command over one collection.
type listing[T any] struct {
	use     string
	short   string
	fetch   func(c *client.Client) pager.FetchFunc[T]
	columns []table.Column
}

func listCmd[T any](a *App, l listing[T]) *cobra.Command {
	var (
		page, perPage int
		search        string
	)
	cmd := &cobra.Command{
		Use:   l.use,
		Short: l.short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			ctx := a.requestContext(cmd)
			tbl := table.New(table.Config{Columns: l.columns})

			p := pager.New[T](ctx, l.fetch(c), pager.Pagination{Page: page - 1, PerPage: perPage},
				pager.WithSearchColumn(tbl.Search().Column), pager.WithTerm(search), pager.WithLogger(a.logger))
			defer p.Close()
			return renderPage(ctx, a, p, tbl)
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&perPage, "per-page", models.DefaultPerPage, "Rows per page")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Search term")
	return cmd
}

// renderPage fetches the current page of p into tbl and prints it.
func renderPage[T any](ctx context.Context, a *App, p *pager.Pager[T], tbl *table.Table) error {
	tbl.SetLoading(true)
	err := p.FetchData(ctx)
	tbl.SetLoading(false)
	if err != nil {
		if errors.Is(err, client.ErrSessionExpired) {
			return err
		}
		return errors.New(p.Snapshot().Error)
	}
	state := p.Snapshot()
	rows, err := table.RowsFrom(state.Items)
	if err != nil {
		return err
	}
	tbl.SetRows(rows)
	if err := tbl.Render(a.Out); err != nil {
		return err
	}
	a.hint(pageSummary(state.Pagination, state.Total))
	return nil
}

// createCmd builds a "create" command whose flags seed a table Add.
func (a *App) createCmd(short string, fields []string, save func(ctx context.Context, c *client.Client, data map[string]any) (string, error)) *cobra.Command {
	values := make([]string, len(fields))
	cmd := &cobra.Command{
		Use:   "create",
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			ctx := a.requestContext(cmd)
			data := map[string]any{}
			for i, f := range fields {
				if values[i] != "" {
					data[f] = values[i]
				}
			}

			tbl := table.New(table.Config{OnSaved: func(data map[string]any) error {
				name, err := save(ctx, c, data)
				if err != nil {
					a.notices.Error(client.Message(err, "Failed to save"))
					return err
				}
				a.notices.Success("Created " + name)
				return nil
			}})
			return tbl.Add(data)
		},
	}
	for i, f := range fields {
		cmd.Flags().StringVar(&values[i], f, "", "Value for "+f)
	}
	_ = cmd.MarkFlagRequired(fields[0])
	return cmd
}

func str(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func (a *App) subjectsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "subjects", Short: "Browse and add subjects"}
	cmd.AddCommand(
		listCmd(a, listing[models.Subject]{
			use: "list", short: "List subjects",
			fetch: func(c *client.Client) pager.FetchFunc[models.Subject] { return c.ListSubjects },
			columns: []table.Column{
				{Label: "ID", Key: "id", Type: table.Number},
				{Label: "Code", Key: "code", Type: table.Text, Searchable: true},
				{Label: "Name", Key: "name", Type: table.Text, Searchable: true},
			},
		}),
		a.createCmd("Add a subject", []string{"name", "code"}, func(ctx context.Context, c *client.Client, data map[string]any) (string, error) {
			s, err := c.CreateSubject(ctx, &models.SubjectRequest{Name: str(data, "name"), Code: str(data, "code")})
			if err != nil {
				return "", err
			}
			return s.Name, nil
		}),
	)
	return cmd
}

func (a *App) categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "categories", Short: "Browse and add question categories"}
	cmd.AddCommand(
		listCmd(a, listing[models.Category]{
			use: "list", short: "List question categories",
			fetch: func(c *client.Client) pager.FetchFunc[models.Category] { return c.ListCategories },
			columns: []table.Column{
				{Label: "ID", Key: "id", Type: table.Number},
				{Label: "Name", Key: "name", Type: table.Text, Searchable: true},
				{Label: "Created", Key: "createdAt", Type: table.Date},
			},
		}),
		a.createCmd("Add a question category", []string{"name"}, func(ctx context.Context, c *client.Client, data map[string]any) (string, error) {
			cat, err := c.CreateCategory(ctx, &models.CategoryRequest{Name: str(data, "name")})
			if err != nil {
				return "", err
			}
			return cat.Name, nil
		}),
	)
	return cmd
}

func (a *App) groupsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "groups", Short: "Browse and add groups of takers"}
	cmd.AddCommand(
		listCmd(a, listing[models.Group]{
			use: "list", short: "List groups",
			fetch: func(c *client.Client) pager.FetchFunc[models.Group] { return c.ListGroups },
			columns: []table.Column{
				{Label: "ID", Key: "id", Type: table.Number},
				{Label: "Name", Key: "name", Type: table.Text, Searchable: true},
				{Label: "Owner", Key: "createdBy", Type: table.User},
			},
		}),
		a.createCmd("Add a group", []string{"name", "description"}, func(ctx context.Context, c *client.Client, data map[string]any) (string, error) {
			req := &models.GroupRequest{Name: str(data, "name")}
			if d := str(data, "description"); d != "" {
				req.Description = &d
			}
			g, err := c.CreateGroup(ctx, req)
			if err != nil {
				return "", err
			}
			return g.Name, nil
		}),
		a.groupsEditCmd(),
	)
	return cmd
}

var groupEditColumns = []table.Column{
	{Label: "ID", Key: "id", Type: table.Number},
	{Label: "Name", Key: "name", Type: table.Text, CanEdit: true, Rule: "required,max=100"},
	{Label: "Description", Key: "description", Type: table.Text, CanEdit: true, Rule: "max=1000"},
}

// groupsEditCmd loads one group as a table row and runs the flags through the
// table's edit cycle, so the same validation applies as for inline edits.
func (a *App) groupsEditCmd() *cobra.Command {
	var name, description string
	cmd := &cobra.Command{
		Use:   "edit GROUP_ID",
		Short: "Rename a group or change its description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			changes := map[string]string{}
			if cmd.Flags().Changed("name") {
				changes["name"] = name
			}
			if cmd.Flags().Changed("description") {
				changes["description"] = description
			}
			if len(changes) == 0 {
				return errors.New("nothing to change: pass --name or --description")
			}

			c, err := a.client()
			if err != nil {
				return err
			}
			ctx := a.requestContext(cmd)
			g, err := c.GetGroup(ctx, id)
			if err != nil {
				a.notices.Error(client.Message(err, "Unable to load the group"))
				return err
			}
			rowID := strconv.FormatUint(uint64(id), 10)
			rows, err := table.RowsFrom([]client.Record[models.Group]{{ID: rowID, Attrs: *g}})
			if err != nil {
				return err
			}

			tbl := table.New(table.Config{
				Columns: groupEditColumns,
				OnUpdated: func(_ string, data map[string]any) error {
					req := &models.GroupRequest{Name: str(data, "name")}
					if d, ok := data["description"].(string); ok {
						req.Description = &d
					}
					saved, err := c.UpdateGroup(ctx, id, req)
					if err != nil {
						a.notices.Error(client.Message(err, "Failed to save"))
						return err
					}
					a.notices.Success("Saved " + saved.Name)
					return nil
				},
			})
			tbl.SetRows(rows)
			if err := tbl.BeginEdit(rowID); err != nil {
				return err
			}
			for _, key := range []string{"name", "description"} {
				raw, ok := changes[key]
				if !ok {
					continue
				}
				if err := tbl.SetCell(key, raw); err != nil {
					tbl.Cancel()
					return fmt.Errorf("--%s: %w", key, err)
				}
			}
			if err := tbl.Save(); err != nil {
				tbl.Cancel()
				return err
			}
			return tbl.Render(a.Out)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	return cmd
}

func (a *App) questionsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "questions", Short: "Browse the question bank"}
	cmd.AddCommand(
		listCmd(a, listing[models.Question]{
			use: "list", short: "List questions",
			fetch: func(c *client.Client) pager.FetchFunc[models.Question] { return c.ListQuestions },
			columns: []table.Column{
				{Label: "ID", Key: "id", Type: table.Number},
				{Label: "Type", Key: "type", Type: table.Enum},
				{Label: "Content", Key: "content", Type: table.Text, Searchable: true, Render: func(v any, _ table.Row) string {
					return truncate(fmt.Sprint(v), 60)
				}},
			},
		}),
		listCmd(a, listing[models.Passage]{
			use: "passages", short: "List reading passages",
			fetch: func(c *client.Client) pager.FetchFunc[models.Passage] { return c.ListPassages },
			columns: []table.Column{
				{Label: "ID", Key: "id", Type: table.Number},
				{Label: "Title", Key: "title", Type: table.Text, Searchable: true},
			},
		}),
	)
	return cmd
}

func (a *App) usersCmd() *cobra.Command {
	return listCmd(a, listing[models.User]{
		use: "users", short: "List portal users",
		fetch: func(c *client.Client) pager.FetchFunc[models.User] { return c.ListUsers },
		columns: []table.Column{
			{Label: "Name", Key: "name", Type: table.User, Searchable: true},
			{Label: "Email", Key: "email", Type: table.Text, Searchable: true},
			{Label: "Role", Key: "role", Type: table.Enum},
		},
	})
}
