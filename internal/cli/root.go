// Package cli implements quizctl, the terminal client of the quiz portal.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/SAP-F-2025/quiz-portal/internal/client"
	"github.com/SAP-F-2025/quiz-portal/internal/client/notice"
)

const defaultServer = "http://localhost:8080"

// App carries the streams and clock shared by every command.
type App struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
	Now func() time.Time

	input   *bufio.Reader
	notices *notice.Store
	logger  *slog.Logger

	server  string
	session string
	timeout time.Duration
	retries int
	verbose bool
}

func NewApp(in io.Reader, out, errOut io.Writer) *App {
	return &App{In: in, Out: out, Err: errOut, Now: time.Now}
}

// Execute runs quizctl with the process streams and arguments.
func Execute() error {
	_ = godotenv.Load()
	return NewApp(os.Stdin, os.Stdout, os.Stderr).Command().Execute()
}

// Command builds the command tree.
func (a *App) Command() *cobra.Command {
	root := &cobra.Command{
		Use:           "quizctl",
		Short:         "Quiz portal client",
		Long:          "quizctl takes assessments, reviews results and manages assessments on a quiz portal server.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.setup()
			return nil
		},
	}
	root.SetIn(a.In)
	root.SetOut(a.Out)
	root.SetErr(a.Err)

	flags := root.PersistentFlags()
	flags.StringVar(&a.server, "server", envOr("QUIZCTL_SERVER", defaultServer), "Portal server URL (QUIZCTL_SERVER)")
	flags.StringVar(&a.session, "session", os.Getenv("QUIZCTL_SESSION"), "Session file path (QUIZCTL_SESSION)")
	flags.DurationVar(&a.timeout, "timeout", 30*time.Second, "Request timeout")
	flags.IntVar(&a.retries, "retries", 0, "Retries on connection errors")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Log debug output to stderr")

	root.AddCommand(
		a.loginCmd(),
		a.logoutCmd(),
		a.menuCmd(),
		a.assessmentsCmd(),
		a.takeCmd(),
		a.attemptsCmd(),
		a.resultCmd(),
		a.markCmd(),
		a.commentCmd(),
		a.publishCmd(),
		a.exportCmd(),
		a.subjectsCmd(),
		a.categoriesCmd(),
		a.groupsCmd(),
		a.questionsCmd(),
		a.usersCmd(),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (a *App) setup() {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.Err, &slog.HandlerOptions{Level: level}))
	a.input = bufio.NewReader(a.In)

	a.notices = notice.New()
	a.notices.Subscribe(func(m *notice.Message) {
		if m == nil {
			return
		}
		lipgloss.Fprintln(a.Err, noticeStyle(m.Level).Render(m.Text))
	})
}

func (a *App) client() (*client.Client, error) {
	path := a.session
	if path == "" {
		p, err := client.DefaultTokenPath()
		if err != nil {
			return nil, fmt.Errorf("resolve session path: %w", err)
		}
		path = p
	}
	return client.New(a.server, client.NewFileTokenStore(path), client.WithTimeout(a.timeout), client.WithRetry(a.retries)), nil
}

// prompt prints label and reads one trimmed line. io.EOF is returned only
// when nothing was typed.
func (a *App) prompt(label string) (string, error) {
	if label != "" {
		fmt.Fprint(a.Out, label)
	}
	line, err := a.input.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *App) confirm(question string) bool {
	answer, err := a.prompt(question + " [y/N] ")
	if err != nil {
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	}
	return false
}

func (a *App) title(text string) {
	lipgloss.Fprintln(a.Out, titleStyle.Render(text))
}

func (a *App) hint(text string) {
	lipgloss.Fprintln(a.Out, hintStyle.Render(text))
}

func (a *App) requestContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
