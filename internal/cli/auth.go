package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SAP-F-2025/quiz-portal/internal/menu"
)

func (a *App) loginCmd() *cobra.Command {
	var code, state, redirect string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in through the portal's Casdoor application",
		Long: "Without --code, login prints the sign-in page URL and waits for the code " +
			"shown after signing in.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			ctx := a.requestContext(cmd)

			if code == "" {
				urls, err := c.AuthURLs(ctx, redirect)
				if err != nil {
					return fmt.Errorf("fetch sign-in urls: %w", err)
				}
				a.title("Sign in")
				fmt.Fprintln(a.Out, urls.SignIn)
				a.hint("No account yet? " + urls.SignUp)
				if code, err = a.prompt("Code: "); err != nil {
					return err
				}
				if code == "" {
					return errors.New("no code entered")
				}
			}

			if _, err := c.ExchangeCode(ctx, code, state); err != nil {
				return fmt.Errorf("sign in: %w", err)
			}
			me, err := c.Me(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.Out, "Logged in as %s (%s)\n", displayName(me.FullName, me.Name, me.Email), me.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "Authorization code from the sign-in redirect")
	cmd.Flags().StringVar(&state, "state", "", "State returned with the code")
	cmd.Flags().StringVar(&redirect, "redirect", "", "Redirect URI registered for the application")
	return cmd
}

func (a *App) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			if err := c.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(a.Out, "Logged out")
			return nil
		},
	}
}

func (a *App) menuCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Show the portal sections available to you",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			me, err := c.Me(a.requestContext(cmd))
			if err != nil {
				return err
			}
			printMenu(a, menu.Filter(me.Role, menu.Portal()), 0)
			return nil
		},
	}
}

func printMenu(a *App, items []menu.Item, depth int) {
	for _, it := range items {
		line := strings.Repeat("  ", depth) + it.Label
		if it.Route != "" {
			line += "  " + it.Route
		}
		fmt.Fprintf(a.Out, "%-12s %s\n", "["+it.Icon.String()+"]", line)
		printMenu(a, it.Children, depth+1)
	}
}

func displayName(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return "unknown"
}
