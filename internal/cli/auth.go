package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/canopyhq/canopy/pkg/errors"
	"github.com/canopyhq/canopy/pkg/session"
)

// authCommand creates the auth command with subcommands.
func (c *CLI) authCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage remote credentials",
		Long: `Manage remote credentials.

The http provider authenticates with a bearer token. 'auth login' stores
one locally; every command that talks to the remote picks it up from
~/.config/canopy/sessions/`,
	}

	cmd.AddCommand(c.authLoginCommand())
	cmd.AddCommand(c.authStatusCommand())
	cmd.AddCommand(c.authLogoutCommand())

	return cmd
}

// authLoginCommand creates the login subcommand.
func (c *CLI) authLoginCommand() *cobra.Command {
	var (
		endpoint string
		token    string
		user     string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a bearer token for the remote",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if token == "" {
				return errors.New(errors.ErrCodeInvalidInput, "login needs --token")
			}

			store, err := session.NewCLIStore("")
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}
			sess, err := session.New("http", endpoint, token, session.DefaultTTL)
			if err != nil {
				return fmt.Errorf("create session: %w", err)
			}
			sess.User = user
			if err := store.SaveSession(ctx, sess); err != nil {
				return fmt.Errorf("save session: %w", err)
			}

			printSuccess("Credentials stored")
			if endpoint != "" {
				printKeyValue("Endpoint", endpoint)
			}
			printKeyValue("Expires", sess.ExpiresAt.Format("Jan 2, 2006"))
			return nil
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "", "remote base URL the token belongs to")
	cmd.Flags().StringVar(&token, "token", "", "bearer token (required)")
	cmd.Flags().StringVar(&user, "user", "", "display name for 'auth status'")

	return cmd
}

// authStatusCommand creates the status subcommand.
func (c *CLI) authStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored remote session",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadRemoteSession(cmd.Context())
			if err != nil {
				return err
			}

			printSuccess("Remote Session")
			if sess.User != "" {
				printKeyValue("User", sess.User)
			}
			if sess.Endpoint != "" {
				printKeyValue("Endpoint", sess.Endpoint)
			}
			printKeyValue("Logged in", sess.CreatedAt.Format("Jan 2, 2006"))
			if sess.ExpiresAt.IsZero() {
				printKeyValue("Expires", "never")
			} else {
				printKeyValue("Expires", sess.ExpiresAt.Format("Jan 2, 2006"))
			}
			return nil
		},
	}
}

// authLogoutCommand creates the logout subcommand.
func (c *CLI) authLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored remote credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := session.NewCLIStore("")
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}
			if err := store.DeleteSession(cmd.Context()); err != nil {
				return fmt.Errorf("delete session: %w", err)
			}
			printSuccess("Logged out")
			return nil
		},
	}
}

// =============================================================================
// Session Management
// =============================================================================

// loadRemoteSession loads the remote session from disk, failing when none
// is stored.
func loadRemoteSession(ctx context.Context) (*session.Session, error) {
	store, err := session.NewCLIStore("")
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	sess, err := store.GetSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess == nil {
		return nil, fmt.Errorf("not logged in (run 'canopy auth login' first)")
	}

	return sess, nil
}

// remoteToken returns the stored bearer token, or "" when not logged in.
// Commands that can work anonymously use this instead of loadRemoteSession.
func remoteToken(ctx context.Context) string {
	store, err := session.NewCLIStore("")
	if err != nil {
		return ""
	}
	sess, err := store.GetSession(ctx)
	if err != nil || sess == nil {
		return ""
	}
	return sess.Token
}
