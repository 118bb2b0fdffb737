package cli

import (
	"github.com/spf13/cobra"

	"github.com/canopyhq/canopy/internal/server"
)

// serveCommand creates the serve command for the built-in remote server.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr  string
		token string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the canopy remote server",
		Long: `Run the canopy remote server.

The server speaks the protocol the http provider expects and keeps all
state in memory, which makes it a drop-in remote for development and
tests. Point a vault at it with:

  canopy vault init trips --provider http --endpoint http://localhost:8787

With --token every request must carry the token as a bearer credential;
clients store theirs with 'canopy auth login'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := server.New(server.Options{
				Token:  token,
				Logger: c.Logger,
			})
			printInfo("Serving canopy remote on %s", StyleHighlight.Render(addr))
			if token != "" {
				printDetail("Bearer token required")
			}
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", defaultServeAddr, "listen address")
	cmd.Flags().StringVar(&token, "token", "", "require this bearer token on every request")

	return cmd
}
