package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/canopyhq/canopy/pkg/config"
	"github.com/canopyhq/canopy/pkg/document"
	"github.com/canopyhq/canopy/pkg/errors"
	"github.com/canopyhq/canopy/pkg/sync"
)

// vaultCommand creates the vault command with subcommands.
func (c *CLI) vaultCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Manage mindmap vaults",
		Long: `Manage mindmap vaults.

A vault is a named collection of documents and folders backed by a local
store and, optionally, a remote. 'vault init' turns the current directory
into a vault by writing canopy.toml next to a fresh vault record.`,
	}

	cmd.AddCommand(c.vaultInitCommand())
	cmd.AddCommand(c.vaultListCommand())
	cmd.AddCommand(c.vaultStatusCommand())

	return cmd
}

// vaultInitCommand creates the "vault init" subcommand.
func (c *CLI) vaultInitCommand() *cobra.Command {
	var (
		storeBackend string
		providerKind string
		endpoint     string
		bucket       string
	)

	cmd := &cobra.Command{
		Use:   "init [name]",
		Short: "Create a vault and write canopy.toml in the current directory",
		Long: `Create a vault and write canopy.toml in the current directory.

The config selects the local store and the remote provider for every other
command run from this directory. With the default sqlite store the database
lives next to the config, so the directory is self-contained.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := appName
			if len(args) > 0 {
				name = args[0]
			}
			return c.runVaultInit(cmd.Context(), name, storeBackend, providerKind, endpoint, bucket)
		},
	}

	cmd.Flags().StringVar(&storeBackend, "store", config.StoreSQLite, "local store backend: sqlite (default), memory, mongo")
	cmd.Flags().StringVar(&providerKind, "provider", config.ProviderMemory, "remote provider: memory (default), http, s3")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "remote base URL (http) or custom S3 endpoint")
	cmd.Flags().StringVar(&bucket, "bucket", "", "bucket holding vault objects (s3)")

	return cmd
}

// runVaultInit writes the config and creates the vault record.
func (c *CLI) runVaultInit(ctx context.Context, name, storeBackend, providerKind, endpoint, bucket string) error {
	if _, err := os.Stat(config.FileName); err == nil {
		return errors.New(errors.ErrCodeInvalidInput, "%s already exists in this directory", config.FileName)
	}

	cfg := &config.Config{}
	cfg.Vault.Name = name
	cfg.Store.Backend = storeBackend
	if storeBackend == config.StoreSQLite {
		cfg.Store.Path = "canopy.db"
	}
	cfg.Provider.Kind = providerKind
	cfg.Provider.Endpoint = endpoint
	cfg.Provider.Bucket = bucket
	if err := cfg.ValidateAndSetDefaults(); err != nil {
		return err
	}
	if err := cfg.Save(config.FileName); err != nil {
		return err
	}

	mgr, cleanup, err := c.newManager(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	vault, err := mgr.CreateVault(ctx, name)
	if err != nil {
		return err
	}

	printSuccess("Vault %q initialized", name)
	printKeyValue("ID", vault.ID)
	printKeyValue("Store", cfg.Store.Backend)
	printKeyValue("Provider", cfg.Provider.Kind)
	printFile(config.FileName)
	printNewline()
	printNextStep("Create a document", `canopy docs new "My first map"`)

	return nil
}

// vaultListCommand creates the "vault list" subcommand.
func (c *CLI) vaultListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List vaults in the local store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			mgr, cleanup, err := c.newManager(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			vaults, err := mgr.Vaults(ctx)
			if err != nil {
				return err
			}
			if len(vaults) == 0 {
				printInfo("No vaults yet")
				printNextStep("Create one", "canopy vault init <name>")
				return nil
			}

			for _, v := range vaults {
				marker := "  "
				if v.Name == cfg.Vault.Name {
					marker = styleIconSuccess.Render(iconSuccess) + " "
				}
				fmt.Println(marker + StyleValue.Render(v.Name) + "  " + StyleDim.Render(v.ID))
			}
			return nil
		},
	}
}

// vaultStatusCommand creates the "vault status" subcommand.
func (c *CLI) vaultStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status [vault]",
		Short: "Show document sync state for a vault",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := ""
			if len(args) > 0 {
				arg = args[0]
			}
			return c.runVaultStatus(cmd.Context(), arg)
		},
	}
}

// runVaultStatus prints per-status document counts and flags stale pushes.
func (c *CLI) runVaultStatus(ctx context.Context, arg string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	mgr, cleanup, err := c.newManager(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	vault, err := resolveVault(ctx, mgr, cfg, arg)
	if err != nil {
		return err
	}

	metas, err := mgr.Documents(ctx, vault.ID)
	if err != nil {
		return err
	}
	folders, err := mgr.Folders(ctx, vault.ID)
	if err != nil {
		return err
	}

	counts := map[document.SyncStatus]int{}
	for _, m := range metas {
		counts[m.Status]++
	}

	printKeyValue("Vault", vault.Name)
	printKeyValue("ID", vault.ID)
	printKeyValue("Documents", strconv.Itoa(len(metas)))
	printKeyValue("Folders", strconv.Itoa(len(folders)))
	printKeyValue("Provider", cfg.Provider.Kind)

	var parts []string
	for _, s := range []document.SyncStatus{document.StatusSynced, document.StatusPending, document.StatusLocalOnly, document.StatusError} {
		if n := counts[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, s))
		}
	}
	if len(parts) > 0 {
		printParts(parts)
	}

	for _, m := range metas {
		if m.Status == document.StatusError {
			printWarning("%s: %s", m.Name, m.SyncError)
		}
	}
	if counts[document.StatusPending] > 0 || counts[document.StatusError] > 0 {
		printNewline()
		printNextStep("Push pending changes", "canopy sync")
	}

	return nil
}

// resolveVault maps a vault argument, or the configured vault name when the
// argument is empty, to its record. Ids win over names.
func resolveVault(ctx context.Context, mgr *sync.Manager, cfg *config.Config, arg string) (*document.Vault, error) {
	name := arg
	if name == "" {
		name = cfg.Vault.Name
	}

	vaults, err := mgr.Vaults(ctx)
	if err != nil {
		return nil, err
	}
	for _, v := range vaults {
		if v.ID == name {
			return v, nil
		}
	}
	for _, v := range vaults {
		if v.Name == name {
			return v, nil
		}
	}
	return nil, errors.New(errors.ErrCodeVaultNotFound,
		"vault %q not found (run 'canopy vault init %s' first)", name, name)
}
