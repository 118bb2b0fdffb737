package cli

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/canopyhq/canopy/pkg/document"
	"github.com/canopyhq/canopy/pkg/errors"
	"github.com/canopyhq/canopy/pkg/sync"
)

// docsCommand creates the docs command with subcommands.
func (c *CLI) docsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Manage documents in a vault",
		Long: `Manage documents in a vault.

Documents are saved locally first; a background push mirrors them to the
configured remote. 'docs list' shows each document's sync status.`,
	}

	cmd.AddCommand(c.docsListCommand())
	cmd.AddCommand(c.docsNewCommand())
	cmd.AddCommand(c.docsShowCommand())
	cmd.AddCommand(c.docsPutCommand())
	cmd.AddCommand(c.docsRemoveCommand())

	return cmd
}

// docsListCommand creates the "docs list" subcommand.
func (c *CLI) docsListCommand() *cobra.Command {
	var (
		vaultArg    string
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents with their sync status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDocsList(cmd.Context(), vaultArg, interactive)
		},
	}

	cmd.Flags().StringVar(&vaultArg, "vault", "", "vault name or id (default: the configured vault)")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "pick a document interactively and print it")

	return cmd
}

func (c *CLI) runDocsList(ctx context.Context, vaultArg string, interactive bool) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	mgr, cleanup, err := c.newManager(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	vault, err := resolveVault(ctx, mgr, cfg, vaultArg)
	if err != nil {
		return err
	}
	metas, err := mgr.Documents(ctx, vault.ID)
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		printInfo("Vault %q has no documents", vault.Name)
		printNextStep("Create one", `canopy docs new "My first map"`)
		return nil
	}

	if interactive {
		m := NewDocListModel(metas)
		p := tea.NewProgram(m)
		finalModel, err := p.Run()
		if err != nil {
			return err
		}
		fm, ok := finalModel.(DocListModel)
		if !ok || fm.Selected == nil {
			printDetail("No selection made")
			return nil
		}
		return c.printDocument(ctx, mgr, fm.Selected.ID, "")
	}

	for _, m := range metas {
		statusStyle := lipgloss.NewStyle().Foreground(statusColor(m.Status))
		line := fmt.Sprintf("%s  %s  %s",
			StyleValue.Render(fmt.Sprintf("%-30s", m.Name)),
			statusStyle.Render(fmt.Sprintf("%-10s", string(m.Status))),
			StyleDim.Render(m.ID))
		fmt.Println(line)
	}
	return nil
}

// docsNewCommand creates the "docs new" subcommand.
func (c *CLI) docsNewCommand() *cobra.Command {
	var vaultArg string

	cmd := &cobra.Command{
		Use:   "new [name]",
		Short: "Create an empty document",
		Args:  cobra.ExactArgs(1),
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

			vault, err := resolveVault(ctx, mgr, cfg, vaultArg)
			if err != nil {
				return err
			}
			doc, err := mgr.CreateDocument(ctx, vault.ID, args[0])
			if err != nil {
				return err
			}

			printSuccess("Document %q created", doc.Name)
			printKeyValue("ID", doc.ID)
			printNextStep("Export it", "canopy docs show "+doc.ID+" -o "+doc.ID[:8]+".json")
			return nil
		},
	}

	cmd.Flags().StringVar(&vaultArg, "vault", "", "vault name or id (default: the configured vault)")

	return cmd
}

// docsShowCommand creates the "docs show" subcommand.
func (c *CLI) docsShowCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Print a document as JSON",
		Long: `Print a document as JSON.

The local copy is returned immediately; when the document has been pushed
before, the remote copy is reconciled in the background and wins only when
strictly newer.`,
		Args: cobra.ExactArgs(1),
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

			return c.printDocument(ctx, mgr, args[0], output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")

	return cmd
}

// printDocument loads a document and writes it to output (stdout if empty).
func (c *CLI) printDocument(ctx context.Context, mgr *sync.Manager, id, output string) error {
	meta, err := mgr.DocumentMeta(ctx, id)
	if err != nil {
		return err
	}
	doc, err := mgr.LoadDocument(ctx, id, meta.RemoteRef)
	if err != nil {
		return err
	}
	data, err := document.MarshalIndent(doc)
	if err != nil {
		return err
	}

	if output == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, err, "write %s", output)
	}
	printSuccess("Document %q exported", doc.Name)
	printFile(output)
	return nil
}

// docsPutCommand creates the "docs put" subcommand.
func (c *CLI) docsPutCommand() *cobra.Command {
	var vaultArg string

	cmd := &cobra.Command{
		Use:   "put [document.json]",
		Short: "Save a document file into the vault",
		Long: `Save a document file into the vault.

The file must be a canopy document (as produced by 'docs show -o'). The
save lands in the local store immediately and queues a background push to
the remote.`,
		Args: cobra.ExactArgs(1),
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

			doc, err := readDocumentFile(args[0])
			if err != nil {
				return err
			}
			if doc.VaultID == "" {
				vault, err := resolveVault(ctx, mgr, cfg, vaultArg)
				if err != nil {
					return err
				}
				doc.VaultID = vault.ID
			}

			if err := mgr.SaveDocument(ctx, doc); err != nil {
				return err
			}

			printSuccess("Document %q saved", doc.Name)
			printParts([]string{fmt.Sprintf("%d nodes", len(doc.Nodes)), "push queued"})
			return nil
		},
	}

	cmd.Flags().StringVar(&vaultArg, "vault", "", "vault for documents without one (default: the configured vault)")

	return cmd
}

// docsRemoveCommand creates the "docs rm" subcommand.
func (c *CLI) docsRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete a document or folder",
		Long: `Delete a document or folder.

Folders are deleted recursively. The deletion is local-first; the next
sync pass trashes the remote copies.`,
		Args: cobra.ExactArgs(1),
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

			if err := mgr.DeleteItem(ctx, args[0]); err != nil {
				return err
			}
			printSuccess("Deleted %s", args[0])
			return nil
		},
	}
}

// readDocumentFile loads and parses a document JSON file.
func readDocumentFile(path string) (*document.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageRead, err, "read %s", path)
	}
	return document.Unmarshal(data)
}
