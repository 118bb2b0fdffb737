package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/canopyhq/canopy/pkg/config"
	"github.com/canopyhq/canopy/pkg/sync"
)

// syncCommand creates the sync command for vault-wide convergence.
func (c *CLI) syncCommand() *cobra.Command {
	var (
		policy  string
		dryRun  bool
		requeue bool
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "sync [vault]",
		Short: "Run a vault-wide sync pass against the remote",
		Long: `Run a vault-wide sync pass against the remote.

The pass takes the remote advisory lock, diffs the local and remote
manifests, and applies the plan in both directions: new remote files are
downloaded, local changes are uploaded, and deletions propagate. Documents
changed on both sides are conflicts, settled by the configured policy:

  ask      pick a resolution per conflict on the terminal (default)
  server   take the remote copy
  local    keep the local copy and upload it

A conflicting vault held by another device fails the pass; stale locks
(older than the staleness window) are taken over.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := ""
			if len(args) > 0 {
				arg = args[0]
			}
			return c.runSync(cmd.Context(), arg, policy, dryRun, requeue, noCache)
		},
	}

	cmd.Flags().StringVar(&policy, "policy", "", "conflict policy: ask, server, or local (default: from canopy.toml)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the plan without applying it")
	cmd.Flags().BoolVar(&requeue, "requeue", false, "requeue pending and failed pushes first")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the remote-fetch cache")

	return cmd
}

// runSync resolves the vault and runs one pass (or prints the plan).
func (c *CLI) runSync(ctx context.Context, vaultArg, policy string, dryRun, requeue, noCache bool) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if policy != "" {
		cfg.Sync.Policy = policy
	}
	if noCache {
		cfg.Cache.Kind = config.CacheNull
		cfg.Cache.Dir = ""
		cfg.Cache.URL = ""
	}

	mgr, cleanup, err := c.newManager(ctx, cfg, c.conflictPicker())
	if err != nil {
		return err
	}
	defer cleanup()

	vault, err := resolveVault(ctx, mgr, cfg, vaultArg)
	if err != nil {
		return err
	}

	if requeue {
		n, err := mgr.RequeuePending(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			printInfo("Requeued %d pending pushes", n)
		}
	}

	if dryRun {
		plan, err := mgr.PlanVault(ctx, vault.ID)
		if err != nil {
			return err
		}
		printPlan(vault.Name, plan)
		return nil
	}

	prog := newProgress(loggerFromContext(ctx))
	res, err := mgr.SyncVault(ctx, vault.ID)
	if err != nil {
		printError("Sync failed: %v", err)
		return err
	}
	prog.done(fmt.Sprintf("Synced vault %s", vault.Name))

	printSuccess("Vault %q synced", vault.Name)
	printSyncStats(res)
	if res.Skipped > 0 {
		printDetail("%d conflicts skipped; run 'canopy sync' again to settle them", res.Skipped)
	}

	return nil
}

// printPlan lists what a pass would transfer without applying anything.
func printPlan(vaultName string, plan sync.SyncChanges) {
	if plan.Empty() {
		printSuccess("Vault %q is up to date", vaultName)
		return
	}

	printInfo("Plan for vault %q", vaultName)
	for _, id := range plan.Download {
		printDetail("download  %s", id)
	}
	for _, id := range plan.Upload {
		printDetail("upload    %s", id)
	}
	for _, id := range plan.Delete {
		printDetail("delete    %s", id)
	}
	for _, conflict := range plan.Conflicts {
		printWarning("conflict  %s (local %s, server %s)", conflict.Path,
			formatRelativeTime(conflict.LocalModified),
			formatRelativeTime(conflict.RemoteModified))
	}
	printNewline()
	printParts([]string{
		fmt.Sprintf("%d down", len(plan.Download)),
		fmt.Sprintf("%d up", len(plan.Upload)),
		fmt.Sprintf("%d delete", len(plan.Delete)),
		fmt.Sprintf("%d conflicts", len(plan.Conflicts)),
	})
}

// conflictPicker returns a resolver that asks on the terminal. A picker
// that cannot run (no TTY) skips the conflict so the pass stays safe.
func (c *CLI) conflictPicker() sync.ConflictResolver {
	return func(ctx context.Context, conflict sync.Conflict) (sync.Resolution, error) {
		m := NewConflictPickerModel(conflict)
		p := tea.NewProgram(m, tea.WithContext(ctx))
		finalModel, err := p.Run()
		if err != nil {
			return sync.ResolutionSkip, nil
		}
		fm, ok := finalModel.(ConflictPickerModel)
		if !ok || fm.Choice == nil {
			return sync.ResolutionSkip, nil
		}
		return *fm.Choice, nil
	}
}
