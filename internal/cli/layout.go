package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/canopyhq/canopy/pkg/config"
	"github.com/canopyhq/canopy/pkg/document"
	"github.com/canopyhq/canopy/pkg/errors"
	"github.com/canopyhq/canopy/pkg/layout"
	"github.com/canopyhq/canopy/pkg/layout/physics"
	"github.com/canopyhq/canopy/pkg/mindmap"
)

// layoutCommand creates the layout command for resolving node overlaps.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		output   string
		strategy string
		moved    string
		visible  string
		usePhys  bool
		steps    int
	)

	cmd := &cobra.Command{
		Use:   "layout [document.json]",
		Short: "Resolve node overlaps in a document file",
		Long: `Resolve node overlaps in a document file.

The layout command reads a canopy document (as produced by 'docs show -o'),
separates overlapping sibling groups, and writes the adjusted document. Node
positions move by the minimum necessary amount; subtrees move rigidly with
their roots.

Strategies:
  full       resolve every sibling group top-down (default)
  bottomup   resolve outward from the nodes named by --moved

With --physics the radial force simulation runs instead, pulling each node
toward its depth ring while siblings repel each other.

Spacing and iteration limits come from the [layout] section of canopy.toml.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLayout(cmd.Context(), args[0], layoutParams{
				output:   output,
				strategy: strategy,
				moved:    splitList(moved),
				visible:  splitList(visible),
				physics:  usePhys,
				steps:    steps,
			})
		},
	}

	// Common flags
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.layout.json)")

	// Layout flags
	cmd.Flags().StringVar(&strategy, "strategy", "full", "resolution strategy: full (default), bottomup")
	cmd.Flags().StringVar(&moved, "moved", "", "node ids that moved (bottomup, comma-separated)")
	cmd.Flags().StringVar(&visible, "visible", "", "restrict resolution to these node ids (comma-separated)")
	cmd.Flags().BoolVar(&usePhys, "physics", false, "run the radial physics simulation instead")
	cmd.Flags().IntVar(&steps, "steps", 240, "simulation steps with --physics")

	return cmd
}

// layoutParams carries the resolved layout flags.
type layoutParams struct {
	output   string
	strategy string
	moved    []string
	visible  []string
	physics  bool
	steps    int
}

// runLayout loads the document, resolves overlaps, and writes the result.
func (c *CLI) runLayout(ctx context.Context, input string, params layoutParams) error {
	logger := loggerFromContext(ctx)

	doc, err := readDocumentFile(input)
	if err != nil {
		return err
	}
	tree, err := doc.Tree()
	if err != nil {
		return err
	}
	logger.Debugf("Loaded %s: %d nodes", input, tree.NodeCount())

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	spinner := newSpinnerWithContext(ctx, "Resolving layout...")
	spinner.Start()

	converged, err := resolveTree(tree, cfg.Layout, params)
	if err != nil {
		spinner.StopWithError("Layout failed")
		return err
	}
	spinner.Stop()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	doc.SetTree(tree)

	outputPath := params.output
	if outputPath == "" {
		base := strings.TrimSuffix(input, filepath.Ext(input))
		outputPath = base + ".layout.json"
	}
	if err := writeDocumentFile(doc, outputPath); err != nil {
		return err
	}

	if !converged {
		printWarning("Iteration cap reached before full separation")
	}
	printSuccess("Layout complete")
	printFile(outputPath)
	printLayoutStats(tree.NodeCount(), converged)
	printNewline()
	printNextStep("Render", "canopy visualize "+outputPath)

	return nil
}

// resolveTree applies the selected strategy to the tree in place.
func resolveTree(tree *mindmap.Tree, layoutCfg config.LayoutConfig, params layoutParams) (bool, error) {
	if params.physics {
		return runPhysics(tree, params.steps)
	}

	opts, err := layoutCfg.Options()
	if err != nil {
		return false, err
	}
	engine, err := layout.New(opts)
	if err != nil {
		return false, err
	}

	visible := visibleSet(params.visible)
	switch params.strategy {
	case "full":
		if visible != nil {
			return engine.ResolveAllWithin(tree, visible), nil
		}
		return engine.ResolveAll(tree), nil
	case "bottomup":
		if len(params.moved) == 0 {
			return false, errors.New(errors.ErrCodeInvalidInput, "strategy bottomup needs --moved ids")
		}
		if visible != nil {
			return engine.ResolveBottomUpWithin(tree, params.moved, visible), nil
		}
		return engine.ResolveBottomUp(tree, params.moved), nil
	}
	return false, errors.New(errors.ErrCodeInvalidInput,
		"unknown strategy %q (want full or bottomup)", params.strategy)
}

// runPhysics steps the radial simulation and writes positions back.
func runPhysics(tree *mindmap.Tree, steps int) (bool, error) {
	world, err := physics.NewWorld(physics.Config{}, tree)
	if err != nil {
		return false, err
	}
	for range steps {
		world.Step()
	}
	world.SyncBack()
	return true, nil
}

// visibleSet turns an id list into the visibility map the engine expects.
// Nil means everything is visible.
func visibleSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// splitList parses a comma-separated flag value, dropping empty entries.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// writeDocumentFile serializes a document to a JSON file.
func writeDocumentFile(doc *document.Document, path string) error {
	data, err := document.MarshalIndent(doc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, err, "write %s", path)
	}
	return nil
}
