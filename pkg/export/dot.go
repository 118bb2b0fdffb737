// Package export turns a mindmap tree into Graphviz output. ToDOT builds
// the textual graph; RenderSVG and RenderPNG rasterize it through
// goccy/go-graphviz, so no system graphviz install is needed.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/canopyhq/canopy/pkg/mindmap"
)

// Options configures DOT generation.
type Options struct {
	// Detailed adds node ids and coordinates to labels.
	Detailed bool
	// VisibleOnly omits the subtrees hidden by collapse state.
	VisibleOnly bool
	// Positions pins nodes at their stored coordinates so the rendered
	// image matches the editor layout instead of graphviz ranking.
	Positions bool
}

// ToDOT converts a tree to Graphviz DOT. Nodes appear in traversal order
// (roots first, then depth-first), so output is stable for a given tree.
// When both root sides are populated the sides are grouped into left and
// right clusters; edges carry no arrowheads.
func ToDOT(t *mindmap.Tree, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph canopy {\n")
	if opts.Positions {
		buf.WriteString("  layout=neato;\n")
	} else {
		buf.WriteString("  rankdir=LR;\n")
		buf.WriteString("  ranksep=0.6;\n")
		buf.WriteString("  nodesep=0.25;\n")
	}
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.15,0.08\"];\n")
	buf.WriteString("  edge [arrowhead=none];\n")
	buf.WriteString("\n")

	ids := traverse(t, opts)

	var roots, left, right []string
	for _, id := range ids {
		n, _ := t.Node(id)
		switch {
		case n.IsRoot():
			roots = append(roots, id)
		case n.Side == mindmap.SideLeft:
			left = append(left, id)
		default:
			right = append(right, id)
		}
	}

	for _, id := range roots {
		writeNode(&buf, t, id, "  ", opts)
	}
	if len(left) > 0 && len(right) > 0 {
		writeCluster(&buf, t, "left", left, opts)
		writeCluster(&buf, t, "right", right, opts)
	} else {
		for _, id := range append(left, right...) {
			writeNode(&buf, t, id, "  ", opts)
		}
	}

	buf.WriteString("\n")
	for _, id := range ids {
		n, _ := t.Node(id)
		if n.ParentID == "" {
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q;\n", n.ParentID, n.ID)
	}

	buf.WriteString("}\n")
	return buf.String()
}

// traverse returns ids roots-first in depth-first order, honoring
// collapse state when VisibleOnly is set.
func traverse(t *mindmap.Tree, opts Options) []string {
	kids := t.Children
	if opts.VisibleOnly {
		kids = t.VisibleChildren
	}

	ids := make([]string, 0, t.NodeCount())
	var walk func(id string)
	walk = func(id string) {
		ids = append(ids, id)
		for _, cid := range kids(id) {
			walk(cid)
		}
	}
	for _, rid := range t.Roots() {
		walk(rid)
	}
	return ids
}

func writeCluster(buf *bytes.Buffer, t *mindmap.Tree, side string, ids []string, opts Options) {
	fmt.Fprintf(buf, "  subgraph cluster_%s {\n", side)
	buf.WriteString("    style=invis;\n")
	for _, id := range ids {
		writeNode(buf, t, id, "    ", opts)
	}
	buf.WriteString("  }\n")
}

func writeNode(buf *bytes.Buffer, t *mindmap.Tree, id, indent string, opts Options) {
	n, _ := t.Node(id)
	label := fmtLabel(*n, opts.Detailed)
	attrs := fmtAttrs(*n, label, opts)
	fmt.Fprintf(buf, "%s%q [%s];\n", indent, n.ID, strings.Join(attrs, ", "))
}

func fmtLabel(n mindmap.Node, detailed bool) string {
	text := strings.TrimSpace(n.Text)
	if text == "" {
		text = "(untitled)"
	}
	if !detailed {
		return text
	}

	id := n.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s\nid: %s\nat: %.0f,%.0f", text, id, n.X, n.Y)
}

func fmtAttrs(n mindmap.Node, label string, opts Options) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	if n.IsRoot() {
		attrs = append(attrs, "penwidth=2", "fillcolor=\"#e8f0fe\"")
	}
	if n.Collapsed {
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey")
	}
	if opts.Positions {
		// Graphviz points grow upward; flip y so the image matches the
		// editor's screen orientation.
		cx := n.X + n.Width/2
		cy := -(n.Y + n.Height/2)
		attrs = append(attrs,
			fmt.Sprintf("pos=\"%.2f,%.2f!\"", cx, cy),
			fmt.Sprintf("width=%.3f", n.Width/72),
			fmt.Sprintf("height=%.3f", n.Height/72),
			"fixedsize=true")
	}
	return attrs
}
