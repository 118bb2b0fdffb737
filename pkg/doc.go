// Package pkg provides the core libraries for Canopy mindmap layout and sync.
//
// # Overview
//
// Canopy keeps mindmap documents readable and replicated: a layout engine
// separates overlapping nodes with minimal movement, and a sync engine moves
// documents between a local store and a remote backend with last-write-wins
// reconciliation. The pkg directory is organized into four main areas:
//
//  1. [mindmap] / [document] - Domain model (node trees, persistence envelope)
//  2. [layout] - Overlap resolution and the radial physics simulation
//  3. [sync] - Change tracking, push queue, vault reconciliation
//  4. [store] / [provider] / [cache] - Pluggable persistence and transport
//
// # Architecture
//
// The typical data flow through Canopy:
//
//	Editor / CLI mutation
//	         ↓
//	    [mindmap] package (tree structure + geometry)
//	         ↓
//	    [layout] package (overlap resolution, bounds, physics)
//	         ↓
//	    [document] package (serialization envelope)
//	         ↓
//	    [sync] package (local save → debounced push → reconcile)
//	         ↓
//	    [store] (local) and [provider] (remote)
//
// # Quick Start
//
// Resolve overlaps in a tree and sync the document:
//
//	import (
//	    "context"
//	    "github.com/canopyhq/canopy/pkg/document"
//	    "github.com/canopyhq/canopy/pkg/layout"
//	    "github.com/canopyhq/canopy/pkg/provider"
//	    "github.com/canopyhq/canopy/pkg/store"
//	    "github.com/canopyhq/canopy/pkg/sync"
//	)
//
//	// 1. Load the document and build the tree
//	doc, _ := document.Unmarshal(data)
//	tree, _ := doc.Tree()
//
//	// 2. Resolve sibling overlaps
//	engine, _ := layout.New(layout.Options{})
//	engine.ResolveAll(tree)
//	doc.SetTree(tree)
//
//	// 3. Save locally and queue a push
//	mgr, _ := sync.NewManager(sync.Options{
//	    Store:    store.NewMemoryStore(),
//	    Provider: provider.NewMemoryProvider(),
//	})
//	_ = mgr.SaveDocument(context.Background(), doc)
//
// # Main Packages
//
// ## Domain Model
//
// [mindmap] - The node tree: an id-indexed arena with ordered children,
// side assignment for bidirectional layouts, collapse state, and cycle
// rejection on every parent change.
//
// [document] - The unit of persistence and sync. Wraps a flat node slice
// with identity, modification time, and the remote reference; derives the
// [document.Meta] envelope the sync engine tracks.
//
// [geom] - Rectangles and points shared by layout and rendering.
//
// ## Layout
//
// [layout] - Subtree-rigid overlap resolution. Sibling groups are separated
// top-down ([layout.Engine.ResolveAll]) or outward from moved nodes
// ([layout.Engine.ResolveBottomUp]), with per-pass iteration caps and
// level-of-detail variants that skip hidden nodes.
//
// [layout/physics] - The rigid-body alternative: nodes repel overlapping
// siblings while springs pull them toward depth rings around the root.
//
// ## Sync
//
// [sync] - The manager ties together local-first saves, the change tracker,
// the debounced push queue, and vault-wide reconciliation with advisory
// locks and conflict policies.
//
// ## Persistence and Transport
//
// [store] - Local stores: memory (testing), SQLite (CLI default), MongoDB
// (shared deployments).
//
// [provider] - Remote backends: memory (testing), HTTP (the canopy server),
// S3-compatible object storage.
//
// [cache] - Remote-fetch caches: null, file (XDG cache dir), Redis.
//
// ## Supporting Packages
//
// [export] - DOT generation and Graphviz SVG/PNG rendering.
//
// [config] - canopy.toml loading with validated defaults.
//
// [session] - Saved login sessions for the HTTP provider.
//
// [httputil] - Retry/backoff for remote calls.
//
// [observability] - Event hooks the CLI and server subscribe to.
//
// [errors] - Coded errors shared by every layer.
//
// [buildinfo] - Version metadata injected at build time.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...          # All tests
//	go test ./pkg/layout/...   # Specific package
//	go test -run Example       # Examples only
//
// [mindmap]: https://pkg.go.dev/github.com/canopyhq/canopy/pkg/mindmap
// [document]: https://pkg.go.dev/github.com/canopyhq/canopy/pkg/document
// [geom]: https://pkg.go.dev/github.com/canopyhq/canopy/pkg/geom
// [layout]: https://pkg.go.dev/github.com/canopyhq/canopy/pkg/layout
// [layout/physics]: https://pkg.go.dev/github.com/canopyhq/canopy/pkg/layout/physics
// [sync]: https://pkg.go.dev/github.com/canopyhq/canopy/pkg/sync
// [store]: https://pkg.go.dev/github.com/canopyhq/canopy/pkg/store
// [provider]: https://pkg.go.dev/github.com/canopyhq/canopy/pkg/provider
// [cache]: https://pkg.go.dev/github.com/canopyhq/canopy/pkg/cache
// [export]: https://pkg.go.dev/github.com/canopyhq/canopy/pkg/export
// [config]: https://pkg.go.dev/github.com/canopyhq/canopy/pkg/config
// [session]: https://pkg.go.dev/github.com/canopyhq/canopy/pkg/session
// [httputil]: https://pkg.go.dev/github.com/canopyhq/canopy/pkg/httputil
// [observability]: https://pkg.go.dev/github.com/canopyhq/canopy/pkg/observability
// [errors]: https://pkg.go.dev/github.com/canopyhq/canopy/pkg/errors
// [buildinfo]: https://pkg.go.dev/github.com/canopyhq/canopy/pkg/buildinfo
package pkg
