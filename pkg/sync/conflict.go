package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/canopyhq/canopy/pkg/errors"
)

// ConflictPolicy selects how a sync pass settles conflicts.
type ConflictPolicy string

const (
	// PolicyAsk delegates each conflict to the injected resolver. With no
	// resolver every conflict is skipped and retried next pass.
	PolicyAsk ConflictPolicy = "ask"
	// PolicyServerWins takes the remote copy.
	PolicyServerWins ConflictPolicy = "server"
	// PolicyLocalWins keeps the local copy and uploads it.
	PolicyLocalWins ConflictPolicy = "local"
)

// Valid reports whether p is a known policy.
func (p ConflictPolicy) Valid() bool {
	switch p {
	case PolicyAsk, PolicyServerWins, PolicyLocalWins:
		return true
	}
	return false
}

// ParseConflictPolicy converts a flag or config value into a policy.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	p := ConflictPolicy(s)
	if !p.Valid() {
		return "", errors.New(errors.ErrCodeInvalidInput,
			"unknown conflict policy %q (want ask, server, or local)", s)
	}
	return p, nil
}

// Resolution is the outcome chosen for one conflict.
type Resolution int

const (
	// ResolutionSkip leaves the conflict for the next pass.
	ResolutionSkip Resolution = iota
	// ResolutionLocal keeps the local copy and uploads it.
	ResolutionLocal
	// ResolutionServer takes the remote copy.
	ResolutionServer
	// ResolutionKeepBoth uploads the local copy as a new file under a
	// conflict name, then takes the remote copy for the original id.
	ResolutionKeepBoth
)

// String returns the resolution's display name.
func (r Resolution) String() string {
	switch r {
	case ResolutionSkip:
		return "skip"
	case ResolutionLocal:
		return "local"
	case ResolutionServer:
		return "server"
	case ResolutionKeepBoth:
		return "keep-both"
	}
	return fmt.Sprintf("resolution(%d)", int(r))
}

// ConflictResolver decides one conflict at a time under PolicyAsk. The
// CLI wires an interactive picker here; tests and scripts pass a fixed
// function. Returning an error aborts the pass.
type ConflictResolver func(ctx context.Context, c Conflict) (Resolution, error)

// ConflictName derives the name for the duplicate a keep-both resolution
// creates next to the original.
func ConflictName(name string, at time.Time) string {
	return fmt.Sprintf("%s (conflict %s)", name, at.Format("2006-01-02 150405"))
}
