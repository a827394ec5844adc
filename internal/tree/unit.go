// Package tree builds the per-run unit tree (files and directories) and
// aggregates summaries over it bottom-up.
package tree

import (
	"fmt"

	"github.com/docsync-dev/docsync/internal/parser"
)

// Unit is one aggregatable tree node: a file or a directory.
type Unit interface {
	// RelPath is the path relative to the project root, "." for the root.
	RelPath() string

	// ContentFingerprint identifies the unit's content for caching.
	ContentFingerprint() string
}

// FileNode wraps one parsed source file.
type FileNode struct {
	Rel  string
	File *parser.FileUnit
}

func (f *FileNode) RelPath() string { return f.Rel }

// ContentFingerprint is the module node's fingerprint, not the raw file
// digest: the module fingerprint is computed with docstring lines excised,
// so docstring rewrites do not invalidate directory roll-ups.
func (f *FileNode) ContentFingerprint() string { return f.File.Root.Fingerprint }

// DirNode holds its children in alphabetical order for determinism.
type DirNode struct {
	Rel         string
	Children    []Unit
	Fingerprint string
}

func (d *DirNode) RelPath() string            { return d.Rel }
func (d *DirNode) ContentFingerprint() string { return d.Fingerprint }

// Files returns every FileNode in the subtree in walk order.
func Files(unit Unit) []*FileNode {
	switch u := unit.(type) {
	case *FileNode:
		return []*FileNode{u}
	case *DirNode:
		out := make([]*FileNode, 0)
		for _, child := range u.Children {
			out = append(out, Files(child)...)
		}
		return out
	}
	return nil
}

// TreeWalkError aborts the whole run: documentation must reflect one
// consistent tree snapshot, so walking has no partial-success mode.
type TreeWalkError struct {
	Path   string
	Reason string
	Err    error
}

func (e *TreeWalkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tree walk failed at %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("tree walk failed at %s: %s", e.Path, e.Reason)
}

func (e *TreeWalkError) Unwrap() error { return e.Err }

// SkippedFile records a file excluded from the run with the reason, e.g. a
// parse failure.
type SkippedFile struct {
	Path   string
	Reason string
}
