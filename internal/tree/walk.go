package tree

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/docsync-dev/docsync/internal/fingerprint"
	"github.com/docsync-dev/docsync/internal/ignore"
	"github.com/docsync-dev/docsync/internal/parser"
)

// Walker builds the unit tree for one run.
type Walker struct {
	registry *parser.Registry
	matcher  *ignore.Matcher
}

func NewWalker(registry *parser.Registry, matcher *ignore.Matcher) *Walker {
	return &Walker{registry: registry, matcher: matcher}
}

// Build walks rootPath and returns the root DirNode with every supported
// file parsed and fingerprinted, plus the files skipped for parse errors.
// Unreadable paths and symlink cycles return *TreeWalkError and abort.
func (w *Walker) Build(rootPath string) (*DirNode, []SkippedFile, error) {
	seen := make(map[string]bool)
	skipped := make([]SkippedFile, 0)

	root, err := w.walkDir(rootPath, ".", seen, &skipped)
	if err != nil {
		return nil, nil, err
	}
	if root == nil {
		root = &DirNode{Rel: ".", Fingerprint: fingerprint.Combine(nil)}
	}
	return root, skipped, nil
}

func (w *Walker) walkDir(absPath, relPath string, seen map[string]bool, skipped *[]SkippedFile) (*DirNode, error) {
	real, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return nil, &TreeWalkError{Path: relPath, Reason: "unresolvable path", Err: err}
	}
	if seen[real] {
		return nil, &TreeWalkError{Path: relPath, Reason: "symlink cycle detected"}
	}
	seen[real] = true

	entries, err := os.ReadDir(absPath)
	if err != nil {
		return nil, &TreeWalkError{Path: relPath, Reason: "unreadable directory", Err: err}
	}

	// os.ReadDir returns entries sorted by name, which fixes child order.
	dir := &DirNode{Rel: relPath}
	childFingerprints := make([]string, 0, len(entries))

	for _, entry := range entries {
		childRel := filepath.Join(relPath, entry.Name())
		childAbs := filepath.Join(absPath, entry.Name())

		isDir := entry.IsDir()
		if entry.Type()&os.ModeSymlink != 0 {
			info, err := os.Stat(childAbs)
			if err != nil {
				return nil, &TreeWalkError{Path: childRel, Reason: "broken symlink", Err: err}
			}
			if !info.IsDir() {
				continue // file symlinks are not documented in place
			}
			isDir = true
		}

		if w.matcher.ShouldIgnore(childRel, isDir) {
			continue
		}

		if isDir {
			sub, err := w.walkDir(childAbs, childRel, seen, skipped)
			if err != nil {
				return nil, err
			}
			if len(sub.Children) == 0 {
				continue
			}
			dir.Children = append(dir.Children, sub)
			childFingerprints = append(childFingerprints, sub.Fingerprint)
			continue
		}

		if !w.registry.Supports(entry.Name()) {
			continue
		}

		fileNode, err := w.parseFile(childAbs, childRel, skipped)
		if err != nil {
			return nil, err
		}
		if fileNode == nil {
			continue
		}
		dir.Children = append(dir.Children, fileNode)
		childFingerprints = append(childFingerprints, fileNode.ContentFingerprint())
	}

	dir.Fingerprint = fingerprint.Combine(childFingerprints)
	return dir, nil
}

func (w *Walker) parseFile(absPath, relPath string, skipped *[]SkippedFile) (*FileNode, error) {
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, &TreeWalkError{Path: relPath, Reason: "unreadable file", Err: err}
	}

	langParser, ok := w.registry.ParserForFile(absPath)
	if !ok {
		return nil, nil
	}

	fu, err := langParser.Parse(relPath, content)
	if err != nil {
		var parseErr *parser.ParseError
		if errors.As(err, &parseErr) {
			*skipped = append(*skipped, SkippedFile{Path: relPath, Reason: parseErr.Message})
			return nil, nil
		}
		*skipped = append(*skipped, SkippedFile{Path: relPath, Reason: err.Error()})
		return nil, nil
	}

	fingerprint.AnnotateFile(fu)
	return &FileNode{Rel: relPath, File: fu}, nil
}
