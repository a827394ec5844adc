// Package fingerprint computes the content digests the sync engine keys its
// cache on: plain sha256 for file content, a Merkle-style composition for
// source nodes so that a change inside a nested function invalidates the
// function and its enclosing module but not its siblings, and a sorted
// combination for directories.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/docsync-dev/docsync/internal/parser"
)

// Content returns the sha256 hex digest of exact byte content.
func Content(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Node composes a node's fingerprint from the bytes of its own span
// (excluding child spans and its own docstring literal, so regenerated
// docstrings do not invalidate the node) plus each child's fingerprint.
// Children are fingerprinted first; the result is stored on every node.
func Node(content []byte, n *parser.SourceNode) string {
	h := sha256.New()
	h.Write(n.OwnText(content))
	for _, child := range n.Children {
		Node(content, child)
		h.Write([]byte(child.Fingerprint))
	}
	n.Fingerprint = hex.EncodeToString(h.Sum(nil))
	return n.Fingerprint
}

// AnnotateFile sets the file-level fingerprint and every node fingerprint
// for one parsed file.
func AnnotateFile(fu *parser.FileUnit) {
	fu.Fingerprint = Content(fu.RawText)
	Node(fu.RawText, fu.Root)
}

// Combine merges child fingerprints into one directory-level fingerprint.
// The input is sorted first so the result is independent of child order.
func Combine(fingerprints []string) string {
	sorted := append([]string(nil), fingerprints...)
	sort.Strings(sorted)

	h := sha256.New()
	for _, fp := range sorted {
		h.Write([]byte(fp))
	}
	return hex.EncodeToString(h.Sum(nil))
}
