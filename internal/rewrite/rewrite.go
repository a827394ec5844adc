// Package rewrite splices generated docstrings into source files while
// preserving every other byte.
package rewrite

import (
	"fmt"
	"sort"

	"github.com/docsync-dev/docsync/internal/parser"
)

// ConflictError reports overlapping rewrite targets. The parser's span
// invariant should make this impossible; when it fires, the driver skips
// the file with a warning.
type ConflictError struct {
	Path  string
	First string
	Other string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("rewrite conflict in %s: overlapping spans for %s and %s", e.Path, e.First, e.Other)
}

type target struct {
	qualifiedName string
	start         uint32
	end           uint32 // end == start for pure insertions
	replacement   []byte
}

// File returns the file's text with each node's docstring inserted or
// replaced per the docstrings map (qualified name -> docstring text).
// format renders docstring text as a source literal at a given indent.
// Nodes absent from the map, and nodes whose body cannot take a docstring,
// are left untouched; the second return lists the latter.
func File(fu *parser.FileUnit, docstrings map[string]string, format func(text, indent string) string) ([]byte, []string, error) {
	targets := make([]target, 0, len(docstrings))
	unplaceable := make([]string, 0)

	fu.Root.Walk(func(n *parser.SourceNode) {
		text, ok := docstrings[n.QualifiedName]
		if !ok {
			return
		}
		switch {
		case n.DocSpan != nil:
			indent := lineIndent(fu.RawText, n.DocSpan.Start)
			targets = append(targets, target{
				qualifiedName: n.QualifiedName,
				start:         n.DocSpan.Start,
				end:           n.DocSpan.End,
				replacement:   []byte(format(text, indent)),
			})
		case n.Insertable:
			literal := n.InsertIndent + format(text, n.InsertIndent) + "\n"
			targets = append(targets, target{
				qualifiedName: n.QualifiedName,
				start:         n.InsertAt,
				end:           n.InsertAt,
				replacement:   []byte(literal),
			})
		default:
			unplaceable = append(unplaceable, n.QualifiedName)
		}
	})

	if len(targets) == 0 {
		return fu.RawText, unplaceable, nil
	}

	sort.Slice(targets, func(i, j int) bool { return targets[i].start < targets[j].start })
	for i := 1; i < len(targets); i++ {
		if targets[i].start < targets[i-1].end {
			return nil, nil, &ConflictError{
				Path:  fu.Path,
				First: targets[i-1].qualifiedName,
				Other: targets[i].qualifiedName,
			}
		}
	}

	// Splice in descending span order so earlier replacements never shift
	// the offsets of spans still to be processed.
	out := append([]byte(nil), fu.RawText...)
	for i := len(targets) - 1; i >= 0; i-- {
		t := targets[i]
		rest := append([]byte(nil), out[t.end:]...)
		out = append(out[:t.start], t.replacement...)
		out = append(out, rest...)
	}
	return out, unplaceable, nil
}

// lineIndent returns the leading whitespace of the line containing offset.
func lineIndent(content []byte, offset uint32) string {
	lineStart := offset
	for lineStart > 0 && content[lineStart-1] != '\n' {
		lineStart--
	}
	end := lineStart
	for end < offset && (content[end] == ' ' || content[end] == '\t') {
		end++
	}
	return string(content[lineStart:end])
}
