package parser

import "fmt"

// NodeKind represents the type of documentable unit.
type NodeKind int

const (
	NodeModule NodeKind = iota
	NodeClass
	NodeFunction
)

func (k NodeKind) String() string {
	switch k {
	case NodeModule:
		return "module"
	case NodeClass:
		return "class"
	case NodeFunction:
		return "function"
	default:
		return "unknown"
	}
}

// Span is a half-open byte range [Start, End) in the owning file.
type Span struct {
	Start uint32
	End   uint32
}

func (s Span) Contains(other Span) bool {
	return other.Start >= s.Start && other.End <= s.End
}

func (s Span) Overlaps(other Span) bool {
	return s.Start < other.End && other.Start < s.End
}

// SourceNode is one documentable unit: the module itself, a class, or a
// function. Children appear in lexical nesting order, and their spans are
// contained in and non-overlapping within the parent's span.
type SourceNode struct {
	Kind          NodeKind
	Name          string
	QualifiedName string
	Signature     string
	Span          Span

	// Docstring is the existing docstring text, stripped of quoting.
	// DocSpan covers the raw docstring literal in the file; nil when the
	// node has no docstring.
	Docstring string
	DocSpan   *Span

	// InsertAt is the byte offset where a new docstring line would be
	// inserted (start of the first body statement's line). InsertIndent is
	// the indentation to use for it. InsertAt is zero-valued (and
	// Insertable false) when the node's body cannot take a docstring,
	// e.g. a one-line "def f(): pass".
	InsertAt     uint32
	InsertIndent string
	Insertable   bool

	// Fingerprint is the Merkle-composed content digest, populated by the
	// fingerprint package after parsing.
	Fingerprint string

	Children []*SourceNode
}

// Walk visits n and every descendant in lexical order.
func (n *SourceNode) Walk(fn func(*SourceNode)) {
	fn(n)
	for _, child := range n.Children {
		child.Walk(fn)
	}
}

// OwnText returns the bytes of the node's span with all child spans (and
// the node's own docstring lines) excised. This is the content that
// belongs to the node itself: regenerating a docstring must not change it,
// so the docstring hole covers the literal's whole lines, indentation and
// trailing newline included.
func (n *SourceNode) OwnText(content []byte) []byte {
	holes := make([]Span, 0, len(n.Children)+1)
	if n.DocSpan != nil {
		holes = append(holes, docstringHole(content, *n.DocSpan))
	}
	for _, child := range n.Children {
		holes = append(holes, child.Span)
	}

	own := make([]byte, 0, n.Span.End-n.Span.Start)
	pos := n.Span.Start
	for _, hole := range holes {
		if hole.Start > pos {
			own = append(own, content[pos:hole.Start]...)
		}
		if hole.End > pos {
			pos = hole.End
		}
	}
	if n.Span.End > pos {
		own = append(own, content[pos:n.Span.End]...)
	}
	return own
}

// docstringHole widens a docstring literal's span to cover its whole
// lines, when only whitespace surrounds it there. Keeping the hole
// line-shaped means inserting or replacing a docstring leaves the
// node's own text byte-identical.
func docstringHole(content []byte, span Span) Span {
	start := span.Start
	for start > 0 && (content[start-1] == ' ' || content[start-1] == '\t') {
		start--
	}
	if start > 0 && content[start-1] != '\n' {
		start = span.Start // literal shares its line with code
	}

	end := span.End
	for end < uint32(len(content)) && (content[end] == ' ' || content[end] == '\t' || content[end] == '\r') {
		end++
	}
	if end < uint32(len(content)) && content[end] == '\n' {
		end++
	} else if end < uint32(len(content)) {
		end = span.End // trailing code on the docstring's line
	}
	return Span{Start: start, End: end}
}

// Text returns the full span content of the node.
func (n *SourceNode) Text(content []byte) []byte {
	return content[n.Span.Start:n.Span.End]
}

// FileUnit is one parsed source file. It is owned by the tree walk that
// produced it and is not persisted beyond a run.
type FileUnit struct {
	Path        string
	Language    string
	RawText     []byte
	Root        *SourceNode
	Fingerprint string
}

// ParseError marks a file whose text is not syntactically valid source.
// The driver skips such files with a warning instead of aborting the run.
type ParseError struct {
	Path    string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Path, e.Message)
}
