package parser

import (
	"reflect"
	"strings"
	"testing"
)

const pythonFixture = `"""Module doc."""

import os


def top(a, b):
    """Old doc."""
    return a + b


class Widget:
    """Widget doc."""

    def render(self):
        def helper():
            return 1
        return helper()


def tail():
    pass
`

func parsePython(t *testing.T, src string) *FileUnit {
	t.Helper()
	fu, err := NewPythonParser().Parse("pkg/sample.py", []byte(src))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return fu
}

func TestPythonParseStructure(t *testing.T) {
	fu := parsePython(t, pythonFixture)

	root := fu.Root
	if root.Kind != NodeModule {
		t.Fatalf("expected module root, got %s", root.Kind)
	}
	if root.Docstring != "Module doc." {
		t.Fatalf("expected module docstring, got %q", root.Docstring)
	}

	names := childNames(root)
	want := []string{"top", "Widget", "tail"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("expected top-level children %v, got %v", want, names)
	}

	widget := root.Children[1]
	if widget.Kind != NodeClass {
		t.Fatalf("expected class, got %s", widget.Kind)
	}
	if len(widget.Children) != 1 || widget.Children[0].QualifiedName != "Widget.render" {
		t.Fatalf("expected Widget.render child, got %+v", widget.Children)
	}

	render := widget.Children[0]
	if len(render.Children) != 1 || render.Children[0].QualifiedName != "Widget.render.helper" {
		t.Fatalf("expected nested helper, got %+v", render.Children)
	}
}

func TestPythonSpansNested(t *testing.T) {
	fu := parsePython(t, pythonFixture)

	fu.Root.Walk(func(n *SourceNode) {
		var prev *SourceNode
		for _, child := range n.Children {
			if !n.Span.Contains(child.Span) {
				t.Fatalf("child %s span not contained in parent %s", child.QualifiedName, n.QualifiedName)
			}
			if prev != nil && prev.Span.Overlaps(child.Span) {
				t.Fatalf("sibling spans overlap: %s and %s", prev.QualifiedName, child.QualifiedName)
			}
			prev = child
		}
	})
}

func TestPythonDocstrings(t *testing.T) {
	fu := parsePython(t, pythonFixture)

	top := fu.Root.Children[0]
	if top.Docstring != "Old doc." {
		t.Fatalf("expected docstring for top, got %q", top.Docstring)
	}
	if top.DocSpan == nil {
		t.Fatal("expected DocSpan for top")
	}
	literal := string(fu.RawText[top.DocSpan.Start:top.DocSpan.End])
	if literal != `"""Old doc."""` {
		t.Fatalf("DocSpan does not cover the literal: %q", literal)
	}

	render := fu.Root.Children[1].Children[0]
	if render.Docstring != "" || render.DocSpan != nil {
		t.Fatalf("expected no docstring for render, got %q", render.Docstring)
	}
	if !render.Insertable {
		t.Fatal("expected render to be insertable")
	}
	if render.InsertIndent != "        " {
		t.Fatalf("expected 8-space insert indent for render, got %q", render.InsertIndent)
	}
}

func TestPythonDocstringAfterLeadingComment(t *testing.T) {
	fu := parsePython(t, "def f(a):\n    # setup\n    \"\"\"Doc.\"\"\"\n    return a\n")

	f := fu.Root.Children[0]
	if f.Docstring != "Doc." {
		t.Fatalf("docstring below a comment not detected: %q", f.Docstring)
	}
	if f.DocSpan == nil {
		t.Fatal("expected DocSpan for commented body")
	}
	if literal := string(fu.RawText[f.DocSpan.Start:f.DocSpan.End]); literal != `"""Doc."""` {
		t.Fatalf("DocSpan does not cover the literal: %q", literal)
	}
}

func TestPythonInsertPointSkipsLeadingComment(t *testing.T) {
	fu := parsePython(t, "def g(b):\n    # note\n    return b\n")

	g := fu.Root.Children[0]
	if !g.Insertable {
		t.Fatal("expected g to be insertable")
	}
	// The insertion point is the first statement's line, past the comment.
	if !strings.HasPrefix(string(fu.RawText[g.InsertAt:]), "    return b") {
		t.Fatalf("insert point not at first statement: %q", fu.RawText[g.InsertAt:])
	}
}

func TestPythonInlineBodyNotInsertable(t *testing.T) {
	fu := parsePython(t, "def f(): pass\n")
	f := fu.Root.Children[0]
	if f.Insertable {
		t.Fatal("inline body must not be insertable")
	}
}

func TestPythonSignatures(t *testing.T) {
	fu := parsePython(t, pythonFixture)

	top := fu.Root.Children[0]
	if top.Signature != "def top(a, b)" {
		t.Fatalf("unexpected signature %q", top.Signature)
	}
	widget := fu.Root.Children[1]
	if widget.Signature != "class Widget" {
		t.Fatalf("unexpected signature %q", widget.Signature)
	}
}

func TestPythonParseDeterministic(t *testing.T) {
	first := parsePython(t, pythonFixture)
	second := parsePython(t, pythonFixture)
	if !reflect.DeepEqual(first.Root, second.Root) {
		t.Fatal("parsing the same content twice produced different trees")
	}
}

func TestPythonParseErrorOnInvalidSource(t *testing.T) {
	_, err := NewPythonParser().Parse("bad.py", []byte("def broken(:\n"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if _, ok := err.(*ParseError); !ok {
		t.Fatalf("expected *ParseError, got %T", err)
	}
}

func TestOwnTextExcludesChildrenAndDocstring(t *testing.T) {
	fu := parsePython(t, pythonFixture)

	own := string(fu.Root.OwnText(fu.RawText))
	for _, fragment := range []string{"Module doc.", "def top", "class Widget", "def tail"} {
		if strings.Contains(own, fragment) {
			t.Fatalf("module own text should not contain %q:\n%s", fragment, own)
		}
	}
	if !strings.Contains(own, "import os") {
		t.Fatalf("module own text should contain imports:\n%s", own)
	}
}

func childNames(n *SourceNode) []string {
	names := make([]string, 0, len(n.Children))
	for _, child := range n.Children {
		names = append(names, child.Name)
	}
	return names
}
