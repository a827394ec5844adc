package parser

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ModuleName is the qualified name of a file's module node. Per-node
// docstring maps use it to address the module docstring itself.
const ModuleName = "__module__"

// PythonParser implements parsing for Python source files.
type PythonParser struct {
	parser *sitter.Parser
}

func NewPythonParser() *PythonParser {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &PythonParser{parser: p}
}

func (p *PythonParser) Language() string {
	return "python"
}

func (p *PythonParser) Extensions() []string {
	return []string{".py", ".pyw"}
}

func (p *PythonParser) Parse(path string, content []byte) (*FileUnit, error) {
	tree, err := p.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, &ParseError{Path: path, Message: "invalid python syntax"}
	}

	module := &SourceNode{
		Kind:          NodeModule,
		Name:          moduleBaseName(path),
		QualifiedName: ModuleName,
		Signature:     "module " + moduleBaseName(path),
		Span:          Span{Start: 0, End: uint32(len(content))},
		InsertAt:      0,
		InsertIndent:  "",
		Insertable:    true,
	}
	p.attachDocstring(module, root, content)

	for i := 0; i < int(root.ChildCount()); i++ {
		p.extract(root.Child(i), content, "", module)
	}

	return &FileUnit{
		Path:     path,
		Language: "python",
		RawText:  content,
		Root:     module,
	}, nil
}

func (p *PythonParser) FormatDocstring(text, indent string) string {
	text = strings.ReplaceAll(text, `"""`, `'''`)
	text = strings.TrimSpace(text)
	if !strings.Contains(text, "\n") {
		return `"""` + text + `"""`
	}

	lines := strings.Split(text, "\n")
	var b strings.Builder
	b.WriteString(`"""`)
	b.WriteString(lines[0])
	for _, line := range lines[1:] {
		b.WriteString("\n")
		if strings.TrimSpace(line) != "" {
			b.WriteString(indent)
			b.WriteString(line)
		}
	}
	b.WriteString("\n")
	b.WriteString(indent)
	b.WriteString(`"""`)
	return b.String()
}

func (p *PythonParser) extract(node *sitter.Node, content []byte, parentQual string, parent *SourceNode) {
	switch node.Type() {
	case "decorated_definition":
		if def := node.ChildByFieldName("definition"); def != nil {
			p.extract(def, content, parentQual, parent)
		}
		return

	case "function_definition":
		sym := p.newNode(node, content, parentQual, NodeFunction)
		if sym == nil {
			return
		}
		parent.Children = append(parent.Children, sym)
		p.extractBody(node, content, sym)
		return

	case "class_definition":
		sym := p.newNode(node, content, parentQual, NodeClass)
		if sym == nil {
			return
		}
		parent.Children = append(parent.Children, sym)
		p.extractBody(node, content, sym)
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		p.extract(node.Child(i), content, parentQual, parent)
	}
}

func (p *PythonParser) extractBody(node *sitter.Node, content []byte, sym *SourceNode) {
	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	for i := 0; i < int(body.ChildCount()); i++ {
		p.extract(body.Child(i), content, sym.QualifiedName, sym)
	}
}

func (p *PythonParser) newNode(node *sitter.Node, content []byte, parentQual string, kind NodeKind) *SourceNode {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nameNode.Content(content)

	sym := &SourceNode{
		Kind:          kind,
		Name:          name,
		QualifiedName: qualify(parentQual, name),
		Span:          Span{Start: node.StartByte(), End: node.EndByte()},
	}
	if kind == NodeFunction {
		sym.Signature = p.functionSignature(node, content)
	} else {
		sym.Signature = p.classSignature(node, content)
	}

	p.attachDocstring(sym, node.ChildByFieldName("body"), content)
	p.locateInsertPoint(sym, node.ChildByFieldName("body"), content)
	return sym
}

// attachDocstring records the node's docstring text and the span of its
// raw string literal when the body's first statement is a string.
func (p *PythonParser) attachDocstring(sym *SourceNode, body *sitter.Node, content []byte) {
	str := docstringLiteral(body)
	if str == nil {
		return
	}
	sym.Docstring = stripDocstringQuotes(str.Content(content))
	sym.DocSpan = &Span{Start: str.StartByte(), End: str.EndByte()}
}

// locateInsertPoint finds where a fresh docstring line would go: the start
// of the first body statement's line. Bodies that share a line with the
// signature ("def f(): pass") are not insertable.
func (p *PythonParser) locateInsertPoint(sym *SourceNode, body *sitter.Node, content []byte) {
	first := firstBodyStatement(body)
	if first == nil {
		return
	}
	start := first.StartByte()
	lineStart := start
	for lineStart > 0 && content[lineStart-1] != '\n' {
		lineStart--
	}
	prefix := string(content[lineStart:start])
	if strings.TrimLeft(prefix, " \t") != "" {
		return
	}
	sym.InsertAt = lineStart
	sym.InsertIndent = prefix
	sym.Insertable = true
}

func (p *PythonParser) functionSignature(node *sitter.Node, content []byte) string {
	nameNode := node.ChildByFieldName("name")
	paramsNode := node.ChildByFieldName("parameters")
	returnNode := node.ChildByFieldName("return_type")

	sig := "def"
	if nameNode != nil {
		sig += " " + nameNode.Content(content)
	}
	if paramsNode != nil {
		sig += paramsNode.Content(content)
	}
	if returnNode != nil {
		sig += " -> " + returnNode.Content(content)
	}
	return sig
}

func (p *PythonParser) classSignature(node *sitter.Node, content []byte) string {
	nameNode := node.ChildByFieldName("name")
	superclassNode := node.ChildByFieldName("superclasses")

	sig := "class"
	if nameNode != nil {
		sig += " " + nameNode.Content(content)
	}
	if superclassNode != nil {
		sig += superclassNode.Content(content)
	}
	return sig
}

// docstringLiteral returns the string node when the body's first statement
// is a bare string expression.
func docstringLiteral(body *sitter.Node) *sitter.Node {
	first := firstBodyStatement(body)
	if first == nil {
		return nil
	}
	if first.Type() != "expression_statement" || first.ChildCount() == 0 {
		return nil
	}
	expr := first.Child(0)
	if expr.Type() != "string" {
		return nil
	}
	return expr
}

// firstBodyStatement returns the body's first statement, skipping comment
// nodes: comments are not statements, so a docstring below a leading
// comment is still the docstring.
func firstBodyStatement(body *sitter.Node) *sitter.Node {
	if body == nil {
		return nil
	}
	for i := 0; i < int(body.ChildCount()); i++ {
		child := body.Child(i)
		if child.Type() == "comment" {
			continue
		}
		return child
	}
	return nil
}

func stripDocstringQuotes(s string) string {
	s = strings.TrimSpace(s)
	for _, quote := range []string{`"""`, `'''`} {
		if strings.HasPrefix(s, quote) && strings.HasSuffix(s, quote) && len(s) >= 2*len(quote) {
			return strings.TrimSpace(s[len(quote) : len(s)-len(quote)])
		}
	}
	for _, quote := range []string{`"`, `'`} {
		if strings.HasPrefix(s, quote) && strings.HasSuffix(s, quote) && len(s) >= 2 {
			return strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

func moduleBaseName(path string) string {
	base := path
	if idx := strings.LastIndexAny(base, "/\\"); idx != -1 {
		base = base[idx+1:]
	}
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	return base
}
