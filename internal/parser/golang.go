package parser

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// GoParser implements parsing for Go source files. Go files participate in
// summarization; docstring rewriting is Python-only, so GoParser does not
// implement DocstringSupport.
type GoParser struct {
	parser *sitter.Parser
}

func NewGoParser() *GoParser {
	p := sitter.NewParser()
	p.SetLanguage(golang.GetLanguage())
	return &GoParser{parser: p}
}

func (g *GoParser) Language() string {
	return "go"
}

func (g *GoParser) Extensions() []string {
	return []string{".go"}
}

func (g *GoParser) Parse(path string, content []byte) (*FileUnit, error) {
	tree, err := g.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, &ParseError{Path: path, Message: "invalid go syntax"}
	}

	module := &SourceNode{
		Kind:          NodeModule,
		Name:          moduleBaseName(path),
		QualifiedName: ModuleName,
		Signature:     "file " + moduleBaseName(path),
		Span:          Span{Start: 0, End: uint32(len(content))},
	}

	for i := 0; i < int(root.ChildCount()); i++ {
		g.extract(root.Child(i), content, module)
	}

	return &FileUnit{
		Path:     path,
		Language: "go",
		RawText:  content,
		Root:     module,
	}, nil
}

func (g *GoParser) extract(node *sitter.Node, content []byte, module *SourceNode) {
	switch node.Type() {
	case "function_declaration", "method_declaration":
		if sym := g.extractFunction(node, content, module.QualifiedName); sym != nil {
			module.Children = append(module.Children, sym)
		}
		return

	case "type_declaration":
		for _, sym := range g.extractTypeDecl(node, content) {
			module.Children = append(module.Children, sym)
		}
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		g.extract(node.Child(i), content, module)
	}
}

func (g *GoParser) extractFunction(node *sitter.Node, content []byte, parentQual string) *SourceNode {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nameNode.Content(content)
	qual := name
	if recv := node.ChildByFieldName("receiver"); recv != nil {
		qual = receiverTypeName(recv.Content(content)) + "." + name
	}

	return &SourceNode{
		Kind:          NodeFunction,
		Name:          name,
		QualifiedName: qual,
		Signature:     g.functionSignature(node, content),
		Span:          Span{Start: node.StartByte(), End: node.EndByte()},
		Docstring:     precedingComment(node, content),
	}
}

func (g *GoParser) extractTypeDecl(node *sitter.Node, content []byte) []*SourceNode {
	out := make([]*SourceNode, 0, 1)
	doc := precedingComment(node, content)
	for i := 0; i < int(node.ChildCount()); i++ {
		spec := node.Child(i)
		if spec.Type() != "type_spec" {
			continue
		}
		nameNode := spec.ChildByFieldName("name")
		typeNode := spec.ChildByFieldName("type")
		if nameNode == nil || typeNode == nil {
			continue
		}
		switch typeNode.Type() {
		case "struct_type", "interface_type":
			name := nameNode.Content(content)
			out = append(out, &SourceNode{
				Kind:          NodeClass,
				Name:          name,
				QualifiedName: name,
				Signature:     "type " + name + " " + strings.TrimSuffix(typeNode.Type(), "_type"),
				Span:          Span{Start: node.StartByte(), End: node.EndByte()},
				Docstring:     doc,
			})
		}
	}
	return out
}

func (g *GoParser) functionSignature(node *sitter.Node, content []byte) string {
	body := node.ChildByFieldName("body")
	end := node.EndByte()
	if body != nil {
		end = body.StartByte()
	}
	sig := strings.TrimSpace(string(content[node.StartByte():end]))
	return sig
}

// precedingComment collects the contiguous comment block immediately above
// a declaration, the Go doc-comment convention.
func precedingComment(node *sitter.Node, content []byte) string {
	lines := make([]string, 0)
	prev := node.PrevSibling()
	for prev != nil && prev.Type() == "comment" {
		text := strings.TrimSpace(strings.TrimPrefix(prev.Content(content), "//"))
		lines = append([]string{text}, lines...)
		prev = prev.PrevSibling()
	}
	return strings.Join(lines, "\n")
}

func receiverTypeName(recv string) string {
	recv = strings.Trim(recv, "()")
	fields := strings.Fields(recv)
	if len(fields) == 0 {
		return ""
	}
	name := fields[len(fields)-1]
	name = strings.TrimPrefix(name, "*")
	if idx := strings.Index(name, "["); idx != -1 {
		name = name[:idx]
	}
	return name
}
