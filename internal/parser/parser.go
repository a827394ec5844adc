package parser

import (
	"path/filepath"
	"strings"
)

// LanguageParser defines the interface each supported language implements.
type LanguageParser interface {
	// Language returns the language name (e.g., "python", "go")
	Language() string

	// Extensions returns file extensions this parser handles
	Extensions() []string

	// Parse builds the structural representation of one source file.
	// It returns *ParseError when the content is not valid source.
	Parse(path string, content []byte) (*FileUnit, error)
}

// DocstringSupport is implemented by languages whose files the rewriter can
// splice docstrings into. Languages without it are summarized but skipped
// in docstring mode.
type DocstringSupport interface {
	// FormatDocstring renders docstring text as a source literal, indented
	// for insertion at the given level.
	FormatDocstring(text, indent string) string
}

// Registry holds all registered language parsers.
type Registry struct {
	parsers   map[string]LanguageParser
	extToLang map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		parsers:   make(map[string]LanguageParser),
		extToLang: make(map[string]string),
	}
}

// NewDefaultRegistry returns a registry with all built-in languages.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewPythonParser())
	r.Register(NewGoParser())
	return r
}

func (r *Registry) Register(p LanguageParser) {
	lang := p.Language()
	r.parsers[lang] = p
	for _, ext := range p.Extensions() {
		r.extToLang[ext] = lang
	}
}

// ParserForFile returns the parser handling the file's extension, if any.
func (r *Registry) ParserForFile(filename string) (LanguageParser, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	lang, ok := r.extToLang[ext]
	if !ok {
		return nil, false
	}
	p, ok := r.parsers[lang]
	return p, ok
}

// Supports reports whether any registered language handles the file.
func (r *Registry) Supports(filename string) bool {
	_, ok := r.ParserForFile(filename)
	return ok
}

func qualify(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}
