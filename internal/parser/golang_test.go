package parser

import (
	"reflect"
	"testing"
)

const goFixture = `package store

import "sync"

// Store keeps entries keyed by name.
type Store struct {
	mu      sync.Mutex
	entries map[string]string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]string)}
}

func (s *Store) Get(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[name]
	return v, ok
}
`

func parseGo(t *testing.T, src string) *FileUnit {
	t.Helper()
	fu, err := NewGoParser().Parse("store/store.go", []byte(src))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return fu
}

func TestGoParseStructure(t *testing.T) {
	fu := parseGo(t, goFixture)

	if fu.Language != "go" {
		t.Fatalf("unexpected language %q", fu.Language)
	}
	names := childNames(fu.Root)
	want := []string{"Store", "NewStore", "Get"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("expected children %v, got %v", want, names)
	}

	store := fu.Root.Children[0]
	if store.Kind != NodeClass {
		t.Fatalf("expected struct as class node, got %s", store.Kind)
	}
	if store.Signature != "type Store struct" {
		t.Fatalf("unexpected signature %q", store.Signature)
	}
	if store.Docstring != "Store keeps entries keyed by name." {
		t.Fatalf("doc comment not attached: %q", store.Docstring)
	}
}

func TestGoMethodQualifiedByReceiver(t *testing.T) {
	fu := parseGo(t, goFixture)

	get := fu.Root.Children[2]
	if get.QualifiedName != "Store.Get" {
		t.Fatalf("unexpected qualified name %q", get.QualifiedName)
	}
	if get.Signature != "func (s *Store) Get(name string) (string, bool)" {
		t.Fatalf("unexpected signature %q", get.Signature)
	}
}

func TestGoFunctionDocComment(t *testing.T) {
	fu := parseGo(t, goFixture)

	newStore := fu.Root.Children[1]
	if newStore.Docstring != "NewStore returns an empty store." {
		t.Fatalf("doc comment not attached: %q", newStore.Docstring)
	}
	if newStore.Signature != "func NewStore() *Store" {
		t.Fatalf("unexpected signature %q", newStore.Signature)
	}
}

func TestGoNoDocstringSupport(t *testing.T) {
	var p LanguageParser = NewGoParser()
	if _, ok := p.(DocstringSupport); ok {
		t.Fatal("go files must not be rewritten in place")
	}
}

func TestGoParseErrorOnInvalidSource(t *testing.T) {
	_, err := NewGoParser().Parse("bad.go", []byte("func {\n"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if _, ok := err.(*ParseError); !ok {
		t.Fatalf("expected *ParseError, got %T", err)
	}
}
