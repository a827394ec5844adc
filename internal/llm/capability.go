// Package llm holds the external summarization capability the sync engine
// delegates to. The engine treats it as opaque: what the model says is not
// this module's concern, only that identical inputs are interchangeable.
package llm

import "context"

// Capability is the contract consumed by the engine.
type Capability interface {
	// Summarize returns a natural-language summary of text. structural
	// optionally carries context such as child summaries.
	Summarize(ctx context.Context, text, structural string) (string, error)

	// GenerateDocstring returns replacement docstring text for a node,
	// given its signature, body and any prior docstring. The result uses
	// the target language's docstring conventions, without quoting.
	GenerateDocstring(ctx context.Context, signature, body, existing string) (string, error)
}
