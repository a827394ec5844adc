package tree

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/docsync-dev/docsync/internal/fingerprint"
	"github.com/docsync-dev/docsync/internal/parser"
	"github.com/docsync-dev/docsync/internal/summarize"
)

// DefaultChunkBytes bounds how much concatenated child-summary text goes
// into one roll-up prompt before it is summarized in chunks first.
const DefaultChunkBytes = 48 * 1024

// Aggregator merges child summaries into parent summaries bottom-up.
// Sibling subtrees run concurrently; a parent's roll-up never starts until
// every child has finished.
type Aggregator struct {
	summarizer *summarize.Summarizer
	limit      int
	chunkBytes int
}

func NewAggregator(summarizer *summarize.Summarizer, limit, chunkBytes int) *Aggregator {
	if limit <= 0 {
		limit = 4
	}
	if chunkBytes <= 0 {
		chunkBytes = DefaultChunkBytes
	}
	return &Aggregator{summarizer: summarizer, limit: limit, chunkBytes: chunkBytes}
}

// Aggregate produces the summary for a unit, recursively aggregating
// children first.
func (a *Aggregator) Aggregate(ctx context.Context, unit Unit) (string, error) {
	switch u := unit.(type) {
	case *FileNode:
		return a.aggregateFile(ctx, u)
	case *DirNode:
		return a.aggregateDir(ctx, u)
	default:
		return "", fmt.Errorf("unknown unit type %T", unit)
	}
}

// SummarizeFileNodes warms the cache for every node in a file, bottom-up.
// It is what the driver fans out across files during the summarizing
// phase; the later aggregation pass then finds every node summary cached.
func (a *Aggregator) SummarizeFileNodes(ctx context.Context, file *FileNode) error {
	_, err := a.nodeSummary(ctx, file.Rel, file.File.RawText, file.File.Root)
	return err
}

func (a *Aggregator) aggregateFile(ctx context.Context, file *FileNode) (string, error) {
	return a.nodeSummary(ctx, file.Rel, file.File.RawText, file.File.Root)
}

// nodeSummary summarizes one source node, post-order: children first, then
// the node itself with its children's summaries as structural context. The
// module node's summary therefore already is the file-level roll-up.
func (a *Aggregator) nodeSummary(ctx context.Context, rel string, content []byte, node *parser.SourceNode) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	childSummaries := make([]string, 0, len(node.Children))
	for _, child := range node.Children {
		summary, err := a.nodeSummary(ctx, rel, content, child)
		if err != nil {
			return "", err
		}
		childSummaries = append(childSummaries, fmt.Sprintf("%s %s:\n%s", child.Kind, child.QualifiedName, summary))
	}

	return a.summarizer.Summary(ctx, summarize.Request{
		Fingerprint:   node.Fingerprint,
		Text:          string(node.OwnText(content)),
		Structural:    strings.Join(childSummaries, "\n\n"),
		Path:          rel,
		QualifiedName: node.QualifiedName,
	})
}

func (a *Aggregator) aggregateDir(ctx context.Context, dir *DirNode) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// A cached roll-up means the whole subtree is unchanged since the run
	// that produced it; skip the descent and any chunk reduction. Chunk
	// entries are keyed by chunk content and may have been pruned, so the
	// directory fingerprint is the entry that has to carry an unchanged
	// tree across runs.
	if summary, ok, err := a.summarizer.CachedSummary(dir.Fingerprint); err != nil {
		return "", err
	} else if ok {
		return summary, nil
	}

	summaries := make([]string, len(dir.Children))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.limit)
	for i, child := range dir.Children {
		g.Go(func() error {
			summary, err := a.Aggregate(gctx, child)
			if err != nil {
				return err
			}
			summaries[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	parts := make([]string, 0, len(dir.Children))
	for i, child := range dir.Children {
		label := "FILE"
		if _, ok := child.(*DirNode); ok {
			label = "DIR"
		}
		parts = append(parts, fmt.Sprintf("%s: %s\nSUMMARY:\n%s", label, child.RelPath(), summaries[i]))
	}

	combined := strings.Join(parts, "\n\n")
	combined, err := a.reduceOversized(ctx, dir.Rel, combined)
	if err != nil {
		return "", err
	}

	return a.summarizer.Summary(ctx, summarize.Request{
		Fingerprint:   dir.Fingerprint,
		Text:          combined,
		Path:          dir.Rel,
		QualifiedName: parser.ModuleName,
	})
}

// reduceOversized summarizes oversized roll-up input chunk by chunk until
// it fits the prompt budget, the way a large directory of summaries is
// condensed before the final roll-up.
func (a *Aggregator) reduceOversized(ctx context.Context, rel, combined string) (string, error) {
	for len(combined) > a.chunkBytes {
		chunks := chunkString(combined, a.chunkBytes)
		reduced := make([]string, 0, len(chunks))
		for _, chunk := range chunks {
			summary, err := a.summarizer.Summary(ctx, summarize.Request{
				Fingerprint: fingerprint.Content([]byte(chunk)),
				Text:        chunk,
				Path:        rel,
			})
			if err != nil {
				return "", err
			}
			reduced = append(reduced, summary)
		}
		next := strings.Join(reduced, "\n\n")
		if len(next) >= len(combined) {
			break
		}
		combined = next
	}
	return combined, nil
}

func chunkString(s string, size int) []string {
	chunks := make([]string, 0, len(s)/size+1)
	for len(s) > size {
		chunks = append(chunks, s[:size])
		s = s[size:]
	}
	if len(s) > 0 {
		chunks = append(chunks, s)
	}
	return chunks
}
