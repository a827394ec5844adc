// Package driver orchestrates one synchronization run: walk, change
// detection, summarization, aggregation, optional docstring rewriting,
// and persistence.
package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/docsync-dev/docsync/internal/cache"
	"github.com/docsync-dev/docsync/internal/config"
	"github.com/docsync-dev/docsync/internal/fileutil"
	"github.com/docsync-dev/docsync/internal/fingerprint"
	"github.com/docsync-dev/docsync/internal/ignore"
	"github.com/docsync-dev/docsync/internal/llm"
	"github.com/docsync-dev/docsync/internal/parser"
	"github.com/docsync-dev/docsync/internal/rewrite"
	"github.com/docsync-dev/docsync/internal/state"
	"github.com/docsync-dev/docsync/internal/summarize"
	"github.com/docsync-dev/docsync/internal/tree"
)

// Phase is the driver's position in its run state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseWalking
	PhaseSummarizing
	PhaseAggregating
	PhaseRewriting
	PhasePersisting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseWalking:
		return "walking"
	case PhaseSummarizing:
		return "summarizing"
	case PhaseAggregating:
		return "aggregating"
	case PhaseRewriting:
		return "rewriting"
	case PhasePersisting:
		return "persisting"
	default:
		return "unknown"
	}
}

// Status is the run outcome reported to the caller.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial-success"
)

// Warning is one accumulated non-fatal problem.
type Warning struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"` // parse, summarize, rewrite, write
	Message string `json:"message"`
}

// Options configures one run. Store and Capability are injected so tests
// can substitute fakes.
type Options struct {
	Root        string
	Docstrings  bool // also rewrite per-node docstrings in place
	DryRun      bool // no file writes, no persistence
	Concurrency int
	Retries     int // zero picks the default budget, negative disables retrying
	ChunkBytes  int

	Registry   *parser.Registry
	Matcher    *ignore.Matcher
	Store      cache.Store
	Capability llm.Capability
	Logger     *logrus.Logger
}

// Report is what a run hands back: which files were processed, which were
// skipped and why, and whether the artifacts were persisted.
type Report struct {
	Status      Status    `json:"status"`
	Processed   []string  `json:"processed"`
	Warnings    []Warning `json:"warnings,omitempty"`
	Rewritten   []string  `json:"rewritten,omitempty"`
	Calls       int64     `json:"capability_calls"`
	Persisted   bool      `json:"persisted"`
	RootSummary string    `json:"-"`
}

// Run executes one synchronization pass. Tree-walk failures and cache
// consistency violations abort with an error and nothing persisted;
// per-file and per-node failures degrade into Report.Warnings.
func Run(ctx context.Context, opts Options) (*Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	if opts.Registry == nil {
		opts.Registry = parser.NewDefaultRegistry()
	}
	if opts.Matcher == nil {
		rules, err := ignore.LoadRules(opts.Root)
		if err != nil {
			return nil, fmt.Errorf("failed to load ignore rules: %w", err)
		}
		opts.Matcher = ignore.NewMatcher(rules)
	}

	r := &runner{opts: opts, logger: logger, phase: PhaseIdle}
	defer r.setPhase(PhaseIdle)
	return r.run(ctx)
}

type runner struct {
	opts   Options
	logger *logrus.Logger
	phase  Phase

	report Report
}

func (r *runner) setPhase(p Phase) {
	r.phase = p
	r.logger.WithField("phase", p.String()).Debug("phase transition")
}

func (r *runner) warn(path, kind, message string) {
	r.report.Warnings = append(r.report.Warnings, Warning{Path: path, Kind: kind, Message: message})
	r.logger.WithFields(logrus.Fields{"path": path, "kind": kind}).Warn(message)
}

func (r *runner) run(ctx context.Context) (*Report, error) {
	docsyncDir := filepath.Join(r.opts.Root, config.DocsyncDir)
	prev, err := state.Load(docsyncDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	// Walking: no partial-success mode, the documentation must reflect
	// one consistent snapshot of the tree.
	r.setPhase(PhaseWalking)
	walker := tree.NewWalker(r.opts.Registry, r.opts.Matcher)
	root, skipped, err := walker.Build(r.opts.Root)
	if err != nil {
		return nil, err
	}
	for _, skip := range skipped {
		r.warn(skip.Path, "parse", skip.Reason)
	}

	summarizer := summarize.New(r.opts.Capability, r.opts.Store, prev, retryBudget(r.opts.Retries), r.logger)
	aggregator := tree.NewAggregator(summarizer, r.opts.Concurrency, r.opts.ChunkBytes)
	files := tree.Files(root)
	for _, file := range files {
		r.report.Processed = append(r.report.Processed, file.Rel)
	}

	r.setPhase(PhaseSummarizing)
	if err := r.summarizeFiles(ctx, aggregator, files); err != nil {
		return r.finish(summarizer, err)
	}

	r.setPhase(PhaseAggregating)
	rootSummary, err := aggregator.Aggregate(ctx, root)
	if err != nil {
		return r.finish(summarizer, err)
	}
	r.report.RootSummary = rootSummary

	if r.opts.Docstrings {
		r.setPhase(PhaseRewriting)
		if err := r.rewriteFiles(ctx, summarizer, prev, files); err != nil {
			return r.finish(summarizer, err)
		}
	}

	r.setPhase(PhasePersisting)
	if ctx.Err() == nil && !r.opts.DryRun {
		if err := r.persist(docsyncDir, root, files, rootSummary); err != nil {
			return r.finish(summarizer, err)
		}
		r.report.Persisted = true
	}

	return r.finish(summarizer, nil)
}

// retryBudget maps Options.Retries the same way the other zero-valued
// options map: zero means the default, negative disables retrying.
func retryBudget(opt int) int {
	switch {
	case opt == 0:
		return summarize.DefaultRetries
	case opt < 0:
		return 0
	default:
		return opt
	}
}

func (r *runner) summarizeFiles(ctx context.Context, aggregator *tree.Aggregator, files []*tree.FileNode) error {
	concurrency := r.opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, file := range files {
		g.Go(func() error {
			return aggregator.SummarizeFileNodes(gctx, file)
		})
	}
	return g.Wait()
}

func (r *runner) rewriteFiles(ctx context.Context, summarizer *summarize.Summarizer, prev *state.State, files []*tree.FileNode) error {
	// One rewrite pass per file, sequential: byte-offset splicing must
	// never race with another writer of the same file.
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		langParser, ok := r.opts.Registry.ParserForFile(file.Rel)
		if !ok {
			continue
		}
		support, ok := langParser.(parser.DocstringSupport)
		if !ok {
			r.warn(file.Rel, "rewrite", fmt.Sprintf("docstring rewriting not supported for %s", langParser.Language()))
			continue
		}

		docstrings, err := r.generateDocstrings(ctx, summarizer, prev, file)
		if err != nil {
			return err
		}
		if len(docstrings) == 0 {
			continue
		}

		out, unplaceable, err := rewrite.File(file.File, docstrings, support.FormatDocstring)
		if err != nil {
			var conflict *rewrite.ConflictError
			if errors.As(err, &conflict) {
				r.warn(file.Rel, "rewrite", conflict.Error())
				continue
			}
			return err
		}
		for _, qual := range unplaceable {
			r.warn(file.Rel, "rewrite", fmt.Sprintf("no insertion point for docstring of %s", qual))
		}

		if r.opts.DryRun {
			continue
		}
		absPath := filepath.Join(r.opts.Root, file.Rel)
		perm := os.FileMode(0644)
		if info, err := os.Stat(absPath); err == nil {
			perm = info.Mode().Perm()
		}
		if err := fileutil.WriteAtomic(absPath, out, perm); err != nil {
			r.warn(file.Rel, "write", err.Error())
			continue
		}

		// Node fingerprints exclude docstring literals, so only the
		// file-level fingerprint moves with the rewritten bytes.
		file.File.RawText = out
		file.File.Fingerprint = fingerprint.Content(out)
		r.report.Rewritten = append(r.report.Rewritten, file.Rel)
	}
	return nil
}

// generateDocstrings produces replacement docstrings for the nodes of one
// file that changed since the previous run or never had a docstring.
func (r *runner) generateDocstrings(ctx context.Context, summarizer *summarize.Summarizer, prev *state.State, file *tree.FileNode) (map[string]string, error) {
	targets := make([]*parser.SourceNode, 0)
	file.File.Root.Walk(func(n *parser.SourceNode) {
		prevFp, known := prev.NodeFingerprint(file.Rel, n.QualifiedName)
		if known && prevFp == n.Fingerprint && n.Docstring != "" {
			return
		}
		targets = append(targets, n)
	})

	docstrings := make(map[string]string, len(targets))
	for _, node := range targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := summarizer.Docstring(ctx, node.Signature, string(node.Text(file.File.RawText)), node.Docstring)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			r.warn(file.Rel, "summarize", fmt.Sprintf("docstring generation failed for %s: %v", node.QualifiedName, err))
			continue
		}
		docstrings[node.QualifiedName] = text
	}
	return docstrings, nil
}

func (r *runner) persist(docsyncDir string, root *tree.DirNode, files []*tree.FileNode, rootSummary string) error {
	summaryPath := filepath.Join(r.opts.Root, config.SummaryFile)
	doc := fileutil.EnsureTrailingNewline(rootSummary)
	if err := fileutil.WriteAtomic(summaryPath, []byte(doc), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", config.SummaryFile, err)
	}

	next := state.NewState()
	next.RootFingerprint = root.Fingerprint
	for _, file := range files {
		nodes := make(map[string]string)
		file.File.Root.Walk(func(n *parser.SourceNode) {
			nodes[n.QualifiedName] = n.Fingerprint
		})
		next.SetFileData(file.Rel, file.File.Language, file.File.Fingerprint, nodes)
	}
	if err := next.Save(docsyncDir); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

func (r *runner) finish(summarizer *summarize.Summarizer, err error) (*Report, error) {
	r.report.Calls = summarizer.Calls()
	if err != nil {
		return nil, err
	}

	for _, deg := range summarizer.Degradations() {
		kind := "summarize"
		msg := fmt.Sprintf("summary unavailable for %s: %s", deg.QualifiedName, deg.Reason)
		if deg.Stale {
			msg = fmt.Sprintf("kept stale summary for %s: %s", deg.QualifiedName, deg.Reason)
		}
		r.report.Warnings = append(r.report.Warnings, Warning{Path: deg.Path, Kind: kind, Message: msg})
	}

	r.report.Status = StatusSuccess
	if len(r.report.Warnings) > 0 {
		r.report.Status = StatusPartial
	}
	return &r.report, nil
}

// LiveFingerprints collects every fingerprint present in the current tree:
// node fingerprints plus directory fingerprints. It feeds cache pruning.
func LiveFingerprints(unit tree.Unit) map[string]bool {
	live := make(map[string]bool)
	collectLive(unit, live)
	return live
}

func collectLive(unit tree.Unit, live map[string]bool) {
	switch u := unit.(type) {
	case *tree.FileNode:
		u.File.Root.Walk(func(n *parser.SourceNode) {
			live[n.Fingerprint] = true
		})
	case *tree.DirNode:
		live[u.Fingerprint] = true
		for _, child := range u.Children {
			collectLive(child, live)
		}
	}
}

// LoadWalker builds the default walker for a project root, honoring its
// .docsyncignore rules.
func LoadWalker(rootPath string, registry *parser.Registry) (*tree.Walker, error) {
	rules, err := ignore.LoadRules(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load ignore rules: %w", err)
	}
	if registry == nil {
		registry = parser.NewDefaultRegistry()
	}
	return tree.NewWalker(registry, ignore.NewMatcher(rules)), nil
}
