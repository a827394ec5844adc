package summarize

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/docsync-dev/docsync/internal/cache"
	"github.com/docsync-dev/docsync/internal/state"
)

// stubCapability counts calls and can fail a configurable number of times
// before succeeding.
type stubCapability struct {
	mu        sync.Mutex
	calls     int
	failFirst int
	failAll   bool
}

func (c *stubCapability) Summarize(ctx context.Context, text, structural string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.failAll || c.calls <= c.failFirst {
		return "", errors.New("capability unavailable")
	}
	return "summary of: " + text, nil
}

func (c *stubCapability) GenerateDocstring(ctx context.Context, signature, body, existing string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.failAll || c.calls <= c.failFirst {
		return "", errors.New("capability unavailable")
	}
	return "Documents " + signature + ".", nil
}

func (c *stubCapability) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func newTestSummarizer(capability *stubCapability, store cache.Store, prev *state.State) *Summarizer {
	return New(capability, store, prev, 0, nil)
}

func TestSummaryCachesResult(t *testing.T) {
	capability := &stubCapability{}
	store := cache.NewMemoryStore()
	s := newTestSummarizer(capability, store, nil)
	ctx := context.Background()

	req := Request{Fingerprint: "fp1", Text: "def f(): return 1", Path: "a.py", QualifiedName: "f"}
	first, err := s.Summary(ctx, req)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	second, err := s.Summary(ctx, req)
	if err != nil {
		t.Fatalf("second summary failed: %v", err)
	}
	if first != second {
		t.Fatalf("cached summary differs: %q vs %q", first, second)
	}
	if capability.callCount() != 1 {
		t.Fatalf("expected 1 capability call, got %d", capability.callCount())
	}
	if s.Calls() != 1 {
		t.Fatalf("expected 1 counted call, got %d", s.Calls())
	}
}

func TestSummaryCacheFirstNoCalls(t *testing.T) {
	capability := &stubCapability{failAll: true}
	store := cache.NewMemoryStore()
	if err := store.Put("fp1", "already cached"); err != nil {
		t.Fatalf("seed put failed: %v", err)
	}
	s := newTestSummarizer(capability, store, nil)

	out, err := s.Summary(context.Background(), Request{Fingerprint: "fp1", Text: "body"})
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if out != "already cached" {
		t.Fatalf("expected cached value, got %q", out)
	}
	if capability.callCount() != 0 {
		t.Fatalf("cached fingerprint still reached the capability: %d calls", capability.callCount())
	}
}

func TestSummaryRetriesThenSucceeds(t *testing.T) {
	capability := &stubCapability{failFirst: 1}
	store := cache.NewMemoryStore()
	s := New(capability, store, nil, 2, nil)

	out, err := s.Summary(context.Background(), Request{Fingerprint: "fp1", Text: "body"})
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if out != "summary of: body" {
		t.Fatalf("unexpected summary %q", out)
	}
	if capability.callCount() != 2 {
		t.Fatalf("expected 2 calls, got %d", capability.callCount())
	}
	if len(s.Degradations()) != 0 {
		t.Fatalf("unexpected degradations: %v", s.Degradations())
	}
}

func TestSummaryStaleFallback(t *testing.T) {
	capability := &stubCapability{failAll: true}
	store := cache.NewMemoryStore()
	if err := store.Put("oldfp", "previous summary"); err != nil {
		t.Fatalf("seed put failed: %v", err)
	}
	prev := state.NewState()
	prev.SetFileData("a.py", "python", "filefp", map[string]string{"f": "oldfp"})
	s := newTestSummarizer(capability, store, prev)

	out, err := s.Summary(context.Background(), Request{
		Fingerprint:   "newfp",
		Text:          "changed body",
		Path:          "a.py",
		QualifiedName: "f",
	})
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if out != "previous summary" {
		t.Fatalf("expected stale fallback, got %q", out)
	}

	// The stale value must not be cached under the new fingerprint, so the
	// next run retries generation.
	if _, found, _ := store.Get("newfp"); found {
		t.Fatal("stale summary was cached under the new fingerprint")
	}

	degs := s.Degradations()
	if len(degs) != 1 || !degs[0].Stale {
		t.Fatalf("expected one stale degradation, got %v", degs)
	}

	// The stale result is memoized for the rest of the run.
	callsAfterFirst := capability.callCount()
	again, err := s.Summary(context.Background(), Request{
		Fingerprint:   "newfp",
		Text:          "changed body",
		Path:          "a.py",
		QualifiedName: "f",
	})
	if err != nil || again != "previous summary" {
		t.Fatalf("memoized stale result lost: %q, %v", again, err)
	}
	if capability.callCount() != callsAfterFirst {
		t.Fatal("memoized fingerprint reached the capability again")
	}
	if len(s.Degradations()) != 1 {
		t.Fatalf("degradation recorded twice: %v", s.Degradations())
	}
}

func TestSummaryFailedFingerprintRetriedOncePerRun(t *testing.T) {
	capability := &stubCapability{failAll: true}
	s := New(capability, cache.NewMemoryStore(), nil, 1, nil)
	ctx := context.Background()

	req := Request{Fingerprint: "fp1", Text: "body", Path: "a.py", QualifiedName: "f"}
	first, err := s.Summary(ctx, req)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	cycle := capability.callCount()
	if cycle != 2 {
		t.Fatalf("expected one attempt plus one retry, got %d calls", cycle)
	}

	// Asking again for the same fingerprint (e.g. during aggregation) must
	// reuse the degraded result, not restart the retry cycle.
	second, err := s.Summary(ctx, req)
	if err != nil {
		t.Fatalf("second summary failed: %v", err)
	}
	if second != first {
		t.Fatalf("degraded result changed: %q vs %q", second, first)
	}
	if capability.callCount() != cycle {
		t.Fatalf("failed fingerprint retried again: %d extra calls", capability.callCount()-cycle)
	}
	if degs := s.Degradations(); len(degs) != 1 {
		t.Fatalf("expected a single degradation, got %v", degs)
	}
}

func TestSummaryUnavailableMarker(t *testing.T) {
	capability := &stubCapability{failAll: true}
	s := newTestSummarizer(capability, cache.NewMemoryStore(), nil)

	out, err := s.Summary(context.Background(), Request{Fingerprint: "fp1", Text: "body", Path: "a.py", QualifiedName: "f"})
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if out != UnavailableMarker {
		t.Fatalf("expected unavailable marker, got %q", out)
	}
	degs := s.Degradations()
	if len(degs) != 1 || degs[0].Stale {
		t.Fatalf("expected one non-stale degradation, got %v", degs)
	}
}

func TestSummaryDeduplicatesConcurrentRequests(t *testing.T) {
	capability := &stubCapability{}
	s := newTestSummarizer(capability, cache.NewMemoryStore(), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := s.Summary(ctx, Request{Fingerprint: "shared", Text: "body"})
			if err != nil {
				t.Errorf("summary failed: %v", err)
				return
			}
			results[i] = out
		}(i)
	}
	wg.Wait()

	for _, out := range results {
		if out != results[0] {
			t.Fatalf("concurrent results diverged: %v", results)
		}
	}
	if capability.callCount() != 1 {
		t.Fatalf("expected a single capability call, got %d", capability.callCount())
	}
}

func TestSummaryCancellationAborts(t *testing.T) {
	capability := &stubCapability{}
	s := newTestSummarizer(capability, cache.NewMemoryStore(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Summary(ctx, Request{Fingerprint: "fp1", Text: "body"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if capability.callCount() != 0 {
		t.Fatalf("cancelled request still reached the capability: %d calls", capability.callCount())
	}
}

func TestSummaryConsistencyViolationAborts(t *testing.T) {
	capability := &stubCapability{}
	s := newTestSummarizer(capability, &conflictStore{inner: cache.NewMemoryStore()}, nil)

	_, err := s.Summary(context.Background(), Request{Fingerprint: "fp1", Text: "body"})
	var consistency *cache.ConsistencyError
	if !errors.As(err, &consistency) {
		t.Fatalf("expected ConsistencyError, got %v", err)
	}
}

// conflictStore misses every Get and rejects every Put, simulating a
// concurrent writer racing the same fingerprint to a different value.
type conflictStore struct {
	inner cache.Store
}

func (c *conflictStore) Get(fingerprint string) (cache.Entry, bool, error) {
	return cache.Entry{}, false, nil
}

func (c *conflictStore) Put(fingerprint, summary string) error {
	return &cache.ConsistencyError{Fingerprint: fingerprint}
}

func (c *conflictStore) Prune(live map[string]bool) (int, error) { return c.inner.Prune(live) }
func (c *conflictStore) Close() error                            { return c.inner.Close() }

func TestDocstringRetries(t *testing.T) {
	capability := &stubCapability{failFirst: 1}
	s := New(capability, cache.NewMemoryStore(), nil, 2, nil)

	out, err := s.Docstring(context.Background(), "def f(a)", "return a", "")
	if err != nil {
		t.Fatalf("docstring failed: %v", err)
	}
	if out != "Documents def f(a)." {
		t.Fatalf("unexpected docstring %q", out)
	}
}

func TestDocstringExhaustedRetriesErrors(t *testing.T) {
	capability := &stubCapability{failAll: true}
	s := newTestSummarizer(capability, cache.NewMemoryStore(), nil)

	_, err := s.Docstring(context.Background(), "def f(a)", "return a", "")
	var sumErr *SummarizationError
	if !errors.As(err, &sumErr) {
		t.Fatalf("expected SummarizationError, got %v", err)
	}
}

func TestDegradationsAreCopied(t *testing.T) {
	capability := &stubCapability{failAll: true}
	s := newTestSummarizer(capability, cache.NewMemoryStore(), nil)

	for i := 0; i < 3; i++ {
		req := Request{Fingerprint: fmt.Sprintf("fp%d", i), Text: "body", Path: "a.py", QualifiedName: fmt.Sprintf("f%d", i)}
		if _, err := s.Summary(context.Background(), req); err != nil {
			t.Fatalf("summary failed: %v", err)
		}
	}
	degs := s.Degradations()
	if len(degs) != 3 {
		t.Fatalf("expected 3 degradations, got %d", len(degs))
	}
	degs[0].Path = "mutated"
	if s.Degradations()[0].Path == "mutated" {
		t.Fatal("Degradations returned a shared slice")
	}
}
