// Package summarize drives the external summarization capability for
// exactly the nodes whose fingerprints are not already cached. Repeated
// runs over an unchanged tree issue zero capability calls.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/docsync-dev/docsync/internal/cache"
	"github.com/docsync-dev/docsync/internal/llm"
	"github.com/docsync-dev/docsync/internal/state"
)

// UnavailableMarker is recorded when summarization failed and no previous
// summary exists to fall back to.
const UnavailableMarker = "(summary unavailable)"

// DefaultRetries is the number of additional attempts after a failed
// capability call.
const DefaultRetries = 2

// SummarizationError wraps an external capability failure after retries
// were exhausted.
type SummarizationError struct {
	Path string
	Err  error
}

func (e *SummarizationError) Error() string {
	return fmt.Sprintf("summarization failed for %s: %v", e.Path, e.Err)
}

func (e *SummarizationError) Unwrap() error { return e.Err }

// Degradation records a node whose summary could not be regenerated; the
// run continues with a stale summary or the unavailable marker.
type Degradation struct {
	Path          string
	QualifiedName string
	Reason        string
	Stale         bool
}

// Request identifies one summarization unit. Path and QualifiedName locate
// the node's previous fingerprint for the stale fallback; Structural
// optionally carries child summaries.
type Request struct {
	Fingerprint   string
	Text          string
	Structural    string
	Path          string
	QualifiedName string
}

// Summarizer is safe for concurrent use. Calls are deduplicated per
// fingerprint, so a fingerprint is summarized at most once per run even
// when identical content appears in sibling subtrees.
type Summarizer struct {
	capability llm.Capability
	store      cache.Store
	prev       *state.State
	retries    int
	logger     *logrus.Logger

	group singleflight.Group
	calls atomic.Int64

	mu          sync.Mutex
	degradation []Degradation
	failed      map[string]string // fingerprint -> degraded result, this run
}

func New(capability llm.Capability, store cache.Store, prev *state.State, retries int, logger *logrus.Logger) *Summarizer {
	if retries < 0 {
		retries = 0
	}
	if prev == nil {
		prev = state.NewState()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Summarizer{
		capability: capability,
		store:      store,
		prev:       prev,
		retries:    retries,
		logger:     logger,
		failed:     make(map[string]string),
	}
}

// Calls returns how many Summarize calls reached the external capability.
func (s *Summarizer) Calls() int64 {
	return s.calls.Load()
}

// Degradations returns the nodes that fell back to stale or unavailable
// summaries during this run.
func (s *Summarizer) Degradations() []Degradation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Degradation(nil), s.degradation...)
}

// Summary returns the summary for one fingerprint, consulting the cache
// first. It returns an error only for conditions that must abort the run:
// cache failures, cache consistency violations, and cancellation.
func (s *Summarizer) Summary(ctx context.Context, req Request) (string, error) {
	out, err, _ := s.group.Do(req.Fingerprint, func() (interface{}, error) {
		return s.summarize(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (s *Summarizer) summarize(ctx context.Context, req Request) (string, error) {
	if entry, ok, err := s.store.Get(req.Fingerprint); err != nil {
		return "", err
	} else if ok {
		return entry.Summary, nil
	}

	// A fingerprint that already exhausted its retries this run keeps its
	// degraded result instead of going through the retry cycle again.
	if out, ok := s.degradedResult(req.Fingerprint); ok {
		return out, nil
	}

	summary, callErr := s.callWithRetry(ctx, func(ctx context.Context) (string, error) {
		return s.capability.Summarize(ctx, req.Text, req.Structural)
	})
	if callErr == nil {
		if err := s.store.Put(req.Fingerprint, summary); err != nil {
			return "", err
		}
		return summary, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	// Degraded path: keep the previous summary when the prior run cached
	// one for this node, otherwise mark it unavailable. Neither result is
	// written back under the new fingerprint, so the next run retries.
	s.logger.WithFields(logrus.Fields{
		"path": req.Path,
		"node": req.QualifiedName,
	}).WithError(callErr).Warn("summarization degraded")

	if prevFp, ok := s.prev.NodeFingerprint(req.Path, req.QualifiedName); ok {
		if entry, found, err := s.store.Get(prevFp); err != nil {
			return "", err
		} else if found {
			return s.degrade(req, callErr, true, entry.Summary), nil
		}
	}
	return s.degrade(req, callErr, false, UnavailableMarker), nil
}

// CachedSummary returns the cached summary for a fingerprint without ever
// invoking the capability.
func (s *Summarizer) CachedSummary(fingerprint string) (string, bool, error) {
	entry, ok, err := s.store.Get(fingerprint)
	if err != nil {
		return "", false, err
	}
	return entry.Summary, ok, nil
}

// Docstring generates replacement docstring text with the same bounded
// retry policy. There is no degraded result: the caller keeps the old
// docstring on error.
func (s *Summarizer) Docstring(ctx context.Context, signature, body, existing string) (string, error) {
	out, err := s.callWithRetry(ctx, func(ctx context.Context) (string, error) {
		return s.capability.GenerateDocstring(ctx, signature, body, existing)
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &SummarizationError{Err: err}
	}
	return out, nil
}

func (s *Summarizer) callWithRetry(ctx context.Context, call func(context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if attempt > 0 {
			if err := sleepCtx(ctx, backoff(attempt)); err != nil {
				return "", err
			}
		}

		s.calls.Add(1)
		out, err := call(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
	}
	return "", lastErr
}

// degrade records the degradation once and memoizes the result, so the
// fingerprint is not retried (and the warning not duplicated) when a later
// phase asks for the same summary.
func (s *Summarizer) degrade(req Request, err error, stale bool, result string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.degradation = append(s.degradation, Degradation{
		Path:          req.Path,
		QualifiedName: req.QualifiedName,
		Reason:        err.Error(),
		Stale:         stale,
	})
	s.failed[req.Fingerprint] = result
	return result
}

func (s *Summarizer) degradedResult(fingerprint string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.failed[fingerprint]
	return out, ok
}

func backoff(attempt int) time.Duration {
	return time.Duration(attempt) * 500 * time.Millisecond
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
