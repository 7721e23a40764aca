// Package source defines the crawl capability extraction workers drive. A
// Source knows how to discover documents under a crawl root and pull
// bibliographic metadata out of them; the orchestrator only sequences the
// traversal and never parses anything itself.
package source

import (
	"context"
	"errors"
)

// ErrExhausted signals that a crawl has no more candidates.
var ErrExhausted = errors.New("source exhausted")

// Candidate is one discovered document reference, not yet extracted.
type Candidate struct {
	URL   string
	Title string
}

// Record is the bibliographic metadata extracted from a candidate.
type Record struct {
	Title    string
	Author   string
	CoverURL string
}

// Source opens crawls against a root URL. Open returns a FatalJobError when
// the root itself is unusable.
type Source interface {
	Open(ctx context.Context, rootURL string) (Crawl, error)
}

// Crawl is one traversal of a source. Not safe for concurrent use; each
// worker owns exactly one.
type Crawl interface {
	// Next returns the next candidate, or ErrExhausted when none remain.
	Next(ctx context.Context) (*Candidate, error)

	// Extract pulls the bibliographic record for a candidate. Failures
	// scoped to the candidate are reported as TransientItemError.
	Extract(ctx context.Context, candidate *Candidate) (*Record, error)

	Close() error
}
