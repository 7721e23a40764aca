package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/drizaikin/extraction-be/internal/extraction/domain"
)

// Config tunes the simulated catalog.
type Config struct {
	// Items is the number of documents reachable from any crawl root.
	Items int

	// ItemDelay is how long one extraction takes.
	ItemDelay time.Duration

	// FailureEvery makes every n-th extraction fail with a transient
	// error. Zero disables injected failures.
	FailureEvery int
}

// Simulated is a deterministic synthetic catalog standing in for a live
// crawler integration. Candidates and records are derived from the crawl
// root and the item index, so repeated runs against the same root produce
// the same output.
type Simulated struct {
	cfg Config
}

// NewSimulated creates a simulated source.
func NewSimulated(cfg Config) *Simulated {
	return &Simulated{cfg: cfg}
}

// Open validates the crawl root and starts a traversal at the first item.
func (s *Simulated) Open(ctx context.Context, rootURL string) (Crawl, error) {
	parsed, err := url.Parse(rootURL)
	if err != nil || parsed.Host == "" {
		return nil, domain.NewFatalJobError(fmt.Errorf("unusable crawl root %q", rootURL))
	}

	return &simulatedCrawl{
		cfg:  s.cfg,
		root: strings.TrimRight(rootURL, "/"),
	}, nil
}

type simulatedCrawl struct {
	cfg   Config
	root  string
	index int
}

func (c *simulatedCrawl) Next(ctx context.Context) (*Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if c.index >= c.cfg.Items {
		return nil, ErrExhausted
	}

	c.index++
	return &Candidate{
		URL:   fmt.Sprintf("%s/books/%d", c.root, c.index),
		Title: fmt.Sprintf("Sample Book %d", c.index),
	}, nil
}

func (c *simulatedCrawl) Extract(ctx context.Context, candidate *Candidate) (*Record, error) {
	if c.cfg.ItemDelay > 0 {
		select {
		case <-time.After(c.cfg.ItemDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if c.cfg.FailureEvery > 0 && c.index%c.cfg.FailureEvery == 0 {
		return nil, domain.NewTransientItemError(fmt.Errorf("metadata for %s not available", candidate.URL))
	}

	return &Record{
		Title:    candidate.Title,
		Author:   fmt.Sprintf("Author %d", c.index),
		CoverURL: fmt.Sprintf("%s/covers/%d.jpg", c.root, c.index),
	}, nil
}

func (c *simulatedCrawl) Close() error {
	return nil
}
