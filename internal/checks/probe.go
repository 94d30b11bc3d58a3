package checks

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/visibleai/siteaudit/internal/analysis"
)

// Probe gives checks access to the target. The main document is fetched and
// parsed at most once per probe and shared by every document-based check in
// the run; auxiliary fetches (robots.txt, llms.txt, sitemap, timed probes)
// go through Fetch uncached.
type Probe struct {
	fetcher analysis.Fetcher
	target  analysis.Target

	mu      sync.Mutex
	fetched bool
	resp    analysis.FetchResponse
	doc     *goquery.Document
	err     error
}

// NewProbe constructs a Probe for one run.
func NewProbe(fetcher analysis.Fetcher, target analysis.Target) *Probe {
	return &Probe{fetcher: fetcher, target: target}
}

// Target returns the read-only target under analysis.
func (p *Probe) Target() analysis.Target { return p.target }

// Fetch performs an uncached GET of url.
func (p *Probe) Fetch(ctx context.Context, url string) (analysis.FetchResponse, error) {
	return p.fetcher.Fetch(ctx, url)
}

// Page returns the cached target document and its fetch metadata, fetching
// on first use. A failed or non-2xx fetch is cached too, so every
// document-based check in the run observes the same outcome.
func (p *Probe) Page(ctx context.Context) (analysis.FetchResponse, *goquery.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fetched {
		return p.resp, p.doc, p.err
	}
	p.fetched = true
	resp, err := p.fetcher.Fetch(ctx, p.target.URL)
	if err != nil {
		p.err = err
		return p.resp, nil, p.err
	}
	p.resp = resp
	if resp.StatusCode >= 400 {
		p.err = fmt.Errorf("target returned status %d", resp.StatusCode)
		return p.resp, nil, p.err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		p.err = fmt.Errorf("parse target document: %w", err)
		return p.resp, nil, p.err
	}
	p.doc = doc
	return p.resp, p.doc, nil
}

// Document returns the cached goquery document for the target page.
func (p *Probe) Document(ctx context.Context) (*goquery.Document, error) {
	_, doc, err := p.Page(ctx)
	return doc, err
}
