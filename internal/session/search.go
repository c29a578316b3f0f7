package session

import (
	"context"
	"strings"

	"github.com/justyntemme/pagemark/pkg/models"
)

// PageSize is the number of search results requested per page
const PageSize = 20

// Request is a search page to fetch from the renderer. Epoch identifies
// the query it belongs to; replies for an older epoch are dropped.
type Request struct {
	Term     string
	Page     int
	PageSize int
	Epoch    uint64
}

// Pager accumulates search results page by page
type Pager struct {
	term      string
	page      int
	results   []models.SearchResult
	total     int
	searching bool
	epoch     uint64

	// ctx is cancelled when the query is reset
	ctx    context.Context
	cancel context.CancelFunc
}

// NewPager returns an empty pager
func NewPager() *Pager {
	return &Pager{}
}

// Submit starts a new query and returns the request for its first page.
// Blank terms clear the state without issuing anything.
func (p *Pager) Submit(term string) (Request, bool) {
	p.Reset()
	p.term = strings.TrimSpace(term)
	if p.term == "" {
		return Request{}, false
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.page = 1
	p.searching = true
	return p.request(), true
}

// FetchMore returns the request for the next page, if one should be issued
func (p *Pager) FetchMore() (Request, bool) {
	if p.searching || len(p.results) == 0 || p.Exhausted() {
		return Request{}, false
	}
	p.page++
	p.searching = true
	return p.request(), true
}

func (p *Pager) request() Request {
	return Request{Term: p.term, Page: p.page, PageSize: PageSize, Epoch: p.epoch}
}

// Receive appends a page of results. It reports false when the reply
// belongs to a query that has since been reset.
func (p *Pager) Receive(epoch uint64, res models.SearchResults) bool {
	if epoch != p.epoch || !p.searching {
		return false
	}
	p.results = append(p.results, res.Results...)
	p.total = res.TotalResults
	p.searching = false
	return true
}

// Fail ends the in-flight request. The page counter is rolled back so the
// same page is requested again by the next FetchMore.
func (p *Pager) Fail(epoch uint64) bool {
	if epoch != p.epoch || !p.searching {
		return false
	}
	p.searching = false
	if p.page > 1 {
		p.page--
	}
	return true
}

// Reset clears all query state and invalidates in-flight requests
func (p *Pager) Reset() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.epoch++
	p.term = ""
	p.page = 0
	p.results = nil
	p.total = 0
	p.searching = false
}

// Context is done once the current query is reset or replaced. Searches
// for the query's requests should run under it.
func (p *Pager) Context() context.Context {
	if p.ctx == nil {
		return context.Background()
	}
	return p.ctx
}

// Exhausted reports whether every result of the query has been received
func (p *Pager) Exhausted() bool {
	return p.term != "" && !p.searching && len(p.results) >= p.total
}

func (p *Pager) Term() string { return p.term }
func (p *Pager) Page() int { return p.page }
func (p *Pager) Total() int { return p.total }
func (p *Pager) Searching() bool { return p.searching }
func (p *Pager) Epoch() uint64 { return p.epoch }
func (p *Pager) Len() int { return len(p.results) }

// Results returns a copy of the accumulated results
func (p *Pager) Results() []models.SearchResult {
	return append([]models.SearchResult(nil), p.results...)
}
