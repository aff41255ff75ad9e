// Package listing implements the paginated article list behind the home
// screen: a page cursor, an end-of-data flag and a single in-flight fetch.
package listing

import (
	"context"
	"sync"

	"github.com/pders01/chronicle/internal/debuglog"
	"github.com/pders01/chronicle/internal/gateway"
	"github.com/pders01/chronicle/internal/uistate"
)

const (
	DefaultPageSize          = 20
	DefaultPrefetchThreshold = 4

	loadFailedMessage = "Failed to load articles"
)

// Source fetches one page of articles.
type Source interface {
	ListArticles(ctx context.Context, opts gateway.ListOptions) ([]gateway.Article, error)
}

// Sink receives every fetched page, e.g. the offline cache.
type Sink interface {
	Add(articles []gateway.Article) error
}

type Options struct {
	PageSize          int
	PrefetchThreshold int
	Query             string
	Sink              Sink
}

type Outcome int

const (
	// Skipped: the guard refused the call (end of data or a fetch in flight).
	Skipped Outcome = iota
	// Replaced: a reset fetch replaced the list.
	Replaced
	// Appended: a page was appended.
	Appended
	// Failed: the fetch returned an error.
	Failed
	// Stale: a reset happened while this fetch was in flight; its result was dropped.
	Stale
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Replaced:
		return "replaced"
	case Appended:
		return "appended"
	case Failed:
		return "failed"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

type Result struct {
	Outcome Outcome
	Page    int // page that was requested
	Fetched int // items in the response
	Added   int // items that were new to the list
	Err     error
}

type Stats struct {
	Fetches    int
	Failures   int
	Duplicates int
}

// Snapshot is a value copy of the cursor's visible state.
type Snapshot struct {
	Items    []gateway.Article
	Page     int
	HasMore  bool
	Fetching bool
	State    uistate.State
}

type Cursor struct {
	src       Source
	sink      Sink
	pageSize  int
	threshold int
	query     string

	mu       sync.Mutex
	items    []gateway.Article
	seen     map[int]struct{}
	page     int
	hasMore  bool
	fetching bool
	gen      uint64
	state    uistate.State
	lastErr  error
	stats    Stats

	snapshots *uistate.Observable[Snapshot]
}

func New(src Source, opts Options) *Cursor {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.PrefetchThreshold <= 0 {
		opts.PrefetchThreshold = DefaultPrefetchThreshold
	}
	c := &Cursor{
		src:       src,
		sink:      opts.Sink,
		pageSize:  opts.PageSize,
		threshold: opts.PrefetchThreshold,
		query:     opts.Query,
		seen:      make(map[int]struct{}),
		page:      1,
		hasMore:   true,
		state:     uistate.IdleState(),
	}
	c.snapshots = uistate.NewObservable(c.snapshotLocked())
	return c
}

// Load fetches the next page, or the first page again when reset is true.
// At most one fetch of the current generation is in flight; a reset starts
// a new generation and any older fetch still running is discarded on return.
func (c *Cursor) Load(ctx context.Context, reset bool) Result {
	gen, page, ok := c.begin(reset)
	if !ok {
		return Result{Outcome: Skipped}
	}

	fetched, err := c.src.ListArticles(ctx, gateway.ListOptions{
		Query: c.query,
		Page:  page,
		Limit: c.pageSize,
	})

	res := c.finish(gen, page, reset, fetched, err)
	if res.Outcome == Replaced || res.Outcome == Appended {
		c.feedSink(fetched)
	}
	return res
}

func (c *Cursor) begin(reset bool) (uint64, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if reset {
		c.page = 1
		c.hasMore = true
		c.state = uistate.LoadingState()
		c.items = nil
		c.seen = make(map[int]struct{})
		c.gen++
	}

	if !c.hasMore || (c.fetching && !reset) {
		return 0, 0, false
	}

	c.fetching = true
	c.stats.Fetches++
	c.publishLocked()
	return c.gen, c.page, true
}

func (c *Cursor) finish(gen uint64, page int, reset bool, fetched []gateway.Article, err error) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return Result{Outcome: Stale, Page: page, Fetched: len(fetched), Err: err}
	}
	defer c.publishLocked()
	c.fetching = false

	if err != nil {
		c.lastErr = err
		c.stats.Failures++
		msg := gateway.UserMessage(err, loadFailedMessage)
		if reset {
			c.state = uistate.ErrorState(msg)
		}
		debuglog.WithFields(map[string]interface{}{
			"component": "listing",
			"page":      page,
			"reset":     reset,
		}).Warnf("page load failed: %v", err)
		return Result{Outcome: Failed, Page: page, Err: err}
	}

	c.lastErr = nil
	outcome := Appended
	if reset {
		c.items = make([]gateway.Article, 0, len(fetched))
		c.state = uistate.SuccessState("")
		outcome = Replaced
	}

	added := 0
	for _, a := range fetched {
		if _, dup := c.seen[a.ID]; dup {
			c.stats.Duplicates++
			continue
		}
		c.seen[a.ID] = struct{}{}
		c.items = append(c.items, a.Clone())
		added++
	}

	if len(fetched) < c.pageSize {
		c.hasMore = false
	} else {
		c.page++
	}

	debuglog.Debugf("listing: page %d fetched=%d added=%d hasMore=%v", page, len(fetched), added, c.hasMore)
	return Result{Outcome: outcome, Page: page, Fetched: len(fetched), Added: added}
}

func (c *Cursor) feedSink(fetched []gateway.Article) {
	if c.sink == nil || len(fetched) == 0 {
		return
	}
	if err := c.sink.Add(fetched); err != nil {
		debuglog.Warnf("listing: caching page failed: %v", err)
	}
}

// Remove drops an article from the list, e.g. after it was deleted.
func (c *Cursor) Remove(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, a := range c.items {
		if a.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			delete(c.seen, id)
			c.publishLocked()
			return true
		}
	}
	return false
}

// ShouldPrefetch reports whether the last visible row is close enough to the
// end of the list to load the next page.
func (c *Cursor) ShouldPrefetch(lastVisible, total int) bool {
	return ShouldPrefetch(lastVisible, total, c.threshold)
}

func ShouldPrefetch(lastVisible, total, threshold int) bool {
	return total > 0 && lastVisible >= total-threshold
}

func (c *Cursor) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Cursor) snapshotLocked() Snapshot {
	items := make([]gateway.Article, len(c.items))
	for i, a := range c.items {
		items[i] = a.Clone()
	}
	return Snapshot{
		Items:    items,
		Page:     c.page,
		HasMore:  c.hasMore,
		Fetching: c.fetching,
		State:    c.state,
	}
}

func (c *Cursor) publishLocked() {
	if c.snapshots != nil {
		c.snapshots.Set(c.snapshotLocked())
	}
}

// Subscribe streams snapshots until ctx is done.
func (c *Cursor) Subscribe(ctx context.Context) <-chan Snapshot {
	return c.snapshots.Subscribe(ctx)
}

func (c *Cursor) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cursor) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasMore
}

func (c *Cursor) Fetching() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetching
}

func (c *Cursor) Page() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

func (c *Cursor) State() uistate.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError is the most recent fetch failure, cleared by the next success.
func (c *Cursor) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Cursor) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Cursor) PageSize() int {
	return c.pageSize
}
