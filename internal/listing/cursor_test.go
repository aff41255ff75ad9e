package listing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/chronicle/internal/gateway"
	"github.com/pders01/chronicle/internal/gateway/gatewaytest"
	"github.com/pders01/chronicle/internal/uistate"
)

// pagedStub serves pages from a fixed table; missing pages are empty.
func pagedStub(pages map[int][]gateway.Article) *gatewaytest.Stub {
	return &gatewaytest.Stub{
		ListArticlesFunc: func(_ context.Context, opts gateway.ListOptions) ([]gateway.Article, error) {
			return pages[opts.Page], nil
		},
	}
}

func TestCursor_TwentyThenFive(t *testing.T) {
	stub := pagedStub(map[int][]gateway.Article{
		1: gatewaytest.Articles(1, 20),
		2: gatewaytest.Articles(21, 5),
	})
	c := New(stub, Options{})
	ctx := context.Background()

	res := c.Load(ctx, true)
	assert.Equal(t, Replaced, res.Outcome)
	assert.Equal(t, 2, c.Page())
	assert.True(t, c.HasMore())
	assert.Equal(t, uistate.Success, c.State().Kind)

	res = c.Load(ctx, false)
	assert.Equal(t, Appended, res.Outcome)
	assert.Equal(t, 5, res.Added)
	assert.Equal(t, 25, c.Len())
	assert.False(t, c.HasMore())
	assert.False(t, c.Fetching())
}

func TestCursor_TerminalStaysTerminal(t *testing.T) {
	stub := pagedStub(map[int][]gateway.Article{
		1: gatewaytest.Articles(1, 7),
	})
	c := New(stub, Options{})
	ctx := context.Background()

	c.Load(ctx, true)
	require.False(t, c.HasMore())
	page := c.Page()

	for i := 0; i < 3; i++ {
		res := c.Load(ctx, false)
		assert.Equal(t, Skipped, res.Outcome)
	}
	assert.Equal(t, 1, stub.Calls("ListArticles"), "no fetch past the end")
	assert.Equal(t, page, c.Page())
	assert.False(t, c.HasMore())

	// Only a reset brings it back.
	c.Load(ctx, true)
	assert.Equal(t, 2, stub.Calls("ListArticles"))
}

func TestCursor_AppendSkipsDuplicates(t *testing.T) {
	page2 := append(gatewaytest.Articles(19, 2), gatewaytest.Articles(21, 18)...)
	stub := pagedStub(map[int][]gateway.Article{
		1: gatewaytest.Articles(1, 20),
		2: page2,
	})
	c := New(stub, Options{})
	ctx := context.Background()

	c.Load(ctx, true)
	res := c.Load(ctx, false)
	assert.Equal(t, 18, res.Added)
	assert.Equal(t, 20, res.Fetched)
	assert.True(t, c.HasMore(), "a full page keeps the cursor open even if some items were duplicates")

	snap := c.Snapshot()
	ids := make(map[int]bool)
	for _, a := range snap.Items {
		assert.False(t, ids[a.ID], "duplicate id %d", a.ID)
		ids[a.ID] = true
	}
	assert.Len(t, snap.Items, 38)
	assert.Equal(t, 2, c.Stats().Duplicates)
}

func TestCursor_ResetDedupsWithinPage(t *testing.T) {
	page := append(gatewaytest.Articles(1, 3), gatewaytest.Articles(2, 1)...)
	c := New(pagedStub(map[int][]gateway.Article{1: page}), Options{})

	res := c.Load(context.Background(), true)
	assert.Equal(t, 3, res.Added)
	assert.Equal(t, 3, c.Len())
}

// gatedSource hands every request to the test, which decides when and how
// it completes.
type gatedSource struct {
	requests chan *pending
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

type pending struct {
	opts  gateway.ListOptions
	reply chan reply
}

type reply struct {
	items []gateway.Article
	err   error
}

func newGatedSource() *gatedSource {
	return &gatedSource{requests: make(chan *pending, 16)}
}

func (g *gatedSource) ListArticles(ctx context.Context, opts gateway.ListOptions) ([]gateway.Article, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		m := g.maxSeen.Load()
		if n <= m || g.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	p := &pending{opts: opts, reply: make(chan reply, 1)}
	g.requests <- p
	r := <-p.reply
	return r.items, r.err
}

func (g *gatedSource) next(t *testing.T) *pending {
	t.Helper()
	select {
	case p := <-g.requests:
		return p
	case <-time.After(time.Second):
		t.Fatal("expected a request")
		return nil
	}
}

func TestCursor_SingleFetchInFlight(t *testing.T) {
	src := newGatedSource()
	c := New(src, Options{})
	ctx := context.Background()

	done := make(chan Result, 1)
	go func() { done <- c.Load(ctx, true) }()
	src.next(t).reply <- reply{items: gatewaytest.Articles(1, 20)}
	<-done

	first := make(chan Result, 1)
	go func() { first <- c.Load(ctx, false) }()
	req := src.next(t)
	assert.Equal(t, 2, req.opts.Page)
	assert.Equal(t, 20, req.opts.Limit)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, Skipped, c.Load(ctx, false).Outcome)
		}()
	}
	wg.Wait()

	req.reply <- reply{items: gatewaytest.Articles(21, 20)}
	assert.Equal(t, Appended, (<-first).Outcome)
	assert.Equal(t, int32(1), src.maxSeen.Load())
	assert.Equal(t, 40, c.Len())
	assert.Equal(t, 3, c.Page())
}

func TestCursor_ResetDiscardsStaleAppend(t *testing.T) {
	src := newGatedSource()
	c := New(src, Options{})
	ctx := context.Background()

	done := make(chan Result, 1)
	go func() { done <- c.Load(ctx, true) }()
	src.next(t).reply <- reply{items: gatewaytest.Articles(1, 20)}
	<-done

	more := make(chan Result, 1)
	go func() { more <- c.Load(ctx, false) }()
	stale := src.next(t)

	reset := make(chan Result, 1)
	go func() { reset <- c.Load(ctx, true) }()
	fresh := src.next(t)
	assert.Equal(t, 1, fresh.opts.Page)

	fresh.reply <- reply{items: gatewaytest.Articles(100, 20)}
	assert.Equal(t, Replaced, (<-reset).Outcome)

	stale.reply <- reply{items: gatewaytest.Articles(21, 20)}
	assert.Equal(t, Stale, (<-more).Outcome)

	snap := c.Snapshot()
	require.Len(t, snap.Items, 20)
	assert.Equal(t, 100, snap.Items[0].ID)
	assert.Equal(t, 2, snap.Page)
	assert.False(t, snap.Fetching)
}

func TestCursor_ResetFailure(t *testing.T) {
	stub := &gatewaytest.Stub{
		ListArticlesFunc: func(context.Context, gateway.ListOptions) ([]gateway.Article, error) {
			return nil, &gateway.TransportError{Op: "GET articles", Err: errors.New("connection refused")}
		},
	}
	c := New(stub, Options{})

	res := c.Load(context.Background(), true)
	assert.Equal(t, Failed, res.Outcome)
	state := c.State()
	assert.Equal(t, uistate.Error, state.Kind)
	assert.Equal(t, gateway.TransportMessage, state.Message)
	assert.False(t, c.Fetching())
}

func TestCursor_LoadMoreFailureIsSwallowed(t *testing.T) {
	fail := true
	stub := &gatewaytest.Stub{
		ListArticlesFunc: func(_ context.Context, opts gateway.ListOptions) ([]gateway.Article, error) {
			if opts.Page == 1 {
				return gatewaytest.Articles(1, 20), nil
			}
			if fail {
				return nil, &gateway.APIError{StatusCode: 500, Message: "db down"}
			}
			return gatewaytest.Articles(21, 3), nil
		},
	}
	c := New(stub, Options{})
	ctx := context.Background()

	c.Load(ctx, true)
	res := c.Load(ctx, false)
	require.Equal(t, Failed, res.Outcome)
	assert.Error(t, res.Err)

	assert.Equal(t, uistate.Success, c.State().Kind, "visible state unchanged")
	assert.Equal(t, 20, c.Len())
	assert.Equal(t, 2, c.Page())
	assert.True(t, c.HasMore())
	assert.False(t, c.Fetching(), "flag released on error")
	assert.Error(t, c.LastError())
	assert.Equal(t, 1, c.Stats().Failures)

	fail = false
	res = c.Load(ctx, false)
	assert.Equal(t, Appended, res.Outcome)
	assert.Equal(t, 23, c.Len())
	assert.NoError(t, c.LastError())
}

func TestShouldPrefetch(t *testing.T) {
	tests := []struct {
		lastVisible, total int
		want               bool
	}{
		{0, 0, false},
		{15, 20, false},
		{16, 20, true},
		{19, 20, true},
		{0, 3, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ShouldPrefetch(tt.lastVisible, tt.total, DefaultPrefetchThreshold),
			"lastVisible=%d total=%d", tt.lastVisible, tt.total)
	}

	c := New(pagedStub(nil), Options{PrefetchThreshold: 2})
	assert.False(t, c.ShouldPrefetch(17, 20))
	assert.True(t, c.ShouldPrefetch(18, 20))
}

type recordingSink struct {
	mu    sync.Mutex
	pages [][]gateway.Article
}

func (r *recordingSink) Add(articles []gateway.Article) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages = append(r.pages, articles)
	return nil
}

func TestCursor_FeedsSink(t *testing.T) {
	sink := &recordingSink{}
	c := New(pagedStub(map[int][]gateway.Article{1: gatewaytest.Articles(1, 4)}), Options{Sink: sink})

	c.Load(context.Background(), true)
	require.Len(t, sink.pages, 1)
	assert.Len(t, sink.pages[0], 4)
}

func TestCursor_RemoveAndSubscribe(t *testing.T) {
	c := New(pagedStub(map[int][]gateway.Article{1: gatewaytest.Articles(1, 3)}), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := c.Subscribe(ctx)
	initial := <-ch
	assert.Equal(t, uistate.Idle, initial.State.Kind)

	c.Load(ctx, true)
	assert.Eventually(t, func() bool {
		select {
		case s := <-ch:
			return s.State.Kind == uistate.Success && len(s.Items) == 3
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	assert.True(t, c.Remove(2))
	assert.False(t, c.Remove(2))
	assert.Equal(t, 2, c.Len())
}

func TestCursor_SnapshotIsACopy(t *testing.T) {
	page := gatewaytest.Articles(1, 1)
	page[0].Images = []string{"a.jpg"}
	c := New(pagedStub(map[int][]gateway.Article{1: page}), Options{})
	c.Load(context.Background(), true)

	snap := c.Snapshot()
	snap.Items[0].Images[0] = "mutated.jpg"
	page[0].Images[0] = "mutated-too.jpg"

	assert.Equal(t, "a.jpg", c.Snapshot().Items[0].Images[0])
}
