// Package search runs type-ahead article queries against the service and
// falls back to a local bleve index over previously seen articles when the
// service is unreachable.
package search

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/pders01/chronicle/internal/debuglog"
	"github.com/pders01/chronicle/internal/gateway"
	"github.com/pders01/chronicle/internal/uistate"
)

const FallbackMessage = "Failed to search articles"

// ErrStale is returned when a newer query superseded this one before its
// response arrived. The response was discarded.
var ErrStale = errors.New("search: superseded by a newer query")

type Source interface {
	ListArticles(ctx context.Context, opts gateway.ListOptions) ([]gateway.Article, error)
}

// Offline answers queries without the network.
type Offline interface {
	Search(query string, limit int) ([]gateway.Article, error)
}

// Sink receives every online result set.
type Sink interface {
	Add(articles []gateway.Article) error
}

type Options struct {
	Limit   int
	Offline Offline
	Sink    Sink
}

// Snapshot is what the search screen renders.
type Snapshot struct {
	State    uistate.State
	Query    string
	Articles []gateway.Article
	// Offline is set when Articles came from the local index.
	Offline bool
}

type Searcher struct {
	src     Source
	offline Offline
	sink    Sink
	limit   int

	mu   sync.Mutex
	gen  uint64
	snap *uistate.Observable[Snapshot]
}

func New(src Source, opts Options) *Searcher {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	return &Searcher{
		src:     src,
		offline: opts.Offline,
		sink:    opts.Sink,
		limit:   opts.Limit,
		snap:    uistate.NewObservable(Snapshot{State: uistate.IdleState()}),
	}
}

func (s *Searcher) Snapshot() Snapshot {
	return s.snap.Get()
}

func (s *Searcher) Subscribe(ctx context.Context) <-chan Snapshot {
	return s.snap.Subscribe(ctx)
}

// Generation is the id of the most recent query.
func (s *Searcher) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Search runs query. A blank query resets to Idle without a request. Only
// the newest query may publish; an older response returns ErrStale.
func (s *Searcher) Search(ctx context.Context, query string) (Snapshot, error) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	if strings.TrimSpace(query) == "" {
		snap := Snapshot{State: uistate.IdleState(), Query: query}
		s.snap.Set(snap)
		s.mu.Unlock()
		return snap, nil
	}
	s.snap.Set(Snapshot{State: uistate.LoadingState(), Query: query})
	s.mu.Unlock()

	articles, err := s.src.ListArticles(ctx, gateway.ListOptions{Query: query, Page: 1, Limit: s.limit})
	snap := s.resolve(query, articles, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		debuglog.Debugf("search %q: discarded stale response (gen %d, current %d)", query, gen, s.gen)
		return snap, ErrStale
	}
	s.snap.Set(snap)
	if snap.State.IsError() {
		return snap, err
	}
	return snap, nil
}

func (s *Searcher) resolve(query string, articles []gateway.Article, err error) Snapshot {
	if err == nil {
		if articles == nil {
			articles = []gateway.Article{}
		}
		if s.sink != nil {
			if serr := s.sink.Add(articles); serr != nil {
				debuglog.Warnf("search: caching results: %v", serr)
			}
		}
		return Snapshot{State: uistate.SuccessState(""), Query: query, Articles: articles}
	}

	if gateway.IsTransport(err) && s.offline != nil {
		local, lerr := s.offline.Search(query, s.limit)
		if lerr == nil {
			debuglog.Infof("search %q answered offline (%d hits)", query, len(local))
			return Snapshot{State: uistate.SuccessState(""), Query: query, Articles: local, Offline: true}
		}
		debuglog.Warnf("offline search failed: %v", lerr)
	}
	debuglog.Warnf("search %q failed: %v", query, err)
	return Snapshot{State: uistate.ErrorState(gateway.UserMessage(err, FallbackMessage)), Query: query}
}
