// Package reader loads a single article and renders it for the terminal.
package reader

import (
	"context"

	"github.com/pders01/chronicle/internal/debuglog"
	"github.com/pders01/chronicle/internal/gateway"
	"github.com/pders01/chronicle/internal/uistate"
)

const FallbackMessage = "Failed to load article"

type Gateway interface {
	GetArticle(ctx context.Context, id int) (*gateway.Article, error)
}

// Cache serves previously seen articles when the service is unreachable.
type Cache interface {
	CachedArticle(id int) (*gateway.Article, error)
}

// Snapshot is what the detail screen renders.
type Snapshot struct {
	State   uistate.State
	Article *gateway.Article
	Offline bool
}

type Reader struct {
	gw    Gateway
	cache Cache
	snap  *uistate.Observable[Snapshot]
}

// New builds a reader. cache may be nil.
func New(gw Gateway, cache Cache) *Reader {
	return &Reader{
		gw:    gw,
		cache: cache,
		snap:  uistate.NewObservable(Snapshot{State: uistate.IdleState()}),
	}
}

func (r *Reader) Snapshot() Snapshot { return r.snap.Get() }

func (r *Reader) Subscribe(ctx context.Context) <-chan Snapshot {
	return r.snap.Subscribe(ctx)
}

// Load fetches article id. On a transport failure the cached copy is
// served instead, if there is one.
func (r *Reader) Load(ctx context.Context, id int) (Snapshot, error) {
	r.snap.Set(Snapshot{State: uistate.LoadingState()})

	article, err := r.gw.GetArticle(ctx, id)
	if err == nil {
		a := article.Clone()
		s := Snapshot{State: uistate.SuccessState(""), Article: &a}
		r.snap.Set(s)
		return s, nil
	}

	if gateway.IsTransport(err) && r.cache != nil {
		if cached, cerr := r.cache.CachedArticle(id); cerr == nil {
			debuglog.Infof("serving article %d from cache: %v", id, err)
			a := cached.Clone()
			s := Snapshot{State: uistate.SuccessState(""), Article: &a, Offline: true}
			r.snap.Set(s)
			return s, nil
		}
	}

	debuglog.Warnf("loading article %d failed: %v", id, err)
	s := Snapshot{State: uistate.ErrorState(gateway.UserMessage(err, FallbackMessage))}
	r.snap.Set(s)
	return s, err
}
