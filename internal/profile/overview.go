// Package profile loads the signed-in user's profile with their articles and
// edits or deletes the account.
package profile

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/pders01/chronicle/internal/debuglog"
	"github.com/pders01/chronicle/internal/gateway"
	"github.com/pders01/chronicle/internal/storage"
	"github.com/pders01/chronicle/internal/uistate"
)

const (
	SessionExpiredMessage = "Session expired, please log in again."
	MsgArticleDeleted     = "Article deleted"
)

// ErrNoSession is returned when nobody is logged in.
var ErrNoSession = errors.New("profile: no active session")

type Gateway interface {
	GetUser(ctx context.Context, id int) (*gateway.User, error)
	ListUserArticles(ctx context.Context, userID int) ([]gateway.Article, error)
	DeleteArticle(ctx context.Context, id int) (string, error)
}

// Session is the slice of the session store the profile screens need.
type Session interface {
	UserID() (int, error)
	ClearSession() error
}

// Data is a loaded profile.
type Data struct {
	User     gateway.User
	Articles []gateway.Article
}

// Published returns the articles visible to readers.
func (d Data) Published() []gateway.Article {
	return d.filter(gateway.StatusPublished)
}

// Drafts returns the articles only the author can see.
func (d Data) Drafts() []gateway.Article {
	return d.filter(gateway.StatusDraft)
}

func (d Data) filter(status gateway.Status) []gateway.Article {
	var out []gateway.Article
	for _, a := range d.Articles {
		if a.Status == status {
			out = append(out, a)
		}
	}
	return out
}

type Overview struct {
	gw      Gateway
	session Session

	state *uistate.Observable[uistate.State]
	data  *uistate.Observable[Data]
}

func NewOverview(gw Gateway, session Session) *Overview {
	return &Overview{
		gw:      gw,
		session: session,
		state:   uistate.NewObservable(uistate.LoadingState()),
		data:    uistate.NewObservable(Data{}),
	}
}

func (o *Overview) State() uistate.State { return o.state.Get() }
func (o *Overview) Data() Data { return o.data.Get() }

func (o *Overview) Subscribe(ctx context.Context) <-chan uistate.State {
	return o.state.Subscribe(ctx)
}

// Load fetches the user and their articles concurrently. Either failing
// fails the whole load.
func (o *Overview) Load(ctx context.Context) (Data, error) {
	o.state.Set(uistate.LoadingState())

	uid, err := currentUser(o.session)
	if err != nil {
		o.state.Set(uistate.ErrorState(sessionMessage(err)))
		return Data{}, err
	}

	var (
		user     *gateway.User
		articles []gateway.Article
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := o.gw.GetUser(gctx, uid)
		if err != nil {
			return fmt.Errorf("loading user: %w", err)
		}
		user = u
		return nil
	})
	g.Go(func() error {
		list, err := o.gw.ListUserArticles(gctx, uid)
		if err != nil {
			return fmt.Errorf("loading articles: %w", err)
		}
		articles = list
		return nil
	})
	if err := g.Wait(); err != nil {
		debuglog.Warnf("profile load failed: %v", err)
		o.state.Set(uistate.ErrorState(gateway.UserMessage(err, "Failed to load profile")))
		return Data{}, err
	}

	d := Data{User: *user, Articles: articles}
	o.data.Set(d)
	o.state.Set(uistate.SuccessState(""))
	return d, nil
}

// DeleteArticle removes one of the user's articles and reloads the profile.
// The returned message is meant for a transient status line.
func (o *Overview) DeleteArticle(ctx context.Context, id int) (string, error) {
	msg, err := o.gw.DeleteArticle(ctx, id)
	if err != nil {
		debuglog.Warnf("delete article %d failed: %v", id, err)
		return "Failed to delete: " + gateway.UserMessage(err, "unknown error"), err
	}
	if msg == "" {
		msg = MsgArticleDeleted
	}
	if _, err := o.Load(ctx); err != nil {
		return msg, err
	}
	return msg, nil
}

// Logout clears the stored session.
func (o *Overview) Logout() error {
	if err := o.session.ClearSession(); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	o.data.Set(Data{})
	return nil
}

func currentUser(s Session) (int, error) {
	uid, err := s.UserID()
	if err != nil {
		return 0, fmt.Errorf("reading session: %w", err)
	}
	if uid == storage.NoUser {
		return 0, ErrNoSession
	}
	return uid, nil
}

func sessionMessage(err error) string {
	if errors.Is(err, ErrNoSession) {
		return SessionExpiredMessage
	}
	return "Something went wrong: " + err.Error()
}
