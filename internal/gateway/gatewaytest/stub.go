// Package gatewaytest provides a configurable gateway.Gateway for unit tests.
package gatewaytest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pders01/chronicle/internal/gateway"
)

// ErrNotConfigured is returned by any operation whose func field is nil.
var ErrNotConfigured = errors.New("gatewaytest: operation not configured")

// Stub implements gateway.Gateway by delegating to its func fields and
// counting calls per operation.
type Stub struct {
	RegisterFunc         func(ctx context.Context, req gateway.RegisterRequest) (*gateway.Session, error)
	LoginFunc            func(ctx context.Context, req gateway.LoginRequest) (*gateway.Session, error)
	ListArticlesFunc     func(ctx context.Context, opts gateway.ListOptions) ([]gateway.Article, error)
	ListCategoriesFunc   func(ctx context.Context) ([]gateway.Category, error)
	GetArticleFunc       func(ctx context.Context, id int) (*gateway.Article, error)
	CreateArticleFunc    func(ctx context.Context, payload gateway.ArticlePayload) (string, error)
	UpdateArticleFunc    func(ctx context.Context, id int, payload gateway.ArticlePayload) (string, error)
	DeleteArticleFunc    func(ctx context.Context, id int) (string, error)
	ListUserArticlesFunc func(ctx context.Context, userID int) ([]gateway.Article, error)
	GetUserFunc          func(ctx context.Context, id int) (*gateway.User, error)
	UpdateUserFunc       func(ctx context.Context, id int, update gateway.UserUpdate) (string, error)
	DeleteUserFunc       func(ctx context.Context, id int) (string, error)

	mu    sync.Mutex
	calls map[string]int
}

var _ gateway.Gateway = (*Stub)(nil)

func (s *Stub) record(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[op]++
}

// Calls returns how many times op (the method name) was invoked.
func (s *Stub) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *Stub) Register(ctx context.Context, req gateway.RegisterRequest) (*gateway.Session, error) {
	s.record("Register")
	if s.RegisterFunc == nil {
		return nil, ErrNotConfigured
	}
	return s.RegisterFunc(ctx, req)
}

func (s *Stub) Login(ctx context.Context, req gateway.LoginRequest) (*gateway.Session, error) {
	s.record("Login")
	if s.LoginFunc == nil {
		return nil, ErrNotConfigured
	}
	return s.LoginFunc(ctx, req)
}

func (s *Stub) ListArticles(ctx context.Context, opts gateway.ListOptions) ([]gateway.Article, error) {
	s.record("ListArticles")
	if s.ListArticlesFunc == nil {
		return nil, ErrNotConfigured
	}
	return s.ListArticlesFunc(ctx, opts)
}

func (s *Stub) ListCategories(ctx context.Context) ([]gateway.Category, error) {
	s.record("ListCategories")
	if s.ListCategoriesFunc == nil {
		return nil, ErrNotConfigured
	}
	return s.ListCategoriesFunc(ctx)
}

func (s *Stub) GetArticle(ctx context.Context, id int) (*gateway.Article, error) {
	s.record("GetArticle")
	if s.GetArticleFunc == nil {
		return nil, ErrNotConfigured
	}
	return s.GetArticleFunc(ctx, id)
}

func (s *Stub) CreateArticle(ctx context.Context, payload gateway.ArticlePayload) (string, error) {
	s.record("CreateArticle")
	if s.CreateArticleFunc == nil {
		return "", ErrNotConfigured
	}
	return s.CreateArticleFunc(ctx, payload)
}

func (s *Stub) UpdateArticle(ctx context.Context, id int, payload gateway.ArticlePayload) (string, error) {
	s.record("UpdateArticle")
	if s.UpdateArticleFunc == nil {
		return "", ErrNotConfigured
	}
	return s.UpdateArticleFunc(ctx, id, payload)
}

func (s *Stub) DeleteArticle(ctx context.Context, id int) (string, error) {
	s.record("DeleteArticle")
	if s.DeleteArticleFunc == nil {
		return "", ErrNotConfigured
	}
	return s.DeleteArticleFunc(ctx, id)
}

func (s *Stub) ListUserArticles(ctx context.Context, userID int) ([]gateway.Article, error) {
	s.record("ListUserArticles")
	if s.ListUserArticlesFunc == nil {
		return nil, ErrNotConfigured
	}
	return s.ListUserArticlesFunc(ctx, userID)
}

func (s *Stub) GetUser(ctx context.Context, id int) (*gateway.User, error) {
	s.record("GetUser")
	if s.GetUserFunc == nil {
		return nil, ErrNotConfigured
	}
	return s.GetUserFunc(ctx, id)
}

func (s *Stub) UpdateUser(ctx context.Context, id int, update gateway.UserUpdate) (string, error) {
	s.record("UpdateUser")
	if s.UpdateUserFunc == nil {
		return "", ErrNotConfigured
	}
	return s.UpdateUserFunc(ctx, id, update)
}

func (s *Stub) DeleteUser(ctx context.Context, id int) (string, error) {
	s.record("DeleteUser")
	if s.DeleteUserFunc == nil {
		return "", ErrNotConfigured
	}
	return s.DeleteUserFunc(ctx, id)
}

// Articles builds n published articles with ids start..start+n-1.
func Articles(start, n int) []gateway.Article {
	out := make([]gateway.Article, 0, n)
	for i := 0; i < n; i++ {
		id := start + i
		out = append(out, gateway.Article{
			ID:     id,
			Title:  fmt.Sprintf("Article %d", id),
			Status: gateway.StatusPublished,
		})
	}
	return out
}

