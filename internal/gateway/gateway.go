// Package gateway is the client side of the article service's REST contract.
package gateway

import "context"

type AuthGateway interface {
	Register(ctx context.Context, req RegisterRequest) (*Session, error)
	Login(ctx context.Context, req LoginRequest) (*Session, error)
}

type ArticleGateway interface {
	ListArticles(ctx context.Context, opts ListOptions) ([]Article, error)
	ListCategories(ctx context.Context) ([]Category, error)
	GetArticle(ctx context.Context, id int) (*Article, error)
	CreateArticle(ctx context.Context, payload ArticlePayload) (string, error)
	UpdateArticle(ctx context.Context, id int, payload ArticlePayload) (string, error)
	DeleteArticle(ctx context.Context, id int) (string, error)
	ListUserArticles(ctx context.Context, userID int) ([]Article, error)
}

type UserGateway interface {
	GetUser(ctx context.Context, id int) (*User, error)
	UpdateUser(ctx context.Context, id int, update UserUpdate) (string, error)
	DeleteUser(ctx context.Context, id int) (string, error)
}

// Gateway is the full remote surface.
type Gateway interface {
	AuthGateway
	ArticleGateway
	UserGateway
}

var _ Gateway = (*Client)(nil)
