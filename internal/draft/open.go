package draft

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/pders01/chronicle/internal/gateway"
)

// Loader is what Open needs from the gateway.
type Loader interface {
	GetArticle(ctx context.Context, id int) (*gateway.Article, error)
	ListCategories(ctx context.Context) ([]gateway.Category, error)
}

// Open fetches article id and the category list concurrently and returns a
// draft hydrated from them, along with the categories for the picker.
func Open(ctx context.Context, src Loader, id int) (*Draft, []gateway.Category, error) {
	var (
		article    *gateway.Article
		categories []gateway.Category
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := src.GetArticle(gctx, id)
		if err != nil {
			return fmt.Errorf("loading article %d: %w", id, err)
		}
		article = a
		return nil
	})
	g.Go(func() error {
		cats, err := src.ListCategories(gctx)
		if err != nil {
			return fmt.Errorf("loading categories: %w", err)
		}
		categories = cats
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if article == nil {
		return nil, nil, fmt.Errorf("loading article %d: empty response", id)
	}

	d := New()
	if err := d.Hydrate(article.Clone(), categories); err != nil {
		return nil, nil, err
	}
	return d, categories, nil
}
