package storage

import (
	"time"

	"github.com/pders01/chronicle/internal/gateway"
)

// NoUser is the stored user id when nobody is logged in.
const NoUser = -1

type Session struct {
	UserID    int       `json:"user_id"`
	Token     string    `json:"token"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DraftImage is a locally staged image awaiting upload.
type DraftImage struct {
	Handle  string `json:"handle"`
	Source  string `json:"source"`
	Caption string `json:"caption"`
}

// DraftRecord is an autosaved authoring buffer. Key is "new" for an unsaved
// article or "article:<id>" for an edit.
type DraftRecord struct {
	Key             string       `json:"key"`
	ArticleID       int          `json:"article_id"`
	Title           string       `json:"title"`
	Content         string       `json:"content"`
	Tags            string       `json:"tags"`
	CategoryID      *int         `json:"category_id"`
	CategoryName    string       `json:"category_name"`
	PersistedImages []string     `json:"persisted_images"`
	DeletedImages   []string     `json:"deleted_images"`
	NewImages       []DraftImage `json:"new_images"`
	Baseline        *Baseline    `json:"baseline,omitempty"`
	SavedAt         time.Time    `json:"saved_at"`
}

// Baseline is the field snapshot an edit started from.
type Baseline struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Tags       string `json:"tags"`
	CategoryID *int   `json:"category_id"`
}

// CachedArticle is an article as last seen from the service.
type CachedArticle struct {
	Article  gateway.Article `json:"article"`
	CachedAt time.Time       `json:"cached_at"`
}
