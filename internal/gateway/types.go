package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status is an article's publication status.
type Status string

const (
	StatusDraft     Status = "Draft"
	StatusPublished Status = "Published"
)

// ParseStatus accepts "draft" or "published" in any case.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "draft":
		return StatusDraft, nil
	case "published":
		return StatusPublished, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

type Article struct {
	ID           int      `json:"article_id"`
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	CategoryID   int      `json:"category_id"`
	CategoryName string   `json:"category_name"`
	AuthorName   string   `json:"author_name"`
	PublishedAt  *string  `json:"published_at"`
	Images       []string `json:"images"`
	ViewsCount   int      `json:"views_count"`
	Status       Status   `json:"status"`
	Tags         *string  `json:"tags"`
}

// Clone returns a deep copy so callers never share slices or pointers with
// a decoded response.
func (a Article) Clone() Article {
	c := a
	if a.Images != nil {
		c.Images = append([]string(nil), a.Images...)
	}
	if a.PublishedAt != nil {
		v := *a.PublishedAt
		c.PublishedAt = &v
	}
	if a.Tags != nil {
		v := *a.Tags
		c.Tags = &v
	}
	return c
}

// PublishedDate is the date part of PublishedAt, or "Draft" when unpublished.
func (a Article) PublishedDate() string {
	if a.PublishedAt == nil || *a.PublishedAt == "" {
		return "Draft"
	}
	p := *a.PublishedAt
	if len(p) > 10 {
		return p[:10]
	}
	return p
}

// TagList returns the tags split on commas, trimmed, empties dropped.
func (a Article) TagList() []string {
	if a.Tags == nil {
		return nil
	}
	var out []string
	for _, t := range strings.Split(*a.Tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

type Category struct {
	ID   int    `json:"category_id"`
	Name string `json:"category_name"`
}

type User struct {
	ID       int    `json:"user_id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Bio      string `json:"bio"`
}

// Session is the result of a successful login or registration.
type Session struct {
	Token   string
	User    *User
	Message string
}

type RegisterRequest struct {
	FullName string `json:"full_name" validate:"required,fullname"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ListOptions selects a page of the article listing. Zero Page and Limit are
// left to the server's defaults.
type ListOptions struct {
	Query string
	Page  int
	Limit int
}

// ArticlePayload is the body of createArticle and updateArticle. Nil pointer
// and slice fields are sent as JSON null so the server keeps what it has.
type ArticlePayload struct {
	Title         string   `json:"title"`
	Content       *string  `json:"content"`
	CategoryID    *int     `json:"category_id"`
	UserID        *int     `json:"user_id,omitempty"`
	Status        Status   `json:"status"`
	Tags          *string  `json:"tags"`
	Images        []string `json:"images"`
	ImageCaptions []string `json:"image_captions"`
	DeletedImages []string `json:"deleted_images"`
}

type UserUpdate struct {
	FullName string  `json:"full_name" validate:"required,fullname"`
	Email    string  `json:"email" validate:"required,email"`
	Password *string `json:"password,omitempty"`
	Bio      *string `json:"bio"`
}

// Envelope is the response wrapper every endpoint returns.
type Envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Token   string          `json:"token,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Envelope) hasData() bool {
	return len(e.Data) > 0 && string(e.Data) != "null"
}
