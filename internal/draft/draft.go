// Package draft holds the in-progress state of an article being written or
// edited, and decides whether it differs from what it was opened with.
package draft

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/pders01/chronicle/internal/gateway"
)

var (
	ErrAlreadyHydrated = errors.New("draft already hydrated")
	ErrAlreadyMutated  = errors.New("draft mutated before hydration")
)

type Field int

const (
	Title Field = iota
	Content
	Tags
)

func (f Field) String() string {
	switch f {
	case Title:
		return "title"
	case Content:
		return "content"
	case Tags:
		return "tags"
	default:
		return "unknown"
	}
}

// ParseField maps "title", "content" or "tags" to a Field.
func ParseField(name string) (Field, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "title":
		return Title, nil
	case "content":
		return Content, nil
	case "tags":
		return Tags, nil
	default:
		return 0, fmt.Errorf("unknown field %q", name)
	}
}

// NewImage is a local file staged for upload. Handles are unique; the same
// source may be staged more than once.
type NewImage struct {
	Handle  string
	Source  string
	Caption string
}

// Baseline is the dirty-check reference taken at hydration.
type Baseline struct {
	Title      string
	Content    string
	Tags       string
	CategoryID *int
}

type Snapshot struct {
	ArticleID        int
	Status           gateway.Status
	Title            string
	Content          string
	Tags             string
	Category         *gateway.Category
	PersistedImages  []string
	PendingDeletions []string
	NewImages        []NewImage
	Baseline         Baseline
	Hydrated         bool
}

type Draft struct {
	mu sync.Mutex

	articleID int
	status    gateway.Status
	title     string
	content   string
	tags      string
	category  *gateway.Category
	persisted []string
	deleted   []string
	newImages []NewImage
	baseline  Baseline

	hydrated bool
	mutated  bool

	newHandle func() string
}

// New returns an empty draft for a new article.
func New() *Draft {
	return &Draft{newHandle: uuid.NewString}
}

// Hydrate loads an existing article and records the baseline. It is valid
// once, before any mutation. The category is matched by id, then by name,
// and otherwise taken from the article as is.
func (d *Draft) Hydrate(a gateway.Article, categories []gateway.Category) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.hydrated {
		return ErrAlreadyHydrated
	}
	if d.mutated {
		return ErrAlreadyMutated
	}

	d.articleID = a.ID
	d.status = a.Status
	d.title = a.Title
	d.content = a.Content
	d.tags = ""
	if a.Tags != nil {
		d.tags = *a.Tags
	}
	d.category = resolveCategory(a, categories)
	d.persisted = slices.Clone(a.Images)
	d.deleted = nil
	d.newImages = nil
	d.baseline = Baseline{
		Title:      d.title,
		Content:    d.content,
		Tags:       d.tags,
		CategoryID: categoryID(d.category),
	}
	d.hydrated = true
	return nil
}

func resolveCategory(a gateway.Article, categories []gateway.Category) *gateway.Category {
	if a.CategoryID != 0 {
		for _, c := range categories {
			if c.ID == a.CategoryID {
				return &c
			}
		}
	}
	if a.CategoryName != "" {
		for _, c := range categories {
			if c.Name == a.CategoryName {
				return &c
			}
		}
	}
	if a.CategoryID == 0 && a.CategoryName == "" {
		return nil
	}
	return &gateway.Category{ID: a.CategoryID, Name: a.CategoryName}
}

func categoryID(c *gateway.Category) *int {
	if c == nil {
		return nil
	}
	id := c.ID
	return &id
}

// UpdateField sets a text field. Nothing is validated until submit.
func (d *Draft) UpdateField(f Field, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch f {
	case Title:
		d.title = value
	case Content:
		d.content = value
	case Tags:
		d.tags = value
	}
	d.mutated = true
}

func (d *Draft) SetCategory(c *gateway.Category) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c == nil {
		d.category = nil
	} else {
		cp := *c
		d.category = &cp
	}
	d.mutated = true
}

// RemovePersistedImage queues ref for deletion on submit. It reports false
// and changes nothing when ref is not a persisted image.
func (d *Draft) RemovePersistedImage(ref string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	i := slices.Index(d.persisted, ref)
	if i < 0 {
		return false
	}
	d.persisted = slices.Delete(d.persisted, i, i+1)
	if !slices.Contains(d.deleted, ref) {
		d.deleted = append(d.deleted, ref)
	}
	d.mutated = true
	return true
}

func (d *Draft) RemoveNewImage(handle string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	i := slices.IndexFunc(d.newImages, func(img NewImage) bool { return img.Handle == handle })
	if i < 0 {
		return false
	}
	d.newImages = slices.Delete(d.newImages, i, i+1)
	d.mutated = true
	return true
}

// AddNewImages stages local files in order and returns the new entries.
func (d *Draft) AddNewImages(sources ...string) []NewImage {
	d.mu.Lock()
	defer d.mu.Unlock()

	added := make([]NewImage, 0, len(sources))
	for _, src := range sources {
		img := NewImage{Handle: d.newHandle(), Source: src}
		d.newImages = append(d.newImages, img)
		added = append(added, img)
	}
	if len(added) > 0 {
		d.mutated = true
	}
	return added
}

func (d *Draft) SetCaption(handle, caption string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.newImages {
		if d.newImages[i].Handle == handle {
			d.newImages[i].Caption = caption
			d.mutated = true
			return true
		}
	}
	return false
}

// HasChanges reports whether leaving now would lose work: a text field or the
// category differs from the baseline, or images were staged or removed.
func (d *Draft) HasChanges() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.title != d.baseline.Title || d.content != d.baseline.Content || d.tags != d.baseline.Tags {
		return true
	}
	if !sameID(categoryID(d.category), d.baseline.CategoryID) {
		return true
	}
	return len(d.newImages) > 0 || len(d.deleted) > 0
}

func sameID(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (d *Draft) ArticleID() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.articleID
}

func (d *Draft) Category() *gateway.Category {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.category == nil {
		return nil
	}
	c := *d.category
	return &c
}

func (d *Draft) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	var cat *gateway.Category
	if d.category != nil {
		c := *d.category
		cat = &c
	}
	return Snapshot{
		ArticleID:        d.articleID,
		Status:           d.status,
		Title:            d.title,
		Content:          d.content,
		Tags:             d.tags,
		Category:         cat,
		PersistedImages:  slices.Clone(d.persisted),
		PendingDeletions: slices.Clone(d.deleted),
		NewImages:        slices.Clone(d.newImages),
		Baseline:         d.baseline,
		Hydrated:         d.hydrated,
	}
}
