package draft

import (
	"fmt"
	"slices"

	"github.com/pders01/chronicle/internal/gateway"
	"github.com/pders01/chronicle/internal/storage"
)

// KeyNew is the autosave key of a draft that has no server id yet.
const KeyNew = "new"

// Key returns the autosave key for articleID (0 for a new article).
func Key(articleID int) string {
	if articleID <= 0 {
		return KeyNew
	}
	return fmt.Sprintf("article:%d", articleID)
}

// Record converts the draft to its autosave form.
func (d *Draft) Record() *storage.DraftRecord {
	s := d.Snapshot()

	rec := &storage.DraftRecord{
		Key:             Key(s.ArticleID),
		ArticleID:       s.ArticleID,
		Title:           s.Title,
		Content:         s.Content,
		Tags:            s.Tags,
		PersistedImages: s.PersistedImages,
		DeletedImages:   s.PendingDeletions,
	}
	if s.Category != nil {
		id := s.Category.ID
		rec.CategoryID = &id
		rec.CategoryName = s.Category.Name
	}
	for _, img := range s.NewImages {
		rec.NewImages = append(rec.NewImages, storage.DraftImage{
			Handle:  img.Handle,
			Source:  img.Source,
			Caption: img.Caption,
		})
	}
	if s.Hydrated {
		rec.Baseline = &storage.Baseline{
			Title:      s.Baseline.Title,
			Content:    s.Baseline.Content,
			Tags:       s.Baseline.Tags,
			CategoryID: s.Baseline.CategoryID,
		}
	}
	return rec
}

// Restore rebuilds a draft from an autosave record, baseline included, so
// HasChanges answers as it did when the record was written.
func Restore(rec *storage.DraftRecord) *Draft {
	d := New()
	d.articleID = rec.ArticleID
	d.title = rec.Title
	d.content = rec.Content
	d.tags = rec.Tags
	if rec.CategoryID != nil {
		d.category = &gateway.Category{ID: *rec.CategoryID, Name: rec.CategoryName}
	}
	d.persisted = slices.Clone(rec.PersistedImages)
	d.deleted = slices.Clone(rec.DeletedImages)
	for _, img := range rec.NewImages {
		d.newImages = append(d.newImages, NewImage{
			Handle:  img.Handle,
			Source:  img.Source,
			Caption: img.Caption,
		})
	}
	if rec.Baseline != nil {
		d.baseline = Baseline{
			Title:      rec.Baseline.Title,
			Content:    rec.Baseline.Content,
			Tags:       rec.Baseline.Tags,
			CategoryID: rec.Baseline.CategoryID,
		}
		d.hydrated = true
	}
	d.mutated = true
	return d
}
