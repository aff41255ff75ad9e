package draft

import (
	"strings"

	"github.com/pders01/chronicle/internal/gateway"
)

// ValidationError lists the fields that block a submit. It never reaches the
// network.
type ValidationError struct {
	Status gateway.Status
	Fields []Field
	// Category is reported separately since it is not a text Field.
	Category bool
}

func (e *ValidationError) Error() string {
	var names []string
	for _, f := range e.Fields {
		names = append(names, f.String())
	}
	if e.Category {
		names = append(names, "category")
	}
	if len(names) == 0 {
		return "draft is invalid"
	}

	subject := joinNames(names)
	subject = strings.ToUpper(subject[:1]) + subject[1:]
	verb := "is"
	if len(names) > 1 {
		verb = "are"
	}
	msg := subject + " " + verb + " required"
	if e.Status == gateway.StatusPublished && (e.Category || len(names) > 1 || names[0] != "title") {
		msg += " to publish"
	}
	return msg
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}

// Validate checks the draft against the rules for status. A title is always
// required; publishing also needs content and a category.
func (d *Draft) Validate(status gateway.Status) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	verr := &ValidationError{Status: status}
	if strings.TrimSpace(d.title) == "" {
		verr.Fields = append(verr.Fields, Title)
	}
	if status == gateway.StatusPublished {
		if strings.TrimSpace(d.content) == "" {
			verr.Fields = append(verr.Fields, Content)
		}
		if d.category == nil {
			verr.Category = true
		}
	}

	if len(verr.Fields) == 0 && !verr.Category {
		return nil
	}
	return verr
}

func (d *Draft) IsComplete(status gateway.Status) bool {
	return d.Validate(status) == nil
}
