package reader

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/pders01/chronicle/internal/config"
	"github.com/pders01/chronicle/internal/gateway"
)

// Renderer turns articles into styled terminal text. The underlying glamour
// renderer is rebuilt only when the wrap width moves noticeably.
type Renderer struct {
	cfg     config.ArticleConfig
	resolve func(string) string
	style   glamour.TermRendererOption

	mu       sync.Mutex
	glamour  *glamour.TermRenderer
	wrapping int
}

// NewRenderer builds a renderer. resolve maps image references to the form
// shown to the reader and may be nil.
func NewRenderer(cfg config.ArticleConfig, resolve func(string) string) *Renderer {
	if resolve == nil {
		resolve = func(s string) string { return s }
	}
	return &Renderer{cfg: cfg, resolve: resolve, style: glamour.WithAutoStyle()}
}

// WrapWidth is the word wrap used for a terminal width.
func (r *Renderer) WrapWidth(width int) int {
	w := (width * 9) / 10
	if r.cfg.WordWrapMaxWidth > 0 && w > r.cfg.WordWrapMaxWidth {
		w = r.cfg.WordWrapMaxWidth
	}
	if w < r.cfg.WordWrapMinWidth {
		w = r.cfg.WordWrapMinWidth
	}
	if width < 50 {
		w = max(width-4, 20)
	}
	return w
}

func (r *Renderer) term(width int) (*glamour.TermRenderer, error) {
	wrap := r.WrapWidth(width)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.glamour == nil || abs(r.wrapping-wrap) > 10 {
		g, err := glamour.NewTermRenderer(r.style, glamour.WithWordWrap(wrap))
		if err != nil {
			return nil, err
		}
		r.glamour = g
		r.wrapping = wrap
	}
	return r.glamour, nil
}

// Render produces the styled article for a terminal of the given width.
func (r *Renderer) Render(a gateway.Article, width int) (string, error) {
	g, err := r.term(width)
	if err != nil {
		return "", fmt.Errorf("initializing renderer: %w", err)
	}
	out, err := g.Render(r.Markdown(a))
	if err != nil {
		return "", fmt.Errorf("rendering article %d: %w", a.ID, err)
	}
	return out, nil
}

// Markdown lays the article out as a markdown document.
func (r *Renderer) Markdown(a gateway.Article) string {
	var b strings.Builder
	title := strings.TrimSpace(a.Title)
	if title == "" {
		title = "Untitled"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	var meta []string
	if a.AuthorName != "" {
		meta = append(meta, "by "+a.AuthorName)
	}
	meta = append(meta, a.PublishedDate())
	if a.CategoryName != "" {
		meta = append(meta, a.CategoryName)
	}
	meta = append(meta, viewsLabel(a.ViewsCount))
	fmt.Fprintf(&b, "*%s*\n\n", strings.Join(meta, " · "))

	if tags := a.TagList(); len(tags) > 0 {
		for i, t := range tags {
			tags[i] = "`#" + t + "`"
		}
		b.WriteString(strings.Join(tags, " "))
		b.WriteString("\n\n")
	}

	if len(a.Images) > 0 {
		b.WriteString("**Images:**\n")
		for i, img := range a.Images {
			fmt.Fprintf(&b, "%d. %s\n", i+1, r.resolve(img))
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\n")
	if content := strings.TrimSpace(a.Content); content != "" {
		b.WriteString(content)
		b.WriteString("\n")
	} else {
		b.WriteString("*No content yet.*\n")
	}
	return b.String()
}

func viewsLabel(n int) string {
	if n == 1 {
		return "1 view"
	}
	return fmt.Sprintf("%d views", n)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
