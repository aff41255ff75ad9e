// Package submit validates a draft, turns it into a create or update request
// and reports the result as screen state.
package submit

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pders01/chronicle/internal/debuglog"
	"github.com/pders01/chronicle/internal/draft"
	"github.com/pders01/chronicle/internal/gateway"
	"github.com/pders01/chronicle/internal/storage"
	"github.com/pders01/chronicle/internal/uistate"
)

const (
	FallbackMessage       = "Failed to save article"
	SessionExpiredMessage = "Session expired, please log in again."
	defaultSuccessMessage = "Article saved"
)

type Gateway interface {
	CreateArticle(ctx context.Context, payload gateway.ArticlePayload) (string, error)
	UpdateArticle(ctx context.Context, id int, payload gateway.ArticlePayload) (string, error)
}

// Session supplies the author id for new articles.
type Session interface {
	UserID() (int, error)
}

// ImageEncoder turns a staged local file into the inline wire form.
type ImageEncoder interface {
	EncodeFile(path string) (string, error)
}

// Target selects create or update. The caller decides; nothing is inferred
// from the draft.
type Target struct {
	articleID int
}

func Insert() Target { return Target{} }
func Update(id int) Target { return Target{articleID: id} }
func (t Target) IsInsert() bool { return t.articleID == 0 }
func (t Target) ArticleID() int { return t.articleID }

type Outcome int

const (
	Success Outcome = iota
	ValidationFailure
	GatewayFailure
	// Busy: another submit is still running; nothing was done.
	Busy
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case ValidationFailure:
		return "validation failure"
	case GatewayFailure:
		return "gateway failure"
	case Busy:
		return "busy"
	default:
		return "unknown"
	}
}

type Result struct {
	Outcome Outcome
	Message string
	Err     error
}

type Pipeline struct {
	gw      Gateway
	session Session
	encoder ImageEncoder

	mu    sync.Mutex
	state *uistate.Observable[uistate.State]
}

func New(gw Gateway, session Session, encoder ImageEncoder) *Pipeline {
	return &Pipeline{
		gw:      gw,
		session: session,
		encoder: encoder,
		state:   uistate.NewObservable(uistate.IdleState()),
	}
}

func (p *Pipeline) State() uistate.State {
	return p.state.Get()
}

func (p *Pipeline) Subscribe(ctx context.Context) <-chan uistate.State {
	return p.state.Subscribe(ctx)
}

// Reset returns the pipeline to Idle unless a submit is running.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.state.Get().IsLoading() {
		p.state.Set(uistate.IdleState())
	}
}

// Submit validates d for status and sends it to target. It never retries.
func (p *Pipeline) Submit(ctx context.Context, d *draft.Draft, status gateway.Status, target Target) Result {
	p.mu.Lock()
	if p.state.Get().IsLoading() {
		p.mu.Unlock()
		return Result{Outcome: Busy}
	}
	if err := d.Validate(status); err != nil {
		p.state.Set(uistate.ErrorState(err.Error()))
		p.mu.Unlock()
		return Result{Outcome: ValidationFailure, Message: err.Error(), Err: err}
	}
	p.state.Set(uistate.LoadingState())
	p.mu.Unlock()

	log := debuglog.WithFields(map[string]interface{}{
		"component":  "submit",
		"article_id": target.ArticleID(),
		"status":     string(status),
	})

	res := p.send(ctx, d.Snapshot(), status, target)

	p.mu.Lock()
	defer p.mu.Unlock()
	if res.Outcome == Success {
		p.state.Set(uistate.SuccessState(res.Message))
		log.Infof("article saved")
	} else {
		p.state.Set(uistate.ErrorState(res.Message))
		log.Warnf("submit failed: %v", res.Err)
	}
	return res
}

func (p *Pipeline) send(ctx context.Context, snap draft.Snapshot, status gateway.Status, target Target) Result {
	payload := BuildPayload(snap, status)

	if target.IsInsert() {
		uid, err := p.session.UserID()
		if err != nil {
			return failure(err)
		}
		if uid == storage.NoUser {
			return Result{Outcome: GatewayFailure, Message: SessionExpiredMessage, Err: errors.New("no session")}
		}
		payload.UserID = &uid
	}

	images, err := p.encodeImages(snap.NewImages)
	if err != nil {
		var ie *imageError
		msg := FallbackMessage
		if errors.As(err, &ie) {
			msg = fmt.Sprintf("Could not prepare image %s: %v", filepath.Base(ie.source), ie.err)
		}
		return Result{Outcome: GatewayFailure, Message: msg, Err: err}
	}
	payload.Images = images

	var msg string
	if target.IsInsert() {
		msg, err = p.gw.CreateArticle(ctx, payload)
	} else {
		msg, err = p.gw.UpdateArticle(ctx, target.ArticleID(), payload)
	}
	if err != nil {
		return failure(err)
	}
	if msg == "" {
		msg = defaultSuccessMessage
	}
	return Result{Outcome: Success, Message: msg}
}

func failure(err error) Result {
	return Result{Outcome: GatewayFailure, Message: gateway.UserMessage(err, FallbackMessage), Err: err}
}

type imageError struct {
	source string
	err    error
}

func (e *imageError) Error() string {
	return fmt.Sprintf("encoding %s: %v", e.source, e.err)
}

func (e *imageError) Unwrap() error {
	return e.err
}

func (p *Pipeline) encodeImages(imgs []draft.NewImage) ([]string, error) {
	out := make([]string, 0, len(imgs))
	for _, img := range imgs {
		enc, err := p.encoder.EncodeFile(img.Source)
		if err != nil {
			return nil, &imageError{source: img.Source, err: err}
		}
		out = append(out, enc)
	}
	return out, nil
}

// BuildPayload maps a draft snapshot to the wire payload, without images or
// user id. Blank optional fields become null so a partial draft save does not
// overwrite what the server already has.
func BuildPayload(snap draft.Snapshot, status gateway.Status) gateway.ArticlePayload {
	payload := gateway.ArticlePayload{
		Title:  strings.TrimSpace(snap.Title),
		Status: status,
	}
	if strings.TrimSpace(snap.Content) != "" {
		content := snap.Content
		payload.Content = &content
	}
	if snap.Category != nil {
		id := snap.Category.ID
		payload.CategoryID = &id
	}
	if tags := strings.TrimSpace(snap.Tags); tags != "" {
		payload.Tags = &tags
	}
	if len(snap.NewImages) > 0 {
		payload.ImageCaptions = make([]string, len(snap.NewImages))
		for i, img := range snap.NewImages {
			payload.ImageCaptions[i] = img.Caption
		}
	}
	if len(snap.PendingDeletions) > 0 {
		payload.DeletedImages = append([]string(nil), snap.PendingDeletions...)
	}
	return payload
}
