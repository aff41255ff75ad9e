package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pders01/chronicle/internal/debuglog"
	"github.com/pders01/chronicle/internal/gateway"
	"github.com/pders01/chronicle/internal/uistate"
	"github.com/pders01/chronicle/internal/validation"
)

const (
	MsgNameEmailRequired = "Name and email cannot be empty"
	MsgInvalidEmail      = "Enter a valid email address (e.g. name@example.com)"
	MsgInvalidName       = "Name may only contain letters, numbers and spaces"
	MsgProfileUpdated    = "Profile updated"
	MsgAccountDeleted    = "Account deleted"
)

type UserGateway interface {
	GetUser(ctx context.Context, id int) (*gateway.User, error)
	UpdateUser(ctx context.Context, id int, update gateway.UserUpdate) (string, error)
	DeleteUser(ctx context.Context, id int) (string, error)
}

type Field int

const (
	FullName Field = iota
	Email
	Bio
	Password
)

// Fields is the editable form. An empty Password leaves it unchanged.
type Fields struct {
	FullName string
	Email    string
	Bio      string
	Password string
}

// EditorState adds the terminal "account deleted" outcome to the usual
// screen states.
type EditorState struct {
	uistate.State
	Deleted bool
}

type Editor struct {
	gw      UserGateway
	session Session
	form    *validation.Form

	mu       sync.Mutex
	busy     bool
	fields   Fields
	baseline Fields
	state    *uistate.Observable[EditorState]
}

func NewEditor(gw UserGateway, session Session) *Editor {
	return &Editor{
		gw:      gw,
		session: session,
		form:    validation.NewForm(),
		state:   uistate.NewObservable(EditorState{State: uistate.IdleState()}),
	}
}

func (e *Editor) State() EditorState { return e.state.Get() }

func (e *Editor) Subscribe(ctx context.Context) <-chan EditorState {
	return e.state.Subscribe(ctx)
}

// Load fills the form from the service and records the baseline.
func (e *Editor) Load(ctx context.Context) (Fields, error) {
	uid, err := currentUser(e.session)
	if err != nil {
		e.setState(uistate.ErrorState(sessionMessage(err)))
		return Fields{}, err
	}
	e.setState(uistate.LoadingState())
	u, err := e.gw.GetUser(ctx, uid)
	if err != nil {
		e.setState(uistate.ErrorState(gateway.UserMessage(err, "Failed to load profile")))
		return Fields{}, err
	}

	e.mu.Lock()
	e.fields = Fields{FullName: u.FullName, Email: u.Email, Bio: u.Bio}
	e.baseline = e.fields
	f := e.fields
	e.mu.Unlock()

	e.setState(uistate.IdleState())
	return f, nil
}

func (e *Editor) Set(f Field, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch f {
	case FullName:
		e.fields.FullName = value
	case Email:
		e.fields.Email = value
	case Bio:
		e.fields.Bio = value
	case Password:
		e.fields.Password = value
	}
}

func (e *Editor) Fields() Fields {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fields
}

// HasChanges reports edits since Load or the last successful Submit. Any
// typed password counts as a change.
func (e *Editor) HasChanges() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fields.FullName != e.baseline.FullName ||
		e.fields.Email != e.baseline.Email ||
		e.fields.Bio != e.baseline.Bio ||
		e.fields.Password != ""
}

// Submit validates and saves the form.
func (e *Editor) Submit(ctx context.Context) error {
	if !e.begin() {
		return errors.New("profile: update already in progress")
	}
	defer e.end()

	f := e.Fields()
	update := gateway.UserUpdate{
		FullName: strings.TrimSpace(f.FullName),
		Email:    strings.TrimSpace(f.Email),
	}
	if f.Password != "" {
		pw := f.Password
		update.Password = &pw
	}
	bio := f.Bio
	update.Bio = &bio

	if msg := e.check(update); msg != "" {
		e.setState(uistate.ErrorState(msg))
		return errors.New(msg)
	}

	uid, err := currentUser(e.session)
	if err != nil {
		e.setState(uistate.ErrorState(sessionMessage(err)))
		return err
	}

	e.setState(uistate.LoadingState())
	msg, err := e.gw.UpdateUser(ctx, uid, update)
	if err != nil {
		debuglog.Warnf("profile update failed: %v", err)
		e.setState(uistate.ErrorState(gateway.UserMessage(err, "Update failed")))
		return err
	}
	if msg == "" {
		msg = MsgProfileUpdated
	}

	e.mu.Lock()
	e.fields = Fields{FullName: update.FullName, Email: update.Email, Bio: f.Bio}
	e.baseline = e.fields
	e.mu.Unlock()

	e.setState(uistate.SuccessState(msg))
	return nil
}

// begin claims the editor for one Submit. It reports false when another
// Submit holds it.
func (e *Editor) begin() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return false
	}
	e.busy = true
	return true
}

func (e *Editor) end() {
	e.mu.Lock()
	e.busy = false
	e.mu.Unlock()
}

// DeleteAccount removes the account and, on success, the local session.
func (e *Editor) DeleteAccount(ctx context.Context) error {
	uid, err := currentUser(e.session)
	if err != nil {
		e.setState(uistate.ErrorState(sessionMessage(err)))
		return err
	}
	e.setState(uistate.LoadingState())
	msg, err := e.gw.DeleteUser(ctx, uid)
	if err != nil {
		e.setState(uistate.ErrorState(gateway.UserMessage(err, "Failed to delete account")))
		return err
	}
	if err := e.session.ClearSession(); err != nil {
		e.setState(uistate.ErrorState("Something went wrong: " + err.Error()))
		return fmt.Errorf("clearing session: %w", err)
	}
	if msg == "" {
		msg = MsgAccountDeleted
	}
	debuglog.WithFields(map[string]interface{}{"user_id": uid}).Infof("account deleted")
	e.state.Set(EditorState{State: uistate.SuccessState(msg), Deleted: true})
	return nil
}

func (e *Editor) setState(s uistate.State) {
	e.state.Set(EditorState{State: s})
}

func (e *Editor) check(update gateway.UserUpdate) string {
	err := e.form.Check(update)
	if err == nil {
		return ""
	}
	var fe *validation.FormError
	if !errors.As(err, &fe) {
		return "Something went wrong: " + err.Error()
	}
	switch {
	case fe.HasTag("required"):
		return MsgNameEmailRequired
	case fe.Has("full_name", "fullname"):
		return MsgInvalidName
	case fe.Has("email", "email"):
		return MsgInvalidEmail
	default:
		return "Something went wrong: " + err.Error()
	}
}
