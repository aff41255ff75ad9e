// Package auth runs the login, registration and logout flows and keeps the
// stored session in step with them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/pders01/chronicle/internal/debuglog"
	"github.com/pders01/chronicle/internal/gateway"
	"github.com/pders01/chronicle/internal/uistate"
	"github.com/pders01/chronicle/internal/validation"
)

const (
	MsgEmptyCredentials = "Email and password cannot be empty"
	MsgBadCredentials   = "Incorrect email or password"
	MsgAccountNotFound  = "Account not found"
	MsgInvalidEmail     = "Enter a valid email address (e.g. name@example.com)"
	MsgAllFieldsNeeded  = "All fields are required"
	MsgInvalidName      = "Name may only contain letters, numbers and spaces"
	MsgShortPassword    = "Password must be at least 6 characters"
	MsgRegistered       = "Registration successful, please log in"
	MsgLoggedOut        = "Logged out"
)

type Gateway interface {
	Login(ctx context.Context, req gateway.LoginRequest) (*gateway.Session, error)
	Register(ctx context.Context, req gateway.RegisterRequest) (*gateway.Session, error)
}

// SessionStore persists who is logged in.
type SessionStore interface {
	SaveSession(userID int, token string) error
	ClearSession() error
}

// Error carries the message shown to the user alongside the cause.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Err }

// ErrBusy is returned when a flow is already running.
var ErrBusy = errors.New("auth: request already in progress")

type Flow struct {
	gw    Gateway
	store SessionStore
	form  *validation.Form

	mu    sync.Mutex
	state *uistate.Observable[uistate.State]
}

func New(gw Gateway, store SessionStore) *Flow {
	return &Flow{
		gw:    gw,
		store: store,
		form:  validation.NewForm(),
		state: uistate.NewObservable(uistate.IdleState()),
	}
}

func (f *Flow) State() uistate.State {
	return f.state.Get()
}

func (f *Flow) Subscribe(ctx context.Context) <-chan uistate.State {
	return f.state.Subscribe(ctx)
}

// Reset clears a finished result so the form starts fresh.
func (f *Flow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.state.Get().IsLoading() {
		f.state.Set(uistate.IdleState())
	}
}

// Login checks the form, authenticates and stores the session.
func (f *Flow) Login(ctx context.Context, email, password string) (*gateway.User, error) {
	req := gateway.LoginRequest{Email: strings.TrimSpace(email), Password: password}
	if err := f.begin(func() error { return f.checkLogin(req) }); err != nil {
		return nil, err
	}

	sess, err := f.gw.Login(ctx, req)
	if err != nil {
		return nil, f.fail(loginMessage(err), err)
	}
	return f.establish(sess, "Welcome back")
}

// Register checks the form and creates an account. When the service answers
// with a token the new user is logged in straight away.
func (f *Flow) Register(ctx context.Context, fullName, email, password string) (*gateway.User, error) {
	req := gateway.RegisterRequest{
		FullName: strings.TrimSpace(fullName),
		Email:    strings.TrimSpace(email),
		Password: password,
	}
	if err := f.begin(func() error { return f.checkRegister(req) }); err != nil {
		return nil, err
	}

	sess, err := f.gw.Register(ctx, req)
	if err != nil {
		return nil, f.fail(gateway.UserMessage(err, "Registration failed"), err)
	}
	if sess == nil || sess.Token == "" || sess.User == nil {
		var user *gateway.User
		if sess != nil {
			user = sess.User
		}
		f.finish(uistate.SuccessState(MsgRegistered))
		return user, nil
	}
	return f.establish(sess, "Welcome")
}

// Logout forgets the stored session.
func (f *Flow) Logout() error {
	if err := f.store.ClearSession(); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	debuglog.Infof("logged out")
	f.state.Set(uistate.SuccessState(MsgLoggedOut))
	return nil
}

func (f *Flow) begin(check func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Get().IsLoading() {
		return ErrBusy
	}
	if err := check(); err != nil {
		f.state.Set(uistate.ErrorState(err.Error()))
		return err
	}
	f.state.Set(uistate.LoadingState())
	return nil
}

func (f *Flow) finish(s uistate.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Set(s)
}

func (f *Flow) fail(msg string, err error) error {
	debuglog.Warnf("auth failed: %v", err)
	f.finish(uistate.ErrorState(msg))
	return &Error{Message: msg, Err: err}
}

func (f *Flow) establish(sess *gateway.Session, greeting string) (*gateway.User, error) {
	if sess == nil || sess.User == nil {
		return nil, f.fail("Something went wrong: response carried no user", errors.New("empty session"))
	}
	if err := f.store.SaveSession(sess.User.ID, sess.Token); err != nil {
		return nil, f.fail("Something went wrong: "+err.Error(), err)
	}
	debuglog.WithFields(map[string]interface{}{"user_id": sess.User.ID}).Infof("session established")
	f.finish(uistate.SuccessState(fmt.Sprintf("%s, %s", greeting, sess.User.FullName)))
	return sess.User, nil
}

func (f *Flow) checkLogin(req gateway.LoginRequest) error {
	err := f.form.Check(req)
	var fe *validation.FormError
	if !errors.As(err, &fe) {
		return err
	}
	if fe.HasTag("required") {
		return &Error{Message: MsgEmptyCredentials, Err: err}
	}
	return &Error{Message: MsgInvalidEmail, Err: err}
}

func (f *Flow) checkRegister(req gateway.RegisterRequest) error {
	err := f.form.Check(req)
	var fe *validation.FormError
	if !errors.As(err, &fe) {
		return err
	}
	switch {
	case fe.HasTag("required"):
		return &Error{Message: MsgAllFieldsNeeded, Err: err}
	case fe.Has("full_name", "fullname"):
		return &Error{Message: MsgInvalidName, Err: err}
	case fe.Has("email", "email"):
		return &Error{Message: MsgInvalidEmail, Err: err}
	default:
		return &Error{Message: MsgShortPassword, Err: err}
	}
}

// loginMessage maps HTTP rejections to login-specific wording and defers
// to the shared mapping for everything else.
func loginMessage(err error) string {
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized:
			return MsgBadCredentials
		case http.StatusNotFound:
			return MsgAccountNotFound
		default:
			return fmt.Sprintf("Login failed (code %d)", apiErr.StatusCode)
		}
	}
	return gateway.UserMessage(err, "Login failed")
}
