package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/chronicle/internal/gateway"
	"github.com/pders01/chronicle/internal/gateway/fakeapi"
	"github.com/pders01/chronicle/internal/gateway/gatewaytest"
	"github.com/pders01/chronicle/internal/storage"
	"github.com/pders01/chronicle/internal/uistate"
)

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLogin_FormChecks(t *testing.T) {
	stub := &gatewaytest.Stub{}
	flow := New(stub, newStore(t))

	tests := []struct {
		name, email, password, want string
	}{
		{"both empty", "", "", MsgEmptyCredentials},
		{"blank email", "   ", "pw", MsgEmptyCredentials},
		{"empty password", "ada@example.com", "", MsgEmptyCredentials},
		{"bad email", "ada", "pw", MsgInvalidEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := flow.Login(context.Background(), tt.email, tt.password)
			var authErr *Error
			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, tt.want, authErr.Message)
			assert.Equal(t, uistate.ErrorState(tt.want), flow.State())
		})
	}
	assert.Equal(t, 0, stub.Calls("Login"))
}

func TestLogin_HTTPErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"unauthorized", &gateway.APIError{StatusCode: 401, Message: "wrong password"}, MsgBadCredentials},
		{"not found", &gateway.APIError{StatusCode: 404}, MsgAccountNotFound},
		{"server error", &gateway.APIError{StatusCode: 503}, "Login failed (code 503)"},
		{"envelope refusal", &gateway.APIError{StatusCode: 200, Message: "Account locked"}, "Account locked"},
		{"offline", &gateway.TransportError{Op: "POST auth/login", Err: errors.New("dial tcp")}, gateway.TransportMessage},
		{"unexpected", errors.New("boom"), "Something went wrong: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &gatewaytest.Stub{
				LoginFunc: func(context.Context, gateway.LoginRequest) (*gateway.Session, error) {
					return nil, tt.err
				},
			}
			store := newStore(t)
			flow := New(stub, store)

			_, err := flow.Login(context.Background(), "ada@example.com", "secret1")
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, uistate.ErrorState(tt.want), flow.State())

			id, err := store.UserID()
			require.NoError(t, err)
			assert.Equal(t, storage.NoUser, id)
		})
	}
}

func TestLogin_StoresSession(t *testing.T) {
	stub := &gatewaytest.Stub{
		LoginFunc: func(_ context.Context, req gateway.LoginRequest) (*gateway.Session, error) {
			assert.Equal(t, "ada@example.com", req.Email, "email is trimmed")
			return &gateway.Session{Token: "tok", User: &gateway.User{ID: 9, FullName: "Ada Lovelace"}}, nil
		},
	}
	store := newStore(t)
	flow := New(stub, store)

	user, err := flow.Login(context.Background(), " ada@example.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, 9, user.ID)
	assert.Equal(t, uistate.SuccessState("Welcome back, Ada Lovelace"), flow.State())

	id, _ := store.UserID()
	token, _ := store.Token()
	assert.Equal(t, 9, id)
	assert.Equal(t, "tok", token)
}

func TestLogin_MissingUser(t *testing.T) {
	stub := &gatewaytest.Stub{
		LoginFunc: func(context.Context, gateway.LoginRequest) (*gateway.Session, error) {
			return &gateway.Session{Token: "tok"}, nil
		},
	}
	flow := New(stub, newStore(t))
	_, err := flow.Login(context.Background(), "ada@example.com", "secret1")
	require.Error(t, err)
	assert.True(t, flow.State().IsError())
}

func TestLogin_BusyWhileRunning(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	stub := &gatewaytest.Stub{
		LoginFunc: func(context.Context, gateway.LoginRequest) (*gateway.Session, error) {
			close(entered)
			<-release
			return &gateway.Session{Token: "t", User: &gateway.User{ID: 1}}, nil
		},
	}
	flow := New(stub, newStore(t))

	done := make(chan error, 1)
	go func() {
		_, err := flow.Login(context.Background(), "ada@example.com", "secret1")
		done <- err
	}()
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("login did not start")
	}

	_, err := flow.Login(context.Background(), "ada@example.com", "secret1")
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	assert.NoError(t, <-done)
}

func TestRegister_FormChecks(t *testing.T) {
	stub := &gatewaytest.Stub{}
	flow := New(stub, newStore(t))

	tests := []struct {
		name, fullName, email, password, want string
	}{
		{"missing name", "", "ada@example.com", "secret1", MsgAllFieldsNeeded},
		{"bad name", "Ada <script>", "ada@example.com", "secret1", MsgInvalidName},
		{"bad email", "Ada Lovelace", "ada.example.com", "secret1", MsgInvalidEmail},
		{"short password", "Ada Lovelace", "ada@example.com", "12345", MsgShortPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow.Reset()
			_, err := flow.Register(context.Background(), tt.fullName, tt.email, tt.password)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
	assert.Equal(t, 0, stub.Calls("Register"))
}

func TestRegister_WithoutTokenAsksForLogin(t *testing.T) {
	stub := &gatewaytest.Stub{
		RegisterFunc: func(context.Context, gateway.RegisterRequest) (*gateway.Session, error) {
			return &gateway.Session{User: &gateway.User{ID: 3}}, nil
		},
	}
	store := newStore(t)
	flow := New(stub, store)

	user, err := flow.Register(context.Background(), "Ada Lovelace", "ada@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, 3, user.ID)
	assert.Equal(t, uistate.SuccessState(MsgRegistered), flow.State())

	id, _ := store.UserID()
	assert.Equal(t, storage.NoUser, id)
}

func TestFlow_AgainstFakeAPI(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fake := fakeapi.New(zerolog.Nop())
	fake.AddUser("Herodotus", "hero@example.org", "histories")
	srv := httptest.NewServer(fake.Router())
	defer srv.Close()

	client, err := gateway.NewClient(gateway.Options{BaseURL: srv.URL + "/api/", Timeout: 5 * time.Second})
	require.NoError(t, err)

	store := newStore(t)
	flow := New(client, store)
	ctx := context.Background()

	_, err = flow.Login(ctx, "hero@example.org", "wrong")
	assert.EqualError(t, err, MsgBadCredentials)

	_, err = flow.Login(ctx, "nobody@example.org", "whatever")
	assert.EqualError(t, err, MsgAccountNotFound)

	user, err := flow.Login(ctx, "hero@example.org", "histories")
	require.NoError(t, err)
	id, _ := store.UserID()
	assert.Equal(t, user.ID, id)

	_, err = flow.Register(ctx, "Thucydides", "thuc@example.org", "peloponnese")
	require.NoError(t, err)
	id, _ = store.UserID()
	assert.NotEqual(t, user.ID, id, "registering logs the new account in")

	require.NoError(t, flow.Logout())
	id, _ = store.UserID()
	assert.Equal(t, storage.NoUser, id)
	assert.Equal(t, uistate.SuccessState(MsgLoggedOut), flow.State())
}
