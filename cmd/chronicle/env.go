package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pders01/chronicle/internal/gateway"
	"github.com/pders01/chronicle/internal/storage"
)

// env is what every networked command needs: the local store and a client
// that authenticates with the stored session.
type env struct {
	store  *storage.Store
	client *gateway.Client
}

func openEnv() (*env, error) {
	store, err := storage.NewStoreWithTimeout(cfg.Database.Path, cfg.Database.Timeout)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", cfg.Database.Path, err)
	}
	client, err := gateway.NewClientFromConfig(cfg.API, store)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating API client: %w", err)
	}
	return &env{store: store, client: client}, nil
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: closing database: %v\n", err)
	}
}

// requireUser returns the logged-in user id or an error telling the user to
// log in first.
func (e *env) requireUser() (int, error) {
	id, err := e.store.UserID()
	if err != nil {
		return 0, err
	}
	if id == storage.NoUser {
		return 0, fmt.Errorf("not logged in, run `chronicle login` first")
	}
	return id, nil
}

// commandContext is cancelled on interrupt.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}
