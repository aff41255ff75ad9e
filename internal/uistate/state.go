// Package uistate holds the tagged screen state shared by the controllers and
// a small publish/subscribe cell the TUI observes.
package uistate

import (
	"context"
	"sync"
)

type Kind int

const (
	Idle Kind = iota
	Loading
	Success
	Error
)

func (k Kind) String() string {
	switch k {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// State is a Kind with an optional user-facing message.
type State struct {
	Kind    Kind
	Message string
}

func IdleState() State { return State{Kind: Idle} }
func LoadingState() State { return State{Kind: Loading} }
func SuccessState(msg string) State { return State{Kind: Success, Message: msg} }
func ErrorState(msg string) State { return State{Kind: Error, Message: msg} }
func (s State) IsLoading() bool { return s.Kind == Loading }
func (s State) IsError() bool { return s.Kind == Error }

// Observable is a last-write-wins cell. Subscribers receive the current value
// on subscribe and then the newest value after each Set; intermediate values
// may be skipped.
type Observable[T any] struct {
	mu    sync.Mutex
	value T
	subs  map[chan T]struct{}
}

func NewObservable[T any](initial T) *Observable[T] {
	return &Observable[T]{value: initial}
}

func (o *Observable[T]) Get() T {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.value
}

func (o *Observable[T]) Set(v T) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.value = v
	for ch := range o.subs {
		offer(ch, v)
	}
}

// Update applies fn to the current value under the lock and publishes the result.
func (o *Observable[T]) Update(fn func(T) T) T {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.value = fn(o.value)
	for ch := range o.subs {
		offer(ch, o.value)
	}
	return o.value
}

// Subscribe returns a channel closed when ctx is done.
func (o *Observable[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	o.mu.Lock()
	if o.subs == nil {
		o.subs = make(map[chan T]struct{})
	}
	o.subs[ch] = struct{}{}
	ch <- o.value
	o.mu.Unlock()

	go func() {
		<-ctx.Done()
		o.mu.Lock()
		delete(o.subs, ch)
		close(ch)
		o.mu.Unlock()
	}()

	return ch
}

func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}
