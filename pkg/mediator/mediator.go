// Package mediator routes requests (commands and queries) to a single typed
// handler through an ordered chain of behaviors.
package mediator

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/go-faster/errors"
)

var ErrNoHandler = errors.New("mediator: no handler registered")

// Next invokes the rest of the chain.
type Next func(ctx context.Context, req any) (any, error)

// Behavior wraps request handling. The first registered behavior runs outermost.
type Behavior func(ctx context.Context, req any, next Next) (any, error)

type HandlerFunc[TReq, TRes any] func(ctx context.Context, req TReq) (TRes, error)

// Command marks requests that change state. Embed CommandBase to implement it.
type Command interface {
	isCommand()
}

type CommandBase struct{}

func (CommandBase) isCommand() {}

func IsCommand(req any) bool {
	_, ok := req.(Command)
	return ok
}

type Mediator struct {
	mu        sync.RWMutex
	handlers  map[reflect.Type]Next
	behaviors []Behavior
}

func New(behaviors ...Behavior) *Mediator {
	return &Mediator{
		handlers:  make(map[reflect.Type]Next),
		behaviors: behaviors,
	}
}

func (m *Mediator) Use(behaviors ...Behavior) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.behaviors = append(m.behaviors, behaviors...)
}

// Register binds h to TReq. Registering the same request type twice panics.
func Register[TReq, TRes any](m *Mediator, h HandlerFunc[TReq, TRes]) {
	t := reflect.TypeFor[TReq]()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.handlers[t]; exists {
		panic(fmt.Sprintf("mediator: handler for %s already registered", t))
	}
	m.handlers[t] = func(ctx context.Context, req any) (any, error) {
		typed, ok := req.(TReq)
		if !ok {
			return nil, fmt.Errorf("mediator: unexpected request %T for %s", req, t)
		}
		return h(ctx, typed)
	}
}

// Send dispatches req and converts the result to TRes.
func Send[TRes any](ctx context.Context, m *Mediator, req any) (TRes, error) {
	var zero TRes
	res, err := m.Send(ctx, req)
	if err != nil {
		if typed, ok := res.(TRes); ok {
			return typed, err
		}
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	typed, ok := res.(TRes)
	if !ok {
		return zero, fmt.Errorf("mediator: %s returned %T, want %T", Name(req), res, zero)
	}
	return typed, nil
}

func (m *Mediator) Send(ctx context.Context, req any) (any, error) {
	m.mu.RLock()
	handler, ok := m.handlers[reflect.TypeOf(req)]
	behaviors := m.behaviors
	m.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrNoHandler, "%T", req)
	}

	next := handler
	for i := len(behaviors) - 1; i >= 0; i-- {
		b, inner := behaviors[i], next
		next = func(ctx context.Context, req any) (any, error) {
			return b(ctx, req, inner)
		}
	}
	return next(ctx, req)
}

// Name is the request type name without package, e.g. "CreateUser".
func Name(req any) string {
	t := reflect.TypeOf(req)
	if t == nil {
		return "<nil>"
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
