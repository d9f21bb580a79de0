package service

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/pyladiescon/confops/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.AuditEvent
	err    error
}

func (s *recordingSink) Publish(_ context.Context, e domain.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *recordingSink) types() []domain.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.EventType, len(s.events))
	for i, e := range s.events {
		out[i] = e.EventType
	}
	return out
}

type fakeOrders struct {
	orders []domain.Order
	err    error
}

func (f *fakeOrders) EachOrder(_ context.Context, fn func(domain.Order) error) error {
	if f.err != nil {
		return f.err
	}
	for _, o := range f.orders {
		if err := fn(o); err != nil {
			return err
		}
	}
	return nil
}

type fakeChannel struct {
	mu      sync.Mutex
	posts   []string
	deleted []string
	next    int
	postErr error
}

func (f *fakeChannel) PostMessage(_ context.Context, _ string, content string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return nil, f.postErr
	}
	f.posts = append(f.posts, content)
	f.next++
	return []string{string(rune('a' + f.next - 1))}, nil
}

func (f *fakeChannel) DeleteMessage(_ context.Context, _ string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}
