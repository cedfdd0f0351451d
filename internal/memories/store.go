// Package memories owns the gallery's list of memory records. The list lives
// in a realtime collection; the Store decodes and orders every snapshot once
// so views never sort or splice it themselves.
package memories

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"nuestra-historia/internal/realtime"
	wire "nuestra-historia/pkg/models"
)

// CancelFunc releases a subscription. Calling it more than once is a no-op.
type CancelFunc func()

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used for the default date.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is the single source of truth for the memory list.
type Store struct {
	coll       realtime.Collection
	collection string
	now        func() time.Time
	logger     *slog.Logger
}

func NewStore(coll realtime.Collection, collection string, opts ...Option) *Store {
	s := &Store{
		coll:       coll,
		collection: collection,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Collection returns the name of the backing collection.
func (s *Store) Collection() string {
	return s.collection
}

// Subscribe delivers the ordered list on every change of the collection,
// starting with its current content. Failed deliveries reach onError as a
// *SubscriptionError; onError may be nil. The caller owns the returned
// CancelFunc and must call it when it stops listening.
func (s *Store) Subscribe(ctx context.Context, onChange func([]Memory), onError func(error)) (CancelFunc, error) {
	unsubscribe, err := s.coll.Watch(ctx, s.collection, func(snapshot wire.Snapshot, err error) {
		if err != nil {
			subErr := &SubscriptionError{Collection: s.collection, Err: err}
			s.logger.Warn("memory subscription failed", "collection", s.collection, "error", err)
			if onError != nil {
				onError(subErr)
			}
			return
		}
		onChange(Decode(snapshot))
	})
	if err != nil {
		return nil, &SubscriptionError{Collection: s.collection, Err: err}
	}

	return CancelFunc(unsubscribe), nil
}

// List reads the collection once and returns it in display order.
func (s *Store) List(ctx context.Context) ([]Memory, error) {
	snapshot, err := s.coll.Get(ctx, s.collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.collection, err)
	}
	return Decode(snapshot), nil
}

// Create appends a memory and returns its server assigned id. It does not
// validate f and does not retry; the new record reaches subscribers through
// the next snapshot only.
func (s *Store) Create(ctx context.Context, f Fields) (string, error) {
	id, err := s.coll.Push(ctx, s.collection, Encode(f, s.now()))
	if err != nil {
		return "", &RemoteWriteError{Op: "create", Err: err}
	}

	s.logger.Info("memory created", "collection", s.collection, "id", id)
	return id, nil
}

// Remove deletes a memory. Removing an id that no longer exists succeeds.
func (s *Store) Remove(ctx context.Context, id string) error {
	if err := s.coll.Remove(ctx, s.collection, id); err != nil {
		return &RemoteWriteError{Op: "remove", ID: id, Err: err}
	}

	s.logger.Info("memory removed", "collection", s.collection, "id", id)
	return nil
}
