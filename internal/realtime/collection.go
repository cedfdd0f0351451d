// Package realtime implements the subscribable keyed collection that backs the
// gallery. Every change to a collection pushes its full snapshot to all
// listeners watching it.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"sync"
	"time"

	"nuestra-historia/internal/models"
	wire "nuestra-historia/pkg/models"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrClosed is returned once the collection has been shut down.
var ErrClosed = errors.New("realtime collection closed")

// Listener receives every snapshot of a watched collection, or the error that
// prevented reading it. Listeners must not retain or mutate the map after
// returning; each call gets its own copy.
type Listener func(snapshot wire.Snapshot, err error)

// Unsubscribe stops delivery to a listener. Calling it more than once is a no-op.
type Unsubscribe func()

// Collection is a hosted keyed store that pushes full snapshots to listeners.
type Collection interface {
	Watch(ctx context.Context, name string, fn Listener) (Unsubscribe, error)
	Get(ctx context.Context, name string) (wire.Snapshot, error)
	Push(ctx context.Context, name string, rec wire.MemoryRecord) (string, error)
	Remove(ctx context.Context, name, id string) error
}

type Option func(*GormCollection)

func WithLogger(logger *slog.Logger) Option {
	return func(c *GormCollection) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the source of server-side timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *GormCollection) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator overrides how record ids are assigned.
func WithIDGenerator(newID func() string) Option {
	return func(c *GormCollection) {
		if newID != nil {
			c.newID = newID
		}
	}
}

// WithPollInterval makes the collection re-read watched collections on this
// interval so writes made by other processes reach local listeners. Zero
// disables polling.
func WithPollInterval(interval time.Duration) Option {
	return func(c *GormCollection) {
		c.pollInterval = interval
	}
}

// GormCollection stores collections in the memory_records table.
type GormCollection struct {
	db           *gorm.DB
	logger       *slog.Logger
	now          func() time.Time
	newID        func() string
	pollInterval time.Duration

	mu       sync.Mutex
	nextID   int64
	closed   bool
	watchers map[string]map[int64]*watcher

	// publishMu serializes snapshot reads with their fan-out so listeners
	// observe snapshots in the order they were read.
	publishMu    sync.Mutex
	fingerprints map[string]uint64
	failed       map[string]bool

	stop      chan struct{}
	pollDone  chan struct{}
	closeOnce sync.Once
}

func NewGormCollection(db *gorm.DB, opts ...Option) *GormCollection {
	c := &GormCollection{
		db:           db,
		logger:       slog.Default(),
		now:          time.Now,
		newID:        uuid.NewString,
		watchers:     make(map[string]map[int64]*watcher),
		fingerprints: make(map[string]uint64),
		failed:       make(map[string]bool),
		stop:         make(chan struct{}),
		pollDone:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.pollInterval > 0 {
		go c.poll()
	} else {
		close(c.pollDone)
	}

	return c
}

// Get reads the current snapshot of a collection. An absent collection is an
// empty snapshot.
func (c *GormCollection) Get(ctx context.Context, name string) (wire.Snapshot, error) {
	var rows []models.MemoryRecord
	if err := c.db.WithContext(ctx).Where("collection = ?", name).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read collection %s: %w", name, err)
	}

	snapshot := make(wire.Snapshot, len(rows))
	for _, row := range rows {
		snapshot[row.ID] = row.Wire()
	}
	return snapshot, nil
}

// Push appends rec under a generated id. A zero timestamp is replaced by the
// server clock.
func (c *GormCollection) Push(ctx context.Context, name string, rec wire.MemoryRecord) (string, error) {
	if c.isClosed() {
		return "", fmt.Errorf("push to %s: %w", name, ErrClosed)
	}

	id := c.newID()
	if rec.Timestamp == 0 {
		rec.Timestamp = c.now().UnixMilli()
	}

	row := models.FromWire(name, id, rec)
	if err := c.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("push to %s: %w", name, err)
	}
	c.logger.Debug("record pushed", "collection", name, "id", id)

	c.publish(context.WithoutCancel(ctx), name, true)
	return id, nil
}

// Remove deletes a record by id. Removing a missing id succeeds.
func (c *GormCollection) Remove(ctx context.Context, name, id string) error {
	if c.isClosed() {
		return fmt.Errorf("remove %s from %s: %w", id, name, ErrClosed)
	}

	result := c.db.WithContext(ctx).
		Where("collection = ? AND id = ?", name, id).
		Delete(&models.MemoryRecord{})
	if result.Error != nil {
		return fmt.Errorf("remove %s from %s: %w", id, name, result.Error)
	}
	c.logger.Debug("record removed", "collection", name, "id", id, "rows", result.RowsAffected)

	if result.RowsAffected > 0 {
		c.publish(context.WithoutCancel(ctx), name, true)
	}
	return nil
}

// Watch registers fn for every snapshot of the named collection, starting with
// the current one. ctx only bounds registration; delivery lasts until the
// returned Unsubscribe is called or the collection is closed.
func (c *GormCollection) Watch(ctx context.Context, name string, fn Listener) (Unsubscribe, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("watch %s: %w", name, err)
	}
	if fn == nil {
		return nil, fmt.Errorf("watch %s: nil listener", name)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("watch %s: %w", name, ErrClosed)
	}
	c.nextID++
	w := newWatcher(c.nextID, fn)
	if c.watchers[name] == nil {
		c.watchers[name] = make(map[int64]*watcher)
	}
	c.watchers[name][w.id] = w
	c.mu.Unlock()

	c.publishTo(ctx, name, w)

	return func() { c.unwatch(name, w.id) }, nil
}

// Close stops every watcher and the poller.
func (c *GormCollection) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		all := c.watchers
		c.watchers = make(map[string]map[int64]*watcher)
		c.mu.Unlock()

		for _, byID := range all {
			for _, w := range byID {
				w.stop()
			}
		}
		close(c.stop)
	})
	<-c.pollDone
	return nil
}

func (c *GormCollection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *GormCollection) unwatch(name string, id int64) {
	c.mu.Lock()
	w, found := c.watchers[name][id]
	if found {
		delete(c.watchers[name], id)
		if len(c.watchers[name]) == 0 {
			delete(c.watchers, name)
		}
	}
	c.mu.Unlock()

	if found {
		w.stop()
	}
}

func (c *GormCollection) listeners(name string) []*watcher {
	c.mu.Lock()
	defer c.mu.Unlock()

	ws := make([]*watcher, 0, len(c.watchers[name]))
	for _, w := range c.watchers[name] {
		ws = append(ws, w)
	}
	return ws
}

func (c *GormCollection) watchedNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Collect(maps.Keys(c.watchers))
}

// publish reads the collection and fans the snapshot out to its listeners.
// Without force the fan-out only happens when the content changed since the
// last read or the last read failed.
func (c *GormCollection) publish(ctx context.Context, name string, force bool) {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	ws := c.listeners(name)
	if len(ws) == 0 {
		delete(c.fingerprints, name)
		delete(c.failed, name)
		return
	}

	snapshot, err := c.Get(ctx, name)
	if err != nil {
		c.logger.Warn("collection read failed", "collection", name, "error", err)
		c.failed[name] = true
		for _, w := range ws {
			w.offer(delivery{err: err})
		}
		return
	}

	fp := fingerprint(snapshot)
	if !force && !c.failed[name] && c.fingerprints[name] == fp {
		return
	}
	c.fingerprints[name] = fp
	c.failed[name] = false

	for _, w := range ws {
		w.offer(delivery{snapshot: maps.Clone(snapshot)})
	}
}

// publishTo delivers the current snapshot to a single new listener.
func (c *GormCollection) publishTo(ctx context.Context, name string, w *watcher) {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	snapshot, err := c.Get(ctx, name)
	if err != nil {
		// the next poll must fan out even if the content is unchanged
		c.failed[name] = true
		w.offer(delivery{err: err})
		return
	}
	if _, seen := c.fingerprints[name]; !seen {
		c.fingerprints[name] = fingerprint(snapshot)
	}
	w.offer(delivery{snapshot: snapshot})
}

func (c *GormCollection) poll() {
	defer close(c.pollDone)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			for _, name := range c.watchedNames() {
				ctx, cancel := context.WithTimeout(context.Background(), c.pollInterval)
				c.publish(ctx, name, false)
				cancel()
			}
		}
	}
}

// fingerprint hashes a snapshot independently of map iteration order.
func fingerprint(snapshot wire.Snapshot) uint64 {
	d := xxhash.New()
	for _, id := range slices.Sorted(maps.Keys(snapshot)) {
		rec := snapshot[id]
		for _, field := range []string{id, rec.URL, rec.Type, rec.Title, rec.Date, strconv.FormatInt(rec.Timestamp, 10)} {
			_, _ = d.WriteString(field)
			_, _ = d.WriteString("\x00")
		}
	}
	return d.Sum64()
}
