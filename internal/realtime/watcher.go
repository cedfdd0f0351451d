package realtime

import (
	"context"

	wire "nuestra-historia/pkg/models"
)

type delivery struct {
	snapshot wire.Snapshot
	err      error
}

// watcher owns the delivery goroutine of one listener. Its queue holds a
// single pending delivery; a newer snapshot replaces an undelivered older one.
type watcher struct {
	id      int64
	fn      Listener
	pending chan delivery
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func newWatcher(id int64, fn Listener) *watcher {
	ctx, cancel := context.WithCancel(context.Background())
	w := &watcher{
		id:      id,
		fn:      fn,
		pending: make(chan delivery, 1),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *watcher) run() {
	defer close(w.done)

	for {
		select {
		case <-w.ctx.Done():
			return
		case d := <-w.pending:
			if w.ctx.Err() != nil {
				return
			}
			w.fn(d.snapshot, d.err)
		}
	}
}

// offer must only be called with the collection's publishMu held.
func (w *watcher) offer(d delivery) {
	select {
	case w.pending <- d:
		return
	default:
	}

	select {
	case <-w.pending:
	default:
	}

	select {
	case w.pending <- d:
	default:
	}
}

// stop ends delivery. A callback already running is allowed to finish.
func (w *watcher) stop() {
	w.cancel()
}
