// Package gallery drives one viewer's gallery: the memory grid, the detail
// dialog with its delete flow and the upload dialog with its state machine.
//
// A View runs a single event loop. Every state change happens on that loop;
// remote calls run on helper goroutines and post their completion back to it.
package gallery

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"nuestra-historia/internal/memories"
	"nuestra-historia/internal/upload"
)

var (
	ErrClosed           = errors.New("gallery view closed")
	ErrFormNotOpen      = errors.New("upload form is not open")
	ErrUploadInProgress = errors.New("an upload is in progress")
	ErrUnknownMemory    = errors.New("memory not in gallery")
	ErrNothingSelected  = errors.New("no memory selected")
	ErrNotConfirmed     = errors.New("delete was not confirmed")
)

// Store is the part of the memory store a view needs.
type Store interface {
	Subscribe(ctx context.Context, onChange func([]memories.Memory), onError func(error)) (memories.CancelFunc, error)
	Create(ctx context.Context, f memories.Fields) (string, error)
	Remove(ctx context.Context, id string) error
}

type State string

const (
	Idle      State = "idle"
	FormOpen  State = "form_open"
	Uploading State = "uploading"
)

// Draft is the upload form's input.
type Draft struct {
	Title string `json:"title"`
	Date  string `json:"date"`
}

type Option func(*View)

func WithLogger(logger *slog.Logger) Option {
	return func(v *View) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithRenderer registers fn to receive the screen after every change. fn runs
// on the view's loop and must not call back into the view.
func WithRenderer(fn func(Screen)) Option {
	return func(v *View) {
		v.render = fn
	}
}

type View struct {
	store     Store
	widget    upload.Widget
	widgetCfg upload.Config
	logger    *slog.Logger
	render    func(Screen)

	ctx       context.Context
	cancel    context.CancelFunc
	events    chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	release   memories.CancelFunc

	// Owned by the loop goroutine.
	state        State
	draft        Draft
	list         []memories.Memory
	selectedID   string
	confirming   bool
	deleting     bool
	notice       error
	banner       error
	session      uint64
	cancelUpload context.CancelFunc
}

// New starts a view subscribed to store. The caller must Close it.
func New(ctx context.Context, store Store, widget upload.Widget, widgetCfg upload.Config, opts ...Option) (*View, error) {
	viewCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	v := &View{
		store:     store,
		widget:    widget,
		widgetCfg: widgetCfg,
		logger:    slog.Default(),
		ctx:       viewCtx,
		cancel:    cancel,
		events:    make(chan func(), 64),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		state:     Idle,
		list:      []memories.Memory{},
	}
	for _, opt := range opts {
		opt(v)
	}

	go v.loop()

	release, err := store.Subscribe(ctx, func(list []memories.Memory) {
		v.post(func() { v.applyList(list) })
	}, func(err error) {
		v.post(func() { v.banner = err })
	})
	if err != nil {
		v.Close()
		return nil, err
	}
	v.release = release

	return v, nil
}

// Close stops the loop, abandons in-flight calls and releases the
// subscription. Calling it again is a no-op.
func (v *View) Close() error {
	v.closeOnce.Do(func() {
		close(v.quit)
		<-v.done
		v.cancel()
		if v.release != nil {
			v.release()
		}
	})
	return nil
}

func (v *View) loop() {
	defer close(v.done)

	for {
		select {
		case <-v.quit:
			return
		case fn := <-v.events:
			fn()
			if v.render != nil {
				v.render(v.screen())
			}
		}
	}
}

// post queues fn on the loop. It is dropped once the view is closed.
func (v *View) post(fn func()) {
	select {
	case v.events <- fn:
	case <-v.quit:
	}
}

// do runs fn on the loop and waits for it.
func (v *View) do(fn func() error) error {
	result := make(chan error, 1)
	v.post(func() { result <- fn() })

	select {
	case err := <-result:
		return err
	case <-v.quit:
		return ErrClosed
	}
}

// Screen returns the current view model.
func (v *View) Screen() (Screen, error) {
	var s Screen
	err := v.do(func() error {
		s = v.screen()
		return nil
	})
	return s, err
}

func (v *View) applyList(list []memories.Memory) {
	v.list = list
	v.banner = nil

	if v.selectedID != "" && v.find(v.selectedID) == nil {
		v.selectedID = ""
		v.confirming = false
	}
}

func (v *View) find(id string) *memories.Memory {
	for i := range v.list {
		if v.list[i].ID == id {
			return &v.list[i]
		}
	}
	return nil
}

// OpenForm shows a blank upload form. It does nothing unless the view is idle.
func (v *View) OpenForm() error {
	return v.do(func() error {
		if v.state != Idle {
			return nil
		}
		v.state = FormOpen
		v.draft = Draft{}
		v.notice = nil
		return nil
	})
}

// UpdateDraft replaces the form input.
func (v *View) UpdateDraft(d Draft) error {
	return v.do(func() error {
		switch v.state {
		case FormOpen:
			v.draft = d
			return nil
		case Uploading:
			return ErrUploadInProgress
		default:
			return ErrFormNotOpen
		}
	})
}

// Submit validates the draft and opens an upload widget session for file.
// The outcome arrives asynchronously; watch the screen's state.
func (v *View) Submit(file upload.File) error {
	return v.do(func() error {
		switch v.state {
		case Uploading:
			return ErrUploadInProgress
		case Idle:
			return ErrFormNotOpen
		}

		if strings.TrimSpace(v.draft.Title) == "" {
			err := &memories.ValidationError{Field: "title", Reason: "add a title to your memory"}
			v.notice = err
			return err
		}
		if date := strings.TrimSpace(v.draft.Date); date != "" {
			if _, err := time.Parse(memories.DateLayout, date); err != nil {
				verr := &memories.ValidationError{Field: "date", Reason: "use a calendar date like 2024-05-31"}
				v.notice = verr
				return verr
			}
		}

		v.session++
		token := v.session
		ctx, cancel := context.WithCancel(v.ctx)
		v.cancelUpload = cancel
		v.state = Uploading
		v.notice = nil

		draft := v.draft
		results := v.widget.Open(ctx, v.widgetCfg, file)
		go v.awaitUpload(ctx, token, draft, results)

		v.logger.Debug("upload started", "session", token, "file", file.Name)
		return nil
	})
}

func (v *View) awaitUpload(ctx context.Context, token uint64, draft Draft, results <-chan upload.Result) {
	select {
	case <-ctx.Done():
	case res := <-results:
		v.post(func() { v.uploadFinished(ctx, token, draft, res) })
	}
}

func (v *View) current(token uint64) bool {
	if token != v.session || v.state != Uploading {
		v.logger.Debug("stale upload callback ignored", "session", token, "current", v.session)
		return false
	}
	return true
}

func (v *View) uploadFinished(ctx context.Context, token uint64, draft Draft, res upload.Result) {
	if !v.current(token) {
		return
	}

	if res.Err == nil && res.SecureURL == "" {
		res.Err = upload.ErrDismissed
	}
	if res.Err != nil {
		v.finishUpload()
		v.state = FormOpen
		v.notice = &memories.UploadError{Reason: res.Err.Error(), Err: res.Err}
		v.logger.Info("upload failed", "session", token, "error", res.Err)
		return
	}

	fields := memories.Fields{
		Title: strings.TrimSpace(draft.Title),
		Date:  strings.TrimSpace(draft.Date),
		URL:   res.SecureURL,
		Kind:  memories.ParseKind(res.ResourceType),
	}
	go func() {
		_, err := v.store.Create(ctx, fields)
		v.post(func() { v.createFinished(token, err) })
	}()
}

// createFinished does not touch the list; the new record arrives with the
// next snapshot.
func (v *View) createFinished(token uint64, err error) {
	if !v.current(token) {
		return
	}
	v.finishUpload()

	if err != nil {
		v.state = FormOpen
		v.notice = err
		v.logger.Info("memory create failed", "session", token, "error", err)
		return
	}

	v.state = Idle
	v.draft = Draft{}
	v.notice = nil
}

func (v *View) finishUpload() {
	if v.cancelUpload != nil {
		v.cancelUpload()
		v.cancelUpload = nil
	}
}

// CloseForm discards the draft and hides the form. Closing during an upload
// abandons the session; its late result is ignored.
func (v *View) CloseForm() error {
	return v.do(func() error {
		if v.state == Uploading {
			v.session++
			v.finishUpload()
			v.logger.Debug("upload abandoned", "session", v.session-1)
		}
		v.state = Idle
		v.draft = Draft{}
		v.notice = nil
		return nil
	})
}

// Select opens the detail dialog for a memory in the grid.
func (v *View) Select(id string) error {
	return v.do(func() error {
		if v.find(id) == nil {
			return ErrUnknownMemory
		}
		if v.selectedID != id {
			v.confirming = false
		}
		v.selectedID = id
		return nil
	})
}

// Deselect returns to the grid.
func (v *View) Deselect() error {
	return v.do(func() error {
		v.selectedID = ""
		v.confirming = false
		return nil
	})
}

// RequestDelete asks for confirmation to delete the selected memory.
func (v *View) RequestDelete() error {
	return v.do(func() error {
		if v.selectedID == "" {
			return ErrNothingSelected
		}
		v.confirming = true
		return nil
	})
}

func (v *View) CancelDelete() error {
	return v.do(func() error {
		v.confirming = false
		return nil
	})
}

// ConfirmDelete removes the selected memory. It requires a prior
// RequestDelete. The grid keeps showing the memory until a snapshot without
// it arrives.
func (v *View) ConfirmDelete() error {
	return v.do(func() error {
		if v.selectedID == "" {
			return ErrNothingSelected
		}
		if !v.confirming {
			return ErrNotConfirmed
		}
		if v.deleting {
			return nil
		}

		v.deleting = true
		v.notice = nil
		id := v.selectedID
		go func() {
			err := v.store.Remove(v.ctx, id)
			v.post(func() { v.deleteFinished(id, err) })
		}()
		return nil
	})
}

func (v *View) deleteFinished(id string, err error) {
	v.deleting = false
	v.confirming = false

	if err != nil {
		v.notice = err
		v.logger.Info("memory delete failed", "id", id, "error", err)
		return
	}
	if v.selectedID == id {
		v.selectedID = ""
	}
}
