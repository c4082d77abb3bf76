package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"chartsignal/internal/history"
	"chartsignal/internal/intake"
	"chartsignal/internal/interfaces"
	"chartsignal/internal/logger"
	"chartsignal/internal/metrics"
	"chartsignal/internal/store"
	"chartsignal/internal/types"
)

var (
	ErrNoSelection    = errors.New("no file selected")
	ErrAlreadyPending = errors.New("a prediction request is already pending")
	// ErrSuperseded is returned by Submit when the selection changed while the
	// request was in flight. The result was discarded.
	ErrSuperseded = errors.New("selection changed before the prediction arrived")
)

// SelectionInfo describes the active selection in a Snapshot.
type SelectionInfo struct {
	Token        uint64
	Name         string
	Size         int64
	ContentType  string
	Preview      string
	PreviewReady bool
}

// Snapshot is an immutable view of the session handed to observers.
type Snapshot struct {
	Selection  *SelectionInfo
	State      types.RequestState
	Prediction *types.Prediction // nil unless State.Status == StatusSucceeded
	Message    string
	DragActive bool
	// InFlight reports an outstanding request, which may belong to a
	// previous selection while State is Idle.
	InFlight   bool
	History    []types.HistoryEntry
}

type Option func(*Session)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithObserver registers fn to receive a snapshot after every state change.
// Observers are called one at a time, in state order, and must not call back
// into the session's commands.
func WithObserver(fn func(Snapshot)) Option {
	return func(s *Session) { s.observers = append(s.observers, fn) }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func WithTimestampLayout(layout string) Option {
	return func(s *Session) { s.layout = layout }
}

func WithHistory(h *history.Cache) Option {
	return func(s *Session) { s.history = h }
}

type Session struct {
	predictor interfaces.Predictor
	history   *history.Cache
	metrics   *metrics.Metrics
	observers []func(Snapshot)
	now       func() time.Time
	layout    string
	bg        sync.WaitGroup
	notifyMu  sync.Mutex

	mu           sync.Mutex
	generation   uint64
	selection    *intake.Selection
	previewDone  chan struct{}
	previewReady bool
	state        types.RequestState
	inflight     bool
	prediction   *types.Prediction
	message      string
	dragActive   bool
}

func New(predictor interfaces.Predictor, opts ...Option) *Session {
	s := &Session{
		predictor: predictor,
		now:       time.Now,
		layout:    store.DefaultTimestampLayout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.history == nil {
		s.history = history.New(history.DefaultCapacity)
	}
	return s
}

// Select validates f and, if accepted, makes it the active selection. A
// rejected file leaves the current selection and request state untouched.
func (s *Session) Select(ctx context.Context, f intake.File) error {
	sel, err := intake.Validate(f)
	if err != nil {
		s.reject(ctx, f, err)
		return err
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.selection = sel
	done := make(chan struct{})
	s.previewDone = done
	s.previewReady = false
	s.state = types.RequestState{Status: types.StatusIdle}
	s.prediction = nil
	s.message = ""
	s.mu.Unlock()

	logger.Info(ctx, "Selection accepted",
		"filename", sel.Name,
		"bytes", sel.Size,
		"content_type", sel.ContentType,
		"selection", gen,
	)
	s.publish()

	s.bg.Add(1)
	go s.derivePreview(context.WithoutCancel(ctx), gen, sel, done)
	return nil
}

// Drop handles files released over the drop zone. Only the first file is used.
func (s *Session) Drop(ctx context.Context, files ...intake.File) error {
	s.SetDragActive(false)
	if len(files) == 0 {
		return nil
	}
	return s.Select(ctx, files[0])
}

// SetDragActive toggles the hover highlight. It never touches the selection.
func (s *Session) SetDragActive(active bool) {
	s.mu.Lock()
	if s.dragActive == active {
		s.mu.Unlock()
		return
	}
	s.dragActive = active
	s.mu.Unlock()
	s.publish()
}

// Clear drops the selection and resets the request state. History is kept.
func (s *Session) Clear(ctx context.Context) {
	s.mu.Lock()
	s.generation++
	s.selection = nil
	s.previewDone = nil
	s.previewReady = false
	s.state = types.RequestState{Status: types.StatusIdle}
	s.prediction = nil
	s.message = ""
	s.mu.Unlock()

	logger.Debug(ctx, "Selection cleared")
	s.publish()
}

// AwaitPreview blocks until the preview of the current selection is derived
// (or its derivation failed).
func (s *Session) AwaitPreview(ctx context.Context) error {
	s.mu.Lock()
	done := s.previewDone
	s.mu.Unlock()
	if done == nil {
		return ErrNoSelection
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until all background preview derivations have finished.
func (s *Session) Wait() {
	s.bg.Wait()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) History() []types.HistoryEntry {
	return s.history.Entries()
}

func (s *Session) derivePreview(ctx context.Context, gen uint64, sel *intake.Selection, done chan struct{}) {
	defer s.bg.Done()
	defer close(done)

	uri, err := intake.DataURI(sel.File)

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		logger.Debug(ctx, "Discarding stale preview", "filename", sel.Name, "selection", gen)
		return
	}
	if err != nil {
		s.message = "Could not load a preview of " + sel.Name
	} else {
		s.selection.Preview = uri
		s.previewReady = true
	}
	s.mu.Unlock()

	if err != nil {
		logger.Warn(ctx, "Preview derivation failed", "filename", sel.Name, "error", err)
	}
	s.publish()
}

func (s *Session) reject(ctx context.Context, f intake.File, err error) {
	reason := "invalid_type"
	if errors.Is(err, intake.ErrTooLarge) {
		reason = "too_large"
	}
	name := ""
	if f != nil {
		name = f.Name()
	}

	s.mu.Lock()
	s.message = userMessage(err)
	s.mu.Unlock()

	s.metrics.Rejected(reason)
	logger.Rejection(ctx, name, reason, "error", err)
	s.publish()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:      s.state,
		Message:    s.message,
		DragActive: s.dragActive,
		InFlight:   s.inflight,
		History:    s.history.Entries(),
	}
	if f := s.state.Failure; f != nil {
		failure := *f
		snap.State.Failure = &failure
	}
	if s.selection != nil {
		snap.Selection = &SelectionInfo{
			Token:        s.generation,
			Name:         s.selection.Name,
			Size:         s.selection.Size,
			ContentType:  s.selection.ContentType,
			Preview:      s.selection.Preview,
			PreviewReady: s.previewReady,
		}
	}
	if s.state.Status == types.StatusSucceeded && s.prediction != nil {
		p := *s.prediction
		snap.Prediction = &p
	}
	return snap
}

// publish delivers the current state to the observers. The snapshot is taken
// under notifyMu so deliveries never overlap or go backwards.
func (s *Session) publish() {
	if len(s.observers) == 0 {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	snap := s.Snapshot()
	for _, fn := range s.observers {
		fn(snap)
	}
}

func userMessage(err error) string {
	var pe *types.PredictError
	switch {
	case errors.Is(err, intake.ErrInvalidType):
		return "Please select an image file"
	case errors.Is(err, intake.ErrTooLarge):
		return "File size must be less than 10MB"
	case errors.Is(err, ErrNoSelection):
		return "Please select an image first"
	case errors.As(err, &pe):
		return pe.Message()
	default:
		return err.Error()
	}
}
