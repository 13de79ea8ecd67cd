package recognition

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kozaktomas/smart-attendance/internal/constants"
	"github.com/kozaktomas/smart-attendance/internal/errors"
	"github.com/kozaktomas/smart-attendance/internal/metrics"
)

// Update is delivered to the session's listener after every state change.
type Update struct {
	State  SessionState
	Result CycleResult
	Err    error
}

// Config configures a Session.
type Config struct {
	// Interval between detection cycles. Zero disables the polling loop; the caller then
	// drives cycles with Step.
	Interval  time.Duration
	Threshold float64
	Messages  Messages
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Session drives one camera. It owns its frame source between Activate and Deactivate and
// runs at most one detection cycle at a time.
type Session struct {
	cfg      Config
	provider EmbeddingProvider
	listener func(Update)

	initOnce sync.Mutex
	ready    bool

	cycleMu sync.Mutex // serializes cycles

	mu     sync.Mutex
	state  SessionState
	source FrameSource
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSession creates an Idle session. listener may be nil.
func NewSession(provider EmbeddingProvider, cfg Config, listener func(Update)) *Session {
	if cfg.Threshold <= 0 {
		cfg.Threshold = constants.DefaultMatchThreshold
	}
	if cfg.Messages == (Messages{}) {
		cfg.Messages = DefaultMessages()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default().With("component", "recognition")
	}
	return &Session{
		cfg:      cfg,
		provider: provider,
		listener: listener,
		state:    NewSessionState(cfg.Messages),
	}
}

// State returns the current state snapshot.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) notify(u Update) {
	if s.listener != nil {
		s.listener(u)
	}
}

func (s *Session) initProvider(ctx context.Context) error {
	s.initOnce.Lock()
	defer s.initOnce.Unlock()
	if s.ready {
		return nil
	}
	if err := s.provider.Init(ctx); err != nil {
		return err
	}
	s.ready = true
	return nil
}

// Activate turns the camera on. Any previous activation is torn down first.
// A provider that fails to initialize or a source that cannot be acquired leaves the
// session Idle and returns a resource error; neither is retried.
func (s *Session) Activate(ctx context.Context, source FrameSource, p Params) error {
	s.Deactivate()

	msgs := s.cfg.Messages
	if p.Threshold <= 0 {
		p.Threshold = s.cfg.Threshold
	}

	if err := s.initProvider(ctx); err != nil {
		return s.failIdle(StatusProviderFailed, errors.Resource("activate", fmt.Errorf("embedding provider: %w", err)))
	}
	if err := source.Acquire(ctx); err != nil {
		_ = source.Release()
		return s.failIdle(StatusCameraDenied, errors.Resource("activate", fmt.Errorf("frame source: %w", err)))
	}

	s.mu.Lock()
	s.source = source
	s.state = Activate(s.state, p, msgs)
	state := s.state
	s.mu.Unlock()

	s.cfg.Metrics.SessionStarted()
	s.cfg.Logger.Info("session activated", "class", p.ClassID, "date", p.Date,
		"gallery", state.GallerySize(), "already_present", len(p.Present))
	s.notify(Update{State: state})

	if !state.Inert() {
		s.startLoop()
	}
	return nil
}

func (s *Session) failIdle(statusKey string, err error) error {
	s.mu.Lock()
	s.state = Fail(s.state, statusKey, err, s.cfg.Messages)
	state := s.state
	s.mu.Unlock()

	s.cfg.Logger.Warn("session activation failed", "status", statusKey, "error", err)
	s.notify(Update{State: state, Err: err})
	return err
}

func (s *Session) startLoop() {
	if s.cfg.Interval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.step(ctx, true); err != nil {
					return
				}
			}
		}
	}()
}

// stopLoop cancels the polling goroutine and waits for it to exit.
func (s *Session) stopLoop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Step runs one detection cycle. It returns a resource error, after moving the session to
// Idle, when the frame source fails.
func (s *Session) Step(ctx context.Context) (CycleResult, error) {
	return s.step(ctx, false)
}

func (s *Session) step(ctx context.Context, fromLoop bool) (CycleResult, error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	s.mu.Lock()
	state, source := s.state, s.source
	s.mu.Unlock()

	if state.Phase() != Active || state.Inert() || source == nil {
		return CycleResult{}, nil
	}

	started := time.Now()
	frame, err := source.Frame(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return CycleResult{}, ctx.Err()
		}
		return CycleResult{}, s.lose(source, err, fromLoop)
	}
	if frame == nil {
		return CycleResult{}, nil
	}

	detections, err := s.provider.Detect(ctx, frame)
	if err != nil {
		if ctx.Err() != nil {
			return CycleResult{}, ctx.Err()
		}
		// A failed request drops this frame only; the camera is still fine.
		s.cfg.Logger.Warn("face detection failed", "frame", frame.Seq, "error", err)
		return CycleResult{}, nil
	}

	s.mu.Lock()
	if s.source != source {
		// Deactivated or switched while detecting.
		s.mu.Unlock()
		return CycleResult{}, nil
	}
	next, result := Cycle(s.state, detections, s.cfg.Messages, time.Now())
	s.state = next
	s.mu.Unlock()

	s.cfg.Metrics.RecordCycle(time.Since(started), len(result.Events), result.Unknown())
	for _, ev := range result.Events {
		s.cfg.Logger.Info("student recognized", "student", ev.StudentID, "distance", ev.Distance)
	}
	if len(result.Observations) > 0 {
		s.notify(Update{State: next, Result: result})
	}
	return result, nil
}

// lose handles a failed frame source: release it, go Idle and surface the error once.
func (s *Session) lose(source FrameSource, cause error, fromLoop bool) error {
	err := errors.Resource("cycle", fmt.Errorf("frame source: %w", cause))

	s.mu.Lock()
	if s.source != source {
		s.mu.Unlock()
		return err
	}
	s.source = nil
	var cancel context.CancelFunc
	if fromLoop {
		// The loop exits on its own; stopLoop must not wait for it.
		cancel = s.cancel
		s.cancel, s.done = nil, nil
	}
	s.state = Fail(s.state, StatusCameraDenied, err, s.cfg.Messages)
	state := s.state
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if relErr := source.Release(); relErr != nil {
		s.cfg.Logger.Warn("releasing frame source failed", "error", relErr)
	}
	s.cfg.Metrics.SessionStopped()
	s.cfg.Logger.Warn("frame source lost, session stopped", "error", cause)
	s.notify(Update{State: state, Err: err})
	return err
}

// Switch replaces the frame source of an active session, e.g. to change camera facing.
// The old source is released before the new one is acquired. The dedup set is kept.
func (s *Session) Switch(ctx context.Context, source FrameSource) error {
	s.mu.Lock()
	if s.state.Phase() != Active {
		s.mu.Unlock()
		return errors.Inputf("switch camera", "session is not active")
	}
	s.mu.Unlock()

	s.stopLoop()
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	s.mu.Lock()
	old := s.source
	s.source = nil
	s.mu.Unlock()
	if old != nil {
		if err := old.Release(); err != nil {
			s.cfg.Logger.Warn("releasing frame source failed", "error", err)
		}
	}

	if err := source.Acquire(ctx); err != nil {
		_ = source.Release()
		err = errors.Resource("switch camera", fmt.Errorf("frame source: %w", err))
		s.mu.Lock()
		s.state = Fail(s.state, StatusCameraDenied, err, s.cfg.Messages)
		state := s.state
		s.mu.Unlock()
		s.cfg.Metrics.SessionStopped()
		s.notify(Update{State: state, Err: err})
		return err
	}

	s.mu.Lock()
	s.source = source
	if s.state.Inert() {
		s.state = s.state.withStatus(StatusNoFaces, s.cfg.Messages.NoFaces)
	} else {
		s.state = s.state.withStatus(StatusDetecting, s.cfg.Messages.Detecting)
	}
	state := s.state
	s.mu.Unlock()

	s.notify(Update{State: state})
	if !state.Inert() {
		s.startLoop()
	}
	return nil
}

// Deactivate turns the camera off, releasing the source and discarding session state.
// Calling it on an Idle session is a no-op.
func (s *Session) Deactivate() {
	s.stopLoop()

	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	s.mu.Lock()
	source := s.source
	wasActive := s.state.Phase() == Active
	s.source = nil
	if wasActive {
		s.state = Deactivate(s.state, s.cfg.Messages)
	}
	state := s.state
	s.mu.Unlock()

	if source != nil {
		if err := source.Release(); err != nil {
			s.cfg.Logger.Warn("releasing frame source failed", "error", err)
		}
	}
	if wasActive {
		s.cfg.Metrics.SessionStopped()
		s.cfg.Logger.Info("session deactivated")
		s.notify(Update{State: state})
	}
}
