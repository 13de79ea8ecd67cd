package handlers

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/smart-attendance/internal/constants"
	"github.com/kozaktomas/smart-attendance/internal/database"
	"github.com/kozaktomas/smart-attendance/internal/errors"
	"github.com/kozaktomas/smart-attendance/internal/ledger"
	"github.com/kozaktomas/smart-attendance/internal/recognition"
)

// Session event types.
const (
	EventState        = "state"
	EventMark         = "mark"
	EventObservations = "observations"
	EventSaved        = "saved"
	EventStopped      = "stopped"
)

// StateView is the JSON form of a recognition session state.
type StateView struct {
	Phase       string   `json:"phase"`
	StatusKey   string   `json:"status_key"`
	Status      string   `json:"status"`
	GallerySize int      `json:"gallery_size"`
	Recognized  []string `json:"recognized"`
	Error       string   `json:"error,omitempty"`
}

func newStateView(s recognition.SessionState) StateView {
	v := StateView{
		Phase:       s.Phase().String(),
		StatusKey:   s.StatusKey(),
		Status:      s.Status(),
		GallerySize: s.GallerySize(),
		Recognized:  s.RecognizedIDs(),
	}
	if err := s.Err(); err != nil {
		v.Error = err.Error()
	}
	return v
}

// AttendanceSession is a live recognition session bound to the attendance sheet of one
// class and date. Face scan marks update the sheet; saving it is an explicit request.
type AttendanceSession struct {
	EventBroadcaster

	ID        string    `json:"id"`
	ClassID   string    `json:"class_id"`
	Date      string    `json:"date"`
	StartedAt time.Time `json:"started_at"`

	session *recognition.Session
	sheet   *ledger.WorkingSet

	srcMu  sync.Mutex
	source *recognition.PushSource

	activeMu   sync.Mutex
	lastActive time.Time
}

// SessionView is the JSON summary of an AttendanceSession.
type SessionView struct {
	ID        string         `json:"id"`
	ClassID   string         `json:"class_id"`
	Date      string         `json:"date"`
	StartedAt time.Time      `json:"started_at"`
	State     StateView      `json:"state"`
	Present   int            `json:"present"`
	Absent    int            `json:"absent"`
	Dirty     bool           `json:"dirty"`
	Warnings  []string       `json:"warnings,omitempty"`
	Entries   []ledger.Entry `json:"entries"`
}

// View returns the current summary of the session.
func (a *AttendanceSession) View() SessionView {
	present, absent := a.sheet.Counts()
	return SessionView{
		ID:        a.ID,
		ClassID:   a.ClassID,
		Date:      a.Date,
		StartedAt: a.StartedAt,
		State:     newStateView(a.session.State()),
		Present:   present,
		Absent:    absent,
		Dirty:     a.sheet.Dirty(),
		Warnings:  a.sheet.Warnings(),
		Entries:   a.sheet.Entries(),
	}
}

// Sheet returns the working set the session marks.
func (a *AttendanceSession) Sheet() *ledger.WorkingSet {
	return a.sheet
}

func (a *AttendanceSession) touch() {
	a.activeMu.Lock()
	a.lastActive = time.Now()
	a.activeMu.Unlock()
}

func (a *AttendanceSession) idleSince() time.Time {
	a.activeMu.Lock()
	defer a.activeMu.Unlock()
	return a.lastActive
}

func (a *AttendanceSession) currentSource() *recognition.PushSource {
	a.srcMu.Lock()
	defer a.srcMu.Unlock()
	return a.source
}

// onUpdate applies mark events to the sheet and publishes them.
func (a *AttendanceSession) onUpdate(u recognition.Update) {
	for _, ev := range u.Result.Events {
		confidence := ev.Confidence
		err := a.sheet.Mark(ledger.Mark{
			StudentID:  ev.StudentID,
			Status:     ev.Status,
			Method:     ev.Method,
			Confidence: &confidence,
		})
		if err != nil {
			logger.Warn("face scan mark rejected", "session", a.ID, "student", ev.StudentID, "error", err)
			continue
		}
		a.SendEvent(SessionEvent{Type: EventMark, Message: u.State.Status(), Data: ev})
	}
	if len(u.Result.Observations) > 0 {
		a.SendEvent(SessionEvent{Type: EventObservations, Data: u.Result.Observations})
	}

	a.SendEvent(SessionEvent{Type: EventState, Message: u.State.Status(), Data: newStateView(u.State)})
}

// PushResult reports what happened to a pushed frame.
type PushResult struct {
	Stepped bool                    `json:"stepped"`
	Queued  int                     `json:"queued"` // frames waiting for the polling loop
	Result  recognition.CycleResult `json:"result"`
}

// Manual marks apply to the sheet and are published like face scan marks.
func (a *AttendanceSession) markManual(studentID string, status database.AttendanceStatus) (ledger.Entry, error) {
	a.touch()
	m := ledger.Mark{StudentID: studentID, Status: status, Method: database.MethodManual}
	if err := a.sheet.Mark(m); err != nil {
		return ledger.Entry{}, err
	}
	a.SendEvent(SessionEvent{Type: EventMark, Data: m})
	entry, _ := a.sheet.Entry(studentID)
	return entry, nil
}

// SessionManager owns the live recognition sessions of the server.
type SessionManager struct {
	ledger    *ledger.Ledger
	students  database.StudentReader
	provider  recognition.EmbeddingProvider
	cfg       recognition.Config
	idleLimit time.Duration

	sessions map[string]*AttendanceSession
	mu       sync.RWMutex

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewSessionManager creates a session manager. Sessions without activity for idleLimit are
// deactivated by a background janitor; a zero idleLimit disables it.
func NewSessionManager(l *ledger.Ledger, students database.StudentReader, provider recognition.EmbeddingProvider,
	cfg recognition.Config, idleLimit time.Duration) *SessionManager {
	m := &SessionManager{
		ledger:    l,
		students:  students,
		provider:  provider,
		cfg:       cfg,
		idleLimit: idleLimit,
		sessions:  make(map[string]*AttendanceSession),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	if idleLimit > 0 {
		go m.janitor()
	} else {
		close(m.done)
	}
	return m
}

// Polling reports whether sessions run their own detection loop. Without it every pushed
// frame is processed synchronously.
func (m *SessionManager) Polling() bool {
	return m.cfg.Interval > 0
}

// Start opens the sheet of classID on date and activates a recognition session over it.
func (m *SessionManager) Start(ctx context.Context, classID, date string) (*AttendanceSession, error) {
	sheet, err := m.ledger.OpenWorkingSet(ctx, classID, date)
	if err != nil {
		return nil, err
	}

	params, err := recognition.LoadParams(ctx, m.students, m.ledger, classID, date, m.cfg.Threshold)
	if err != nil {
		return nil, errors.Persistence("start session", err)
	}

	a := &AttendanceSession{
		ID:         uuid.NewString(),
		ClassID:    classID,
		Date:       date,
		StartedAt:  time.Now(),
		sheet:      sheet,
		source:     recognition.NewPushSource(constants.FrameBufferSize),
		lastActive: time.Now(),
	}
	a.session = recognition.NewSession(m.provider, m.cfg, a.onUpdate)

	if err := a.session.Activate(ctx, a.source, params); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[a.ID] = a
	m.mu.Unlock()

	logger.Info("recognition session started", "session", a.ID, "class", classID, "date", date,
		"gallery", len(params.Gallery))
	return a, nil
}

// Get retrieves a session by ID.
func (m *SessionManager) Get(id string) *AttendanceSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// List returns all sessions, oldest first.
func (m *SessionManager) List() []*AttendanceSession {
	m.mu.RLock()
	list := make([]*AttendanceSession, 0, len(m.sessions))
	for _, a := range m.sessions {
		list = append(list, a)
	}
	m.mu.RUnlock()

	slices.SortFunc(list, func(x, y *AttendanceSession) int {
		return x.StartedAt.Compare(y.StartedAt)
	})
	return list
}

// PushFrame queues a frame on the session. Without a polling loop the frame is processed
// before PushFrame returns.
func (m *SessionManager) PushFrame(ctx context.Context, a *AttendanceSession, data []byte, contentType string) (PushResult, error) {
	a.touch()
	if a.session.State().Phase() != recognition.Active {
		return PushResult{}, errors.Inputf("push frame", "session %s is not active", a.ID)
	}
	source := a.currentSource()
	if !source.Push(data, contentType) {
		return PushResult{}, errors.Inputf("push frame", "session %s has no open camera", a.ID)
	}
	if m.Polling() {
		return PushResult{Queued: source.Pending()}, nil
	}
	result, err := a.session.Step(ctx)
	if err != nil {
		return PushResult{}, err
	}
	return PushResult{Stepped: true, Result: result}, nil
}

// CameraFailed reports that the client lost its camera. The session goes Idle.
func (m *SessionManager) CameraFailed(ctx context.Context, a *AttendanceSession, reason string) {
	a.currentSource().Fail(fmt.Errorf("client camera: %s", reason))
	if !m.Polling() {
		_, _ = a.session.Step(ctx)
	}
}

// SwitchCamera replaces the frame source of a session, keeping its recognized students.
func (m *SessionManager) SwitchCamera(ctx context.Context, a *AttendanceSession) error {
	a.touch()
	src := recognition.NewPushSource(constants.FrameBufferSize)
	if err := a.session.Switch(ctx, src); err != nil {
		return err
	}
	a.srcMu.Lock()
	a.source = src
	a.srcMu.Unlock()
	return nil
}

// Save writes the sheet of a session as one batch.
func (m *SessionManager) Save(ctx context.Context, a *AttendanceSession) error {
	a.touch()
	if err := m.ledger.SaveWorkingSet(ctx, a.sheet); err != nil {
		return err
	}
	present, absent := a.sheet.Counts()
	a.SendEvent(SessionEvent{Type: EventSaved, Data: map[string]int{"present": present, "absent": absent}})
	return nil
}

// Stop deactivates a session and forgets it. Unsaved marks are discarded.
func (m *SessionManager) Stop(id string) bool {
	m.mu.Lock()
	a, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return false
	}

	a.session.Deactivate()
	a.Close(SessionEvent{Type: EventStopped, Message: "Session stopped"})
	if a.sheet.Dirty() {
		logger.Warn("recognition session stopped with unsaved marks", "session", id, "class", a.ClassID)
	}
	logger.Info("recognition session stopped", "session", id)
	return true
}

func (m *SessionManager) janitor() {
	defer close(m.done)
	ticker := time.NewTicker(max(m.idleLimit/2, time.Second))
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.reapIdle(time.Now())
		}
	}
}

// reapIdle stops the sessions idle since before now-idleLimit.
func (m *SessionManager) reapIdle(now time.Time) int {
	var stale []string
	m.mu.RLock()
	for id, a := range m.sessions {
		if now.Sub(a.idleSince()) > m.idleLimit {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range stale {
		logger.Info("deactivating idle recognition session", "session", id)
		m.Stop(id)
	}
	return len(stale)
}

// Close stops the janitor and every session.
func (m *SessionManager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
	for _, a := range m.List() {
		m.Stop(a.ID)
	}
}
