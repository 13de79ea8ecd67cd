package recognition

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kozaktomas/smart-attendance/internal/facematch"
)

// Frame is one captured image.
type Frame struct {
	Data        []byte
	ContentType string
	Seq         uint64
	CapturedAt  time.Time
}

// Detection is a face found in a frame.
type Detection struct {
	Embedding []float32      `json:"-"`
	BBox      facematch.BBox `json:"bbox"`
}

// FrameSource yields frames while a session is active. Acquire and Release bracket the
// active lifetime; a session never holds two sources at once.
type FrameSource interface {
	Acquire(ctx context.Context) error
	// Frame returns the latest frame, or nil when none arrived since the previous call.
	// An error means the source is lost and the session must stop.
	Frame(ctx context.Context) (*Frame, error)
	Release() error
}

// EmbeddingProvider turns frames into face embeddings.
type EmbeddingProvider interface {
	// Init prepares the provider. Failure prevents a session from activating.
	Init(ctx context.Context) error
	// Detect returns zero or more faces found in frame.
	Detect(ctx context.Context, frame *Frame) ([]Detection, error)
}

var (
	// ErrSourceClosed is returned when acquiring a released push source.
	ErrSourceClosed = errors.New("frame source closed")
	// ErrNotAcquired is returned when reading frames from a source that was not acquired.
	ErrNotAcquired = errors.New("frame source not acquired")
)

// PushSource is a FrameSource fed by a producer such as an HTTP upload or a file walk.
// It keeps only the newest frames; older ones are dropped when the buffer is full.
type PushSource struct {
	mu       sync.Mutex
	frames   []*Frame
	capacity int
	seq      uint64
	acquired bool
	closed   bool
	failure  error
}

// NewPushSource creates a source buffering up to capacity frames.
func NewPushSource(capacity int) *PushSource {
	return &PushSource{capacity: max(capacity, 1)}
}

// Acquire implements FrameSource.
func (p *PushSource) Acquire(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrSourceClosed
	}
	if p.failure != nil {
		return p.failure
	}
	p.acquired = true
	return nil
}

// Push queues a frame. It reports false when the source is closed.
func (p *PushSource) Push(data []byte, contentType string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.seq++
	f := &Frame{Data: data, ContentType: contentType, Seq: p.seq, CapturedAt: time.Now()}
	if len(p.frames) >= p.capacity {
		p.frames = p.frames[1:]
	}
	p.frames = append(p.frames, f)
	return true
}

// Fail reports that the producer lost the camera, e.g. the browser denied access.
// The next Frame call returns err.
func (p *PushSource) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failure = err
}

// Frame implements FrameSource.
func (p *PushSource) Frame(ctx context.Context) (*Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failure != nil {
		return nil, p.failure
	}
	if !p.acquired {
		return nil, ErrNotAcquired
	}
	if len(p.frames) == 0 {
		return nil, nil
	}
	f := p.frames[0]
	p.frames = p.frames[1:]
	return f, nil
}

// Release implements FrameSource. A released push source cannot be acquired again.
func (p *PushSource) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.acquired = false
	p.closed = true
	p.frames = nil
	return nil
}

// Pending returns the number of buffered frames.
func (p *PushSource) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.frames)
}
