// Package camera drives a platform video recorder through an explicit
// recording lifecycle: Idle -> Recording -> Success or Failed, then back to
// Idle via Reset.
package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/calemcnulty-gai/reel-ai/internal/notify"
)

const (
	// MinRecordingTime is the shortest clip the app accepts; a stop request
	// before this elapses is rejected and the recording continues.
	MinRecordingTime = 5 * time.Second
	// MaxRecordingTime is the hard cap; the manager stops the recorder on
	// its own when it elapses.
	MaxRecordingTime = 60 * time.Second
)

var (
	ErrNotIdle      = errors.New("camera: recording already in progress")
	ErrNotRecording = errors.New("camera: no recording in progress")
	ErrTooShort     = errors.New("camera: recording shorter than minimum duration")
	ErrNotFinished  = errors.New("camera: no finished recording to reset")
)

// Lens selects which camera the recorder captures from.
type Lens int

const (
	LensBack Lens = iota
	LensFront
)

// Recorder is the platform capture device. Implementations are consumed as
// black boxes; the manager owns all lifecycle sequencing.
type Recorder interface {
	Start(ctx context.Context, lens Lens) error
	// Stop finalizes the capture and returns the path of the recorded file.
	Stop(ctx context.Context) (string, error)
}

// State is the recording lifecycle. Exactly one of the concrete types below
// is current at any time.
type State interface{ recordingState() }

type Idle struct{}

type Recording struct{ StartedAt time.Time }

type Success struct{ FilePath string }

type Failed struct{ Message string }

func (Idle) recordingState()      {}
func (Recording) recordingState() {}
func (Success) recordingState()   {}
func (Failed) recordingState()    {}

// Manager sequences a Recorder and publishes every state transition.
type Manager struct {
	rec    Recorder
	states *notify.Broadcaster[State]

	mu        sync.Mutex
	state     State
	lens      Lens
	startedAt time.Time
	maxTimer  *time.Timer
}

func NewManager(rec Recorder) *Manager {
	return &Manager{
		rec:    rec,
		states: notify.NewBroadcaster[State](),
		state:  Idle{},
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// States streams lifecycle transitions until the cancel func is called.
func (m *Manager) States() (<-chan State, func()) {
	return m.states.Subscribe()
}

// Start begins a recording. Only legal from Idle. The recording stops on its
// own once MaxRecordingTime elapses.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, idle := m.state.(Idle); !idle {
		return ErrNotIdle
	}

	if err := m.rec.Start(ctx, m.lens); err != nil {
		m.transitionLocked(Failed{Message: err.Error()})
		return fmt.Errorf("failed to start recorder: %w", err)
	}

	m.startedAt = time.Now()
	m.maxTimer = time.AfterFunc(MaxRecordingTime, m.autoStop)
	m.transitionLocked(Recording{StartedAt: m.startedAt})
	return nil
}

// Stop finalizes the recording. Requests before MinRecordingTime are
// rejected with ErrTooShort and the recording continues.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, recording := m.state.(Recording); !recording {
		return ErrNotRecording
	}
	if time.Since(m.startedAt) < MinRecordingTime {
		return ErrTooShort
	}

	m.stopLocked(ctx)
	return nil
}

func (m *Manager) autoStop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, recording := m.state.(Recording); !recording {
		return
	}
	slog.Info("recording reached maximum duration, stopping")
	m.stopLocked(context.Background())
}

func (m *Manager) stopLocked(ctx context.Context) {
	if m.maxTimer != nil {
		m.maxTimer.Stop()
		m.maxTimer = nil
	}

	path, err := m.rec.Stop(ctx)
	if err != nil {
		slog.Error("recorder failed to finalize", "error", err)
		m.transitionLocked(Failed{Message: err.Error()})
		return
	}
	m.transitionLocked(Success{FilePath: path})
}

// Reset returns to Idle after a finished recording has been consumed or
// discarded.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state.(type) {
	case Success, Failed:
		m.transitionLocked(Idle{})
		return nil
	default:
		return ErrNotFinished
	}
}

// ToggleLens flips between front and back cameras. Rejected mid-recording.
func (m *Manager) ToggleLens() (Lens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, recording := m.state.(Recording); recording {
		return m.lens, ErrNotIdle
	}

	if m.lens == LensBack {
		m.lens = LensFront
	} else {
		m.lens = LensBack
	}
	return m.lens, nil
}

func (m *Manager) transitionLocked(next State) {
	m.state = next
	m.states.Publish(next)
}
