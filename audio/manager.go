package audio

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/mod-runtime/errors"
	"github.com/wippyai/mod-runtime/resource"
)

// Clip is a decoded sound owned by a Backend. Clips that also implement
// resource.Dropper are dropped when the manager closes.
type Clip interface {
	Name() string
}

// Backend decodes and plays sounds. It is only ever called from the
// manager goroutine.
type Backend interface {
	Decode(path string) (Clip, error)
	Play(Clip) error
	Close() error
}

type opKind uint8

const (
	opLoad opKind = iota
	opPlay
)

type command struct {
	reply  chan loadResult
	path   string
	handle resource.Handle
	op     opKind
}

type loadResult struct {
	err    error
	handle resource.Handle
}

// Manager runs audio work on a dedicated goroutine. Load is a blocking
// round trip; Play is fire-and-forget. Handles are only valid for the
// manager that minted them.
type Manager struct {
	backend Backend
	log     *zap.Logger
	sounds  *resource.Registry[Clip]
	cmds    chan command
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// Options configures a Manager.
type Options struct {
	Logger *zap.Logger
	// Queue is the command channel capacity. Zero means 64.
	Queue int
}

// NewManager starts the audio goroutine.
func NewManager(backend Backend, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Queue <= 0 {
		opts.Queue = 64
	}
	m := &Manager{
		backend: backend,
		log:     opts.Logger,
		sounds:  resource.NewRegistry[Clip](),
		cmds:    make(chan command, opts.Queue),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go m.run()
	return m
}

// Load decodes the sound at path and returns its handle. A decode failure
// is reported as an error with resource.Invalid; callers at the sandbox
// boundary log it and hand the guest the invalid handle.
func (m *Manager) Load(ctx context.Context, path string) (resource.Handle, error) {
	reply := make(chan loadResult, 1)
	select {
	case m.cmds <- command{op: opLoad, path: path, reply: reply}:
	case <-m.done:
		return resource.Invalid, errClosed
	case <-ctx.Done():
		return resource.Invalid, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.handle, r.err
	case <-m.stopped:
		return resource.Invalid, errClosed
	case <-ctx.Done():
		return resource.Invalid, ctx.Err()
	}
}

// Play queues h for playback and returns immediately. Unknown handles are
// logged and dropped on the audio goroutine. When the queue is full the
// play is dropped.
func (m *Manager) Play(h resource.Handle) {
	select {
	case <-m.done:
		return
	default:
	}
	select {
	case m.cmds <- command{op: opPlay, handle: h}:
	default:
		m.log.Debug("audio queue full, play dropped", zap.Stringer("handle", h))
	}
}

// Len returns the number of loaded sounds.
func (m *Manager) Len() int {
	return m.sounds.Len()
}

// Close stops the audio goroutine after it drains queued commands and
// closes the backend.
func (m *Manager) Close() error {
	var err error
	m.once.Do(func() {
		close(m.done)
		<-m.stopped
		m.sounds.Clear()
		err = m.backend.Close()
	})
	return err
}

var errClosed = errors.InvalidInput(errors.PhaseHost, "audio manager closed")

func (m *Manager) run() {
	defer close(m.stopped)
	for {
		select {
		case cmd := <-m.cmds:
			m.handle(cmd)
		case <-m.done:
			for {
				select {
				case cmd := <-m.cmds:
					m.handle(cmd)
				default:
					return
				}
			}
		}
	}
}

func (m *Manager) handle(cmd command) {
	switch cmd.op {
	case opLoad:
		clip, err := m.backend.Decode(cmd.path)
		if err != nil {
			cmd.reply <- loadResult{err: errors.New(errors.PhaseHost, errors.KindIO).
				Detail("load sound %q", cmd.path).
				Cause(err).
				Build()}
			return
		}
		h := m.sounds.Insert(clip)
		m.log.Debug("sound loaded", zap.String("path", cmd.path), zap.Stringer("handle", h))
		cmd.reply <- loadResult{handle: h}
	case opPlay:
		clip, ok := m.sounds.Get(cmd.handle)
		if !ok {
			m.log.Warn("play of unknown sound handle", zap.Stringer("handle", cmd.handle))
			return
		}
		if err := m.backend.Play(clip); err != nil {
			m.log.Warn("sound playback failed", zap.String("sound", clip.Name()), zap.Error(err))
		}
	default:
		panic(fmt.Sprintf("audio: unknown op %d", cmd.op))
	}
}
