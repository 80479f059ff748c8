package audio

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/mod-runtime/resource"
)

type recordingBackend struct {
	mu     sync.Mutex
	played []string
	closed bool
}

type clip string

func (c clip) Name() string { return string(c) }

func (b *recordingBackend) Decode(path string) (Clip, error) {
	if path == "missing.ogg" {
		return nil, os.ErrNotExist
	}
	return clip(path), nil
}

func (b *recordingBackend) Play(c Clip) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.played = append(b.played, c.Name())
	return nil
}

func (b *recordingBackend) Close() error {
	b.closed = true
	return nil
}

func TestManager_LoadAndPlay(t *testing.T) {
	backend := &recordingBackend{}
	m := NewManager(backend, Options{})

	h, err := m.Load(context.Background(), "hit.ogg")
	require.NoError(t, err)
	assert.NotEqual(t, resource.Invalid, h)
	assert.Equal(t, 1, m.Len())

	m.Play(h)
	m.Play(h)
	require.NoError(t, m.Close())

	assert.Equal(t, []string{"hit.ogg", "hit.ogg"}, backend.played, "queued plays drain before close")
	assert.True(t, backend.closed)
}

func TestManager_LoadFailure(t *testing.T) {
	m := NewManager(&recordingBackend{}, Options{})
	defer m.Close()

	h, err := m.Load(context.Background(), "missing.ogg")
	require.Error(t, err)
	assert.Equal(t, resource.Invalid, h)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestManager_PlayUnknownHandleDropped(t *testing.T) {
	backend := &recordingBackend{}
	m := NewManager(backend, Options{})

	m.Play(resource.NewHandle(5, 1))
	m.Play(resource.Invalid)
	require.NoError(t, m.Close())

	assert.Empty(t, backend.played)
}

func TestManager_AfterClose(t *testing.T) {
	m := NewManager(&recordingBackend{}, Options{})
	require.NoError(t, m.Close())
	require.NoError(t, m.Close(), "close is idempotent")

	_, err := m.Load(context.Background(), "hit.ogg")
	assert.Error(t, err)
	m.Play(resource.NewHandle(0, 1))
}

func TestHeadless(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "boom.wav"), []byte("RIFF"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.wav"), nil, 0o644))

	backend, err := NewHeadless(dir, nil)
	require.NoError(t, err)
	m := NewManager(backend, Options{})

	h, err := m.Load(context.Background(), "boom.wav")
	require.NoError(t, err)

	_, err = m.Load(context.Background(), "empty.wav")
	assert.Error(t, err)
	_, err = m.Load(context.Background(), "../outside.wav")
	assert.Error(t, err, "paths must stay inside the asset dir")

	assert.Equal(t, int64(1), backend.Loaded())

	m.Play(h)
	require.NoError(t, m.Close())
	assert.Equal(t, int64(1), backend.Plays())
	assert.Zero(t, backend.Loaded(), "close must drop every clip")
}

// stallingBackend blocks every Play until release is closed.
type stallingBackend struct {
	recordingBackend
	release chan struct{}
}

func (b *stallingBackend) Play(c Clip) error {
	<-b.release
	return b.recordingBackend.Play(c)
}

func TestManager_PlayNeverBlocks(t *testing.T) {
	backend := &stallingBackend{release: make(chan struct{})}
	m := NewManager(backend, Options{Queue: 1})

	h, err := m.Load(context.Background(), "hit.ogg")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 50 {
			m.Play(h)
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Play blocked on a full queue")
	}

	close(backend.release)
	require.NoError(t, m.Close())
	assert.NotEmpty(t, backend.played)
	assert.Less(t, len(backend.played), 50, "plays beyond the queue are dropped")
}
