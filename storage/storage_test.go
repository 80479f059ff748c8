package storage

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStem(t *testing.T) {
	tests := map[string]string{
		"mods/waves.wasm":     "waves",
		"/abs/path/hud.wasm":  "hud",
		"plain":               "plain",
		"mods/two.parts.wasm": "two.parts",
	}
	for in, want := range tests {
		assert.Equal(t, want, Stem(in), in)
	}
}

func TestSandbox_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, nil)
	require.NoError(t, err)
	defer s.Close()

	sb, err := s.Sandbox("waves")
	require.NoError(t, err)

	require.NoError(t, sb.Save("save/slot1.bin", []byte{1, 2, 3}))
	got, err := sb.Load("save/slot1.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)

	onDisk, err := os.ReadFile(filepath.Join(dir, "waves", "save", "slot1.bin"))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, onDisk)

	require.NoError(t, sb.Save("empty", nil))
	got, err = sb.Load("empty")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = sb.Load("missing")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	same, err := s.Sandbox("waves")
	require.NoError(t, err)
	assert.Same(t, sb, same)
}

func TestSandbox_Escapes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "secret"), []byte("x"), 0o644))

	s, err := NewStore(filepath.Join(dir, "data"), nil)
	require.NoError(t, err)
	defer s.Close()

	sb, err := s.Sandbox("mod")
	require.NoError(t, err)

	_, err = sb.Load("../../secret")
	assert.Error(t, err)
	assert.Error(t, sb.Save("../escape", []byte("x")))
	_, err = os.Stat(filepath.Join(dir, "data", "escape"))
	assert.ErrorIs(t, err, fs.ErrNotExist)

	for _, name := range []string{"", "..", "a/b"} {
		_, err := s.Sandbox(name)
		assert.Error(t, err, "name %q", name)
	}
}
