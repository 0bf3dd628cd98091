package tools

import (
	"archive/zip"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordHandler keeps the messages logged through it.
type recordHandler struct {
	msgs *[]string
}

func (h recordHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h recordHandler) Handle(_ context.Context, r slog.Record) error {
	*h.msgs = append(*h.msgs, r.Message)
	return nil
}

func (h recordHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h recordHandler) WithGroup(string) slog.Handler { return h }

func newUnpacker() *Unpacker {
	return NewUnpacker(log.NewLogger(log.DiscardHandler()))
}

func TestVsTestPath(t *testing.T) {
	toolsDir := filepath.Join("opt", "action")
	tests := []struct {
		name     string
		method   string
		location string
		version  string
		expected string
	}{
		{"explicit location", "location", `C:\vs\vstest.console.exe`, "14.0", `C:\vs\vstest.console.exe`},
		{"explicit location upper case", "LOCATION", "/custom/vstest", "", "/custom/vstest"},
		{"version 14", "version", "", "14.0", filepath.Join(toolsDir, "win-x64", "VsTest", "v140", "vstest.console.exe")},
		{"version 15", "version", "ignored", "15.0", filepath.Join(toolsDir, "win-x64", "VsTest", "v150", "Common7", "IDE", "Extensions", "TestPlatform", "vstest.console.exe")},
		{"version 16", "", "", "16.0", filepath.Join(toolsDir, "win-x64", "VsTest", "v160", "Common7", "IDE", "Extensions", "TestPlatform", "vstest.console.exe")},
		{"unknown version uses latest", "", "", "latest", filepath.Join(toolsDir, "win-x64", "VsTest", "v160", "Common7", "IDE", "Extensions", "TestPlatform", "vstest.console.exe")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, VsTestPath(toolsDir, tt.method, tt.location, tt.version))
		})
	}
}

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestUnpack(t *testing.T) {
	tmp := t.TempDir()
	archive := filepath.Join(tmp, ArchiveName)
	writeZip(t, archive, map[string]string{
		"win-x64/VsTest/v140/vstest.console.exe": "MZ",
		"win-x64/VsTest/v140/":                   "",
	})

	dest := filepath.Join(tmp, "out")
	require.NoError(t, newUnpacker().Unpack(context.Background(), archive, dest))

	content, err := os.ReadFile(filepath.Join(dest, "win-x64", "VsTest", "v140", "vstest.console.exe"))
	require.NoError(t, err)
	assert.Equal(t, "MZ", string(content))
}

func TestUnpackRejectsTraversal(t *testing.T) {
	tmp := t.TempDir()
	archive := filepath.Join(tmp, "evil.zip")
	writeZip(t, archive, map[string]string{"../escape.txt": "nope"})

	err := newUnpacker().Unpack(context.Background(), archive, filepath.Join(tmp, "out"))
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(tmp, "escape.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestUnpackMissingArchive(t *testing.T) {
	err := newUnpacker().Unpack(context.Background(), filepath.Join(t.TempDir(), "missing.zip"), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open archive")
}

func TestEnsureUnpacked(t *testing.T) {
	tmp := t.TempDir()
	archive := filepath.Join(tmp, ArchiveName)
	writeZip(t, archive, map[string]string{vsTest160: "MZ"})
	runner := VsTestPath(tmp, "", "", "")
	var msgs []string
	u := NewUnpacker(log.NewLogger(recordHandler{msgs: &msgs}))

	unpacked, err := u.EnsureUnpacked(context.Background(), runner, archive, tmp)
	require.NoError(t, err)
	assert.True(t, unpacked)

	exists, err := Exists(runner)
	require.NoError(t, err)
	assert.True(t, exists)

	// A present runner is never overwritten.
	require.NoError(t, os.WriteFile(runner, []byte("patched"), 0o644))
	unpacked, err = u.EnsureUnpacked(context.Background(), runner, archive, tmp)
	require.NoError(t, err)
	assert.False(t, unpacked)
	content, err := os.ReadFile(runner)
	require.NoError(t, err)
	assert.Equal(t, "patched", string(content))

	assert.Equal(t, []string{
		"Unpacking test tools",
		"Archive unpacked",
		"Test tool exists already, skipping unpacking",
	}, msgs)
}
