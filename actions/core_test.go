package actions

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoreWorkflowCommands(t *testing.T) {
	var out bytes.Buffer
	core := NewCore(log.NewLogger(log.DiscardHandler()), &out)

	core.Debug("debug only")
	core.Info("info only")
	core.Warning("careful")
	core.Error("broken")

	assert.Equal(t, "::warning::careful\n::error::broken\n", out.String())
	assert.False(t, core.Failed())
}

func TestCoreSetFailed(t *testing.T) {
	var out bytes.Buffer
	core := NewCore(log.NewLogger(log.DiscardHandler()), &out)

	core.SetFailed("No matched test files!")
	core.SetFailed("second")

	assert.True(t, core.Failed())
	assert.Equal(t, []string{"No matched test files!", "second"}, core.Failures())
	assert.Equal(t, "::error::No matched test files!\n::error::second\n", out.String())
}

func TestCoreEscapesMultilineMessages(t *testing.T) {
	var out bytes.Buffer
	core := NewCore(log.NewLogger(log.DiscardHandler()), &out)

	core.Warning("100% done\r\nnext line")

	assert.Equal(t, "::warning::100%25 done%0D%0Anext line\n", out.String())
}

func TestCoreNilWriter(t *testing.T) {
	core := NewCore(log.NewLogger(log.DiscardHandler()), nil)
	require.NotPanics(t, func() {
		core.Warning("dropped")
		core.SetFailed("still recorded")
	})
	assert.True(t, core.Failed())
}

func TestAppendSummary(t *testing.T) {
	t.Run("empty path is a no-op", func(t *testing.T) {
		require.NoError(t, AppendSummary("", "# ignored"))
	})

	t.Run("appends with trailing newline", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "summary.md")
		require.NoError(t, AppendSummary(path, "# Tests"))
		require.NoError(t, AppendSummary(path, "| a |\n"))

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "# Tests\n| a |\n", string(content))
	})

	t.Run("unwritable path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "summary.md")
		err := AppendSummary(path, "x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open step summary")
	})
}
