// Package actions implements the CI host channel used by every step of a run:
// leveled messages, the failed-run mark and the job step summary.
//
// Messages go to the structured logger. Warnings, errors and failures are also
// written as GitHub workflow commands so the host can turn them into
// annotations.
package actions

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// Reporter is the host channel consumed by the action's components.
type Reporter interface {
	Debug(msg string)
	Info(msg string)
	Warning(msg string)
	Error(msg string)
	// SetFailed marks the run as failed. It never aborts the caller.
	SetFailed(msg string)
}

var _ Reporter = (*Core)(nil)

// Core is the Reporter backed by a logger and a workflow command stream.
type Core struct {
	log log.Logger
	out io.Writer

	mu       sync.Mutex
	failures []string
}

// NewCore creates a Core. A nil out discards workflow commands.
func NewCore(logger log.Logger, out io.Writer) *Core {
	if out == nil {
		out = io.Discard
	}
	return &Core{log: logger, out: out}
}

func (c *Core) Debug(msg string) {
	c.log.Debug(msg)
}

func (c *Core) Info(msg string) {
	c.log.Info(msg)
}

func (c *Core) Warning(msg string) {
	c.log.Warn(msg)
	c.issue("warning", msg)
}

func (c *Core) Error(msg string) {
	c.log.Error(msg)
	c.issue("error", msg)
}

func (c *Core) SetFailed(msg string) {
	c.mu.Lock()
	c.failures = append(c.failures, msg)
	c.mu.Unlock()

	c.log.Error("Run marked failed", "reason", msg)
	c.issue("error", msg)
}

// Failed reports whether SetFailed was called.
func (c *Core) Failed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.failures) > 0
}

// Failures returns the SetFailed messages in call order.
func (c *Core) Failures() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.failures...)
}

func (c *Core) issue(command, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// The command stream is best-effort; the logger already has the message.
	_, _ = fmt.Fprintf(c.out, "::%s::%s\n", command, escapeData(msg))
}

// escapeData encodes the characters that would terminate a workflow command.
func escapeData(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "\r", "%0D")
	s = strings.ReplaceAll(s, "\n", "%0A")
	return s
}

// AppendSummary appends markdown to the job step summary file. An empty path
// means the host provides no summary and the call is a no-op.
func AppendSummary(path string, markdown string) error {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open step summary %s: %w", path, err)
	}
	defer f.Close()

	if !strings.HasSuffix(markdown, "\n") {
		markdown += "\n"
	}
	if _, err := f.WriteString(markdown); err != nil {
		return fmt.Errorf("failed to write step summary: %w", err)
	}
	return nil
}
