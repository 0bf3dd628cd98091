package runner

import (
	"strings"
	"sync"

	"github.com/acarl005/stripansi"
)

const defaultOutputTailBytes = 64 * 1024

// tailBuffer keeps only the last N bytes written to it, so a failing run can
// quote the end of the runner output without holding the whole log.
type tailBuffer struct {
	maxBytes int

	mu       sync.Mutex
	total    int64
	contents []byte
}

func newTailBuffer(maxBytes int) *tailBuffer {
	if maxBytes <= 0 {
		maxBytes = defaultOutputTailBytes
	}
	return &tailBuffer{
		maxBytes: maxBytes,
		contents: make([]byte, 0, maxBytes),
	}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total += int64(len(p))
	b.contents = append(b.contents, p...)
	if len(b.contents) > b.maxBytes {
		b.contents = b.contents[len(b.contents)-b.maxBytes:]
	}
	return len(p), nil
}

// Truncated reports whether older output was dropped.
func (b *tailBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.contents)) < b.total
}

// Text returns the kept output with terminal escape sequences removed.
func (b *tailBuffer) Text() string {
	b.mu.Lock()
	text := string(b.contents)
	b.mu.Unlock()

	text = strings.TrimSpace(stripansi.Strip(text))
	if b.Truncated() && text != "" {
		text = "...\n" + text
	}
	return text
}
