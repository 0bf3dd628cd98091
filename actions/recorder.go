package actions

import "sync"

// Entry is one message captured by a Recorder.
type Entry struct {
	Level string
	Msg   string
}

// Recorder is a Reporter that keeps every message in memory. Components use it
// in tests to assert on exactly what was reported.
type Recorder struct {
	mu      sync.Mutex
	Entries []Entry
}

var _ Reporter = (*Recorder)(nil)

func (r *Recorder) add(level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Entries = append(r.Entries, Entry{Level: level, Msg: msg})
}

func (r *Recorder) Debug(msg string)     { r.add("debug", msg) }
func (r *Recorder) Info(msg string)      { r.add("info", msg) }
func (r *Recorder) Warning(msg string)   { r.add("warning", msg) }
func (r *Recorder) Error(msg string)     { r.add("error", msg) }
func (r *Recorder) SetFailed(msg string) { r.add("failed", msg) }

// Messages returns the messages reported at level, in order.
func (r *Recorder) Messages(level string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var msgs []string
	for _, e := range r.Entries {
		if e.Level == level {
			msgs = append(msgs, e.Msg)
		}
	}
	return msgs
}

// Failed reports whether SetFailed was called.
func (r *Recorder) Failed() bool {
	return len(r.Messages("failed")) > 0
}

// Failures returns the SetFailed messages, in order.
func (r *Recorder) Failures() []string {
	return r.Messages("failed")
}
