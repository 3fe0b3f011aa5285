package sink

import (
	"fmt"
	"sync"

	"github.com/bobg/mirror"
)

var _ mirror.Sink = &Recorder{}

// Level is the severity of a Record.
type Level string

// Levels.
const (
	Info  Level = "info"
	Error Level = "error"
)

// Record is one call to a Sink method.
type Record struct {
	Level  Level
	Format string
	Args   []interface{}
}

// Message is the formatted text of the record.
func (r Record) Message() string {
	return fmt.Sprintf(r.Format, r.Args...)
}

// Recorder is a Sink that keeps every record it receives,
// optionally relaying each one to a nested Sink.
// It is safe for concurrent use.
type Recorder struct {
	next mirror.Sink

	mu      sync.Mutex
	records []Record
}

// NewRecorder produces a Recorder relaying to next,
// which may be nil.
func NewRecorder(next mirror.Sink) *Recorder {
	return &Recorder{next: next}
}

// Infof implements mirror.Sink.
func (r *Recorder) Infof(format string, args ...interface{}) {
	r.add(Info, format, args)
	if r.next != nil {
		r.next.Infof(format, args...)
	}
}

// Errorf implements mirror.Sink.
func (r *Recorder) Errorf(format string, args ...interface{}) {
	r.add(Error, format, args)
	if r.next != nil {
		r.next.Errorf(format, args...)
	}
}

func (r *Recorder) add(level Level, format string, args []interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, Record{Level: level, Format: format, Args: args})
}

// Records returns a copy of everything recorded so far.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.records...)
}

// Messages returns the formatted messages recorded at the given level.
func (r *Recorder) Messages(level Level) []string {
	var result []string
	for _, rec := range r.Records() {
		if rec.Level == level {
			result = append(result, rec.Message())
		}
	}
	return result
}

// Reset discards everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.records = nil
	r.mu.Unlock()
}
