// Package logging writes one JSON object per line with ts, level, component and event fields.
package logging

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"time"
)

// Fields are the event-specific key/value pairs of a log line.
type Fields map[string]any

// Logger emits structured lines for a single component.
type Logger struct {
	out       *log.Logger
	loc       *time.Location
	component string
}

// New returns a Logger writing to stderr.
func New(loc *time.Location, component string) *Logger {
	return NewWithWriter(os.Stderr, loc, component)
}

// NewWithWriter returns a Logger writing to w.
func NewWithWriter(w io.Writer, loc *time.Location, component string) *Logger {
	if loc == nil {
		loc = time.UTC
	}
	return &Logger{out: log.New(w, "", 0), loc: loc, component: component}
}

func (l *Logger) Info(event string, f Fields)  { l.write("info", event, f) }
func (l *Logger) Warn(event string, f Fields)  { l.write("warn", event, f) }
func (l *Logger) Error(event string, f Fields) { l.write("error", event, f) }

func (l *Logger) write(level, event string, f Fields) {
	data := make(map[string]any, len(f)+4)
	for k, v := range f {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		data[k] = v
	}
	data["ts"] = time.Now().In(l.loc).Format(time.RFC3339Nano)
	data["level"] = level
	data["component"] = l.component
	data["event"] = event

	b, err := json.Marshal(data)
	if err != nil {
		l.out.Printf("failed to marshal %s log: %v", l.component, err)
		return
	}
	l.out.Println(string(b))
}
