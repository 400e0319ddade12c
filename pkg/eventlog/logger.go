package eventlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tvnsr/pkg/tvns"
)

// Logger appends timestamped event lines to a plain text file. The file is
// created on the first write.
type Logger struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

// New creates a logger for path. If a file already exists there, the
// logger writes to "<path>_<YYYYMMDDHHMMSS>.txt" instead so earlier logs are
// never appended to.
func New(path string) *Logger {
	return newLogger(path, time.Now)
}

func newLogger(path string, now func() time.Time) *Logger {
	if _, err := os.Stat(path); err == nil {
		path = fmt.Sprintf("%s_%s.txt", path, now().Format(tvns.FileSuffix))
	}
	return &Logger{path: path, now: now}
}

// Path returns the file the logger writes to.
func (l *Logger) Path() string {
	return l.path
}

// Log records message without a participant.
func (l *Logger) Log(message string) error {
	return l.LogParticipant("", message)
}

// LogParticipant records message for the named participant. An empty name
// is omitted from the line.
func (l *Logger) LogParticipant(participant, message string) error {
	var b strings.Builder
	b.WriteString(l.now().Format(tvns.LogTime))
	if participant != "" {
		b.WriteString(" - Participant: ")
		b.WriteString(participant)
	}
	b.WriteString(" - ")
	b.WriteString(message)
	b.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	_, err = f.WriteString(b.String())
	return errors.Join(err, f.Close())
}
