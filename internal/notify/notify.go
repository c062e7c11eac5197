// Package notify declares the toast-notification boundary.
package notify

import (
	"sync"

	"go.uber.org/zap"

	"github.com/danilokhury/termdock/internal/infrastructure/logging"
)

// Notifier shows transient user-facing notices.
type Notifier interface {
	Toast(message string)
}

// Log is a Notifier that writes toasts to the structured log. The default
// for headless use.
type Log struct {
	logger *logging.Logger
}

// NewLog creates a log-backed notifier.
func NewLog(logger *logging.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Toast(message string) {
	l.logger.Info("toast", zap.String("message", message))
}

// Recorder collects toasts for assertions in tests.
type Recorder struct {
	mu     sync.Mutex
	toasts []string
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Toast(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, message)
}

// Toasts returns all recorded messages.
func (r *Recorder) Toasts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.toasts...)
}
