package logging

import (
	"context"
	"errors"
	"sync"
	"time"

	"jordanella.com/profile-swiper/internal/apperr"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	ErrorCategoryDevice    ErrorCategory = "device"
	ErrorCategoryInput     ErrorCategory = "input"
	ErrorCategoryConfig    ErrorCategory = "config"
	ErrorCategoryCancelled ErrorCategory = "cancelled"
	ErrorCategorySystem    ErrorCategory = "system" // Anything outside the taxonomy, e.g. file I/O
)

// Categorize maps an error onto a category using its apperr kind
func Categorize(err error) ErrorCategory {
	switch {
	case errors.Is(err, context.Canceled):
		return ErrorCategoryCancelled
	case apperr.IsDevice(err):
		return ErrorCategoryDevice
	case apperr.IsInput(err):
		return ErrorCategoryInput
	case apperr.IsConfig(err):
		return ErrorCategoryConfig
	default:
		return ErrorCategorySystem
	}
}

// ErrorReport is one reported failure
type ErrorReport struct {
	Timestamp time.Time
	Category  ErrorCategory
	Component string
	Message   string
	Err       error
	Context   map[string]interface{}
}

// ErrorCallback is called synchronously for every report of its category
type ErrorCallback func(report *ErrorReport)

// ErrorReporter logs failures and keeps a bounded history of them, so a run
// can end with a summary of what went wrong
type ErrorReporter struct {
	logger     *Logger
	mu         sync.RWMutex
	history    []*ErrorReport
	maxHistory int
	callbacks  map[ErrorCategory][]ErrorCallback
	now        func() time.Time
}

// NewErrorReporter creates a reporter keeping the last maxHistory reports
func NewErrorReporter(maxHistory int) *ErrorReporter {
	if maxHistory <= 0 {
		maxHistory = 100
	}
	return &ErrorReporter{
		logger:     NewLogger("ErrorReporter"),
		maxHistory: maxHistory,
		callbacks:  make(map[ErrorCategory][]ErrorCallback),
		now:        time.Now,
	}
}

// SetLogger sets the logger for the error reporter
func (er *ErrorReporter) SetLogger(logger *Logger) {
	er.logger = logger
}

// Report records err. Cancellation is logged at INFO since stopping a run
// is not a failure; nil errors are ignored.
func (er *ErrorReporter) Report(component, message string, err error, context map[string]interface{}) *ErrorReport {
	if err == nil {
		return nil
	}
	report := &ErrorReport{
		Timestamp: er.now(),
		Category:  Categorize(err),
		Component: component,
		Message:   message,
		Err:       err,
		Context:   context,
	}

	fields := map[string]interface{}{
		"category": string(report.Category),
		"source":   component,
	}
	for k, v := range context {
		fields[k] = v
	}
	if report.Category == ErrorCategoryCancelled {
		er.logger.InfoWithContext(message, fields)
	} else {
		er.logger.ErrorWithContext(message, err, fields)
	}

	er.mu.Lock()
	er.history = append(er.history, report)
	if len(er.history) > er.maxHistory {
		er.history = er.history[len(er.history)-er.maxHistory:]
	}
	callbacks := append([]ErrorCallback(nil), er.callbacks[report.Category]...)
	er.mu.Unlock()

	for _, cb := range callbacks {
		cb(report)
	}
	return report
}

// OnError registers a callback for a category
func (er *ErrorReporter) OnError(category ErrorCategory, callback ErrorCallback) {
	er.mu.Lock()
	defer er.mu.Unlock()
	er.callbacks[category] = append(er.callbacks[category], callback)
}

// Recent returns up to n of the latest reports, oldest first
func (er *ErrorReporter) Recent(n int) []*ErrorReport {
	er.mu.RLock()
	defer er.mu.RUnlock()

	if n > len(er.history) {
		n = len(er.history)
	}
	out := make([]*ErrorReport, n)
	copy(out, er.history[len(er.history)-n:])
	return out
}

// Stats counts the reports in the history per category
func (er *ErrorReporter) Stats() map[ErrorCategory]int {
	er.mu.RLock()
	defer er.mu.RUnlock()

	stats := make(map[ErrorCategory]int)
	for _, r := range er.history {
		stats[r.Category]++
	}
	return stats
}

// Clear clears the error history
func (er *ErrorReporter) Clear() {
	er.mu.Lock()
	defer er.mu.Unlock()
	er.history = nil
}
