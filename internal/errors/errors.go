// SPDX-License-Identifier: EPL-2.0

// Package errors provides categorized errors with structured context and an
// optional reporter hook used for telemetry.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

// ErrorCategory groups errors by the subsystem that produced them.
type ErrorCategory string

const (
	CategoryFileIO        ErrorCategory = "file-io"
	CategoryFileParsing   ErrorCategory = "file-parsing"
	CategoryAudioSource   ErrorCategory = "audio-source"
	CategoryAudioDevice   ErrorCategory = "audio-device"
	CategoryBuffer        ErrorCategory = "audio-buffer"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryValidation    ErrorCategory = "validation"
	CategoryState         ErrorCategory = "state"
	CategoryTimeout       ErrorCategory = "timeout"
	CategoryCancellation  ErrorCategory = "cancellation"
	CategoryNetwork       ErrorCategory = "network"
	CategoryGeneric       ErrorCategory = "generic"
)

// Priority constants
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// EnhancedError wraps an error with component, category and context.
type EnhancedError struct {
	Err       error
	Component string
	Category  ErrorCategory
	Priority  string
	Timestamp time.Time

	mu      sync.RWMutex
	context map[string]any
}

// Error implements the error interface
func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

// Unwrap implements the error unwrapping interface
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is matches another EnhancedError by category, otherwise defers to the
// wrapped error.
func (ee *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return ee.Category == other.Category
	}
	return stderrors.Is(ee.Err, target)
}

// GetContext returns a copy of the context map.
func (ee *EnhancedError) GetContext() map[string]any {
	ee.mu.RLock()
	defer ee.mu.RUnlock()

	out := make(map[string]any, len(ee.context))
	maps.Copy(out, ee.context)
	return out
}

// ErrorBuilder assembles an EnhancedError.
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	priority  string
	context   map[string]any
}

// New starts a builder wrapping err. A nil err is replaced by a generic
// error so that Build never returns an EnhancedError without a cause.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err, context: make(map[string]any)}
}

// Newf starts a builder from a formatted message.
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

func (eb *ErrorBuilder) Priority(priority string) *ErrorBuilder {
	eb.priority = priority
	return eb
}

func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	eb.context[key] = value
	return eb
}

// Timing records how long an operation ran before failing.
func (eb *ErrorBuilder) Timing(operation string, d time.Duration) *ErrorBuilder {
	eb.context["operation"] = operation
	eb.context["duration_ms"] = d.Milliseconds()
	return eb
}

// Build creates the EnhancedError and hands it to the reporter, if any.
func (eb *ErrorBuilder) Build() *EnhancedError {
	err := eb.err
	if err == nil {
		msg, _ := eb.context["error"].(string)
		if msg == "" {
			msg = "unknown error"
		}
		err = stderrors.New(msg)
	}

	category := eb.category
	if category == "" {
		category = CategoryGeneric
	}
	component := eb.component
	if component == "" {
		component = "unknown"
	}

	ee := &EnhancedError{
		Err:       err,
		Component: component,
		Category:  category,
		Priority:  eb.priority,
		Timestamp: time.Now(),
		context:   eb.context,
	}

	if r := currentReporter(); r != nil && r.IsEnabled() {
		r.ReportError(ee)
	}

	return ee
}

// Reporter receives built errors, e.g. for telemetry.
type Reporter interface {
	IsEnabled() bool
	ReportError(err *EnhancedError)
}

type reporterHolder struct{ r Reporter }

var reporter atomic.Pointer[reporterHolder]

// SetReporter installs r as the global reporter. Passing nil disables
// reporting.
func SetReporter(r Reporter) {
	if r == nil {
		reporter.Store(nil)
		return
	}
	reporter.Store(&reporterHolder{r: r})
}

func currentReporter() Reporter {
	h := reporter.Load()
	if h == nil {
		return nil
	}
	return h.r
}

// IsCategory reports whether err carries the given category anywhere in its
// chain.
func IsCategory(err error, category ErrorCategory) bool {
	var ee *EnhancedError
	for err != nil {
		if !stderrors.As(err, &ee) {
			return false
		}
		if ee.Category == category {
			return true
		}
		err = ee.Err
	}
	return false
}

// NewStd creates a plain error, like the standard library errors.New.
func NewStd(text string) error {
	return stderrors.New(text)
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target any) bool {
	return stderrors.As(err, target)
}

func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

func Join(errs ...error) error {
	return stderrors.Join(errs...)
}
