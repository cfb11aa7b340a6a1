// Package errors provides centralized error handling with categories and context
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"time"
)

// ErrorCategory represents the type of error for better categorization
type ErrorCategory string

const (
	CategoryCapture          ErrorCategory = "frame-capture"
	CategoryDeviceBusy       ErrorCategory = "device-busy"
	CategoryDeviceNotFound   ErrorCategory = "device-not-found"
	CategoryDetection        ErrorCategory = "detection-backend"
	CategoryDatabase         ErrorCategory = "database"
	CategoryVideoRecording   ErrorCategory = "video-recording"
	CategoryResourceConflict ErrorCategory = "resource-conflict"
	CategoryFileIO           ErrorCategory = "file-io"
	CategoryConfiguration    ErrorCategory = "configuration"
	CategoryValidation       ErrorCategory = "validation"
	CategoryTimeout          ErrorCategory = "timeout"
	CategoryCancellation     ErrorCategory = "cancellation"
	CategorySystem           ErrorCategory = "system-resource"
	CategoryNotification     ErrorCategory = "notification"
	CategoryMQTTPublish      ErrorCategory = "mqtt-publish"
	CategoryState            ErrorCategory = "state"
	CategoryGeneric          ErrorCategory = "generic"
)

// Priority constants for error prioritization
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// EnhancedError wraps an error with component, category and context metadata
type EnhancedError struct {
	Err       error          // Original error
	Component string         // Component where the error occurred
	Category  ErrorCategory  // Error category for grouping
	Priority  string         // Explicit priority override (optional)
	Context   map[string]any // Additional context data
	Timestamp time.Time      // When the error occurred
}

// Error implements the error interface
func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

// Unwrap implements the error unwrapping interface
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is matches either the wrapped error or another EnhancedError's category
func (ee *EnhancedError) Is(target error) bool {
	if ee2, ok := target.(*EnhancedError); ok {
		return ee.Category == ee2.Category
	}
	return stderrors.Is(ee.Err, target)
}

// GetCategory returns the error category as a string
func (ee *EnhancedError) GetCategory() string {
	return string(ee.Category)
}

// GetContext returns a copy of the context data
func (ee *EnhancedError) GetContext() map[string]any {
	if ee.Context == nil {
		return nil
	}
	ctx := make(map[string]any, len(ee.Context))
	maps.Copy(ctx, ee.Context)
	return ctx
}

// LogAttrs flattens the metadata into key/value pairs for slog
func (ee *EnhancedError) LogAttrs() []any {
	attrs := []any{
		"error", ee.Err.Error(),
		"component", ee.Component,
		"category", string(ee.Category),
	}
	if ee.Priority != "" {
		attrs = append(attrs, "priority", ee.Priority)
	}
	for k, v := range ee.Context {
		attrs = append(attrs, k, v)
	}
	return attrs
}

// ErrorBuilder provides a fluent interface for building enhanced errors
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	priority  string
	context   map[string]any
}

// New creates an error builder from an existing error
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err, category: CategoryGeneric}
}

// Newf creates an error builder from a formatted message
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the component where the error occurred
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the error category
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Priority overrides the default category-derived priority
func (eb *ErrorBuilder) Priority(priority string) *ErrorBuilder {
	eb.priority = priority
	return eb
}

// Context adds a key/value pair of context data
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// CameraContext attaches the camera id, present on most errors in this system
func (eb *ErrorBuilder) CameraContext(cameraID int) *ErrorBuilder {
	return eb.Context("camera_id", cameraID)
}

// Timing attaches an operation name and its duration
func (eb *ErrorBuilder) Timing(operation string, duration time.Duration) *ErrorBuilder {
	eb.Context("operation", operation)
	return eb.Context("duration_ms", duration.Milliseconds())
}

// Build constructs the final EnhancedError
func (eb *ErrorBuilder) Build() *EnhancedError {
	return &EnhancedError{
		Err:       eb.err,
		Component: eb.component,
		Category:  eb.category,
		Priority:  eb.priority,
		Context:   eb.context,
		Timestamp: time.Now(),
	}
}

// Is reports whether any error in err's tree matches target
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// HasCategory reports whether err carries the given category
func HasCategory(err error, category ErrorCategory) bool {
	var ee *EnhancedError
	if stderrors.As(err, &ee) {
		return ee.Category == category
	}
	return false
}
