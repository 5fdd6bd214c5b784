package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeConfig    ErrorType = "config"
	ErrorTypeTransform ErrorType = "transform"
	ErrorTypeIO        ErrorType = "io"
	ErrorTypePublish   ErrorType = "publish"
	ErrorTypeInternal  ErrorType = "internal"
)

// SiteError is a structured error type with context.
type SiteError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Stage       string
	Transform   string
	FilePath    string
	Files       []string
	Recoverable bool
}

// Error implements the error interface.
func (e *SiteError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Stage != "" {
		parts = append(parts, "stage:"+e.Stage)
	}

	if e.Transform != "" {
		parts = append(parts, "transform:"+e.Transform)
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	parts = append(parts, e.Message)

	if len(e.Files) > 0 {
		parts = append(parts, fmt.Sprintf("(%s)", strings.Join(e.Files, ", ")))
	}

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *SiteError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *SiteError) Is(target error) bool {
	var t *SiteError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *SiteError) WithContext(key string, value interface{}) *SiteError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithStage adds the stage that produced the error.
func (e *SiteError) WithStage(stage string) *SiteError {
	e.Stage = stage

	return e
}

// WithFile adds file location information.
func (e *SiteError) WithFile(filePath string) *SiteError {
	e.FilePath = filePath

	return e
}

// NewConfigError creates a configuration error. Configuration errors are
// never recovered.
func NewConfigError(code, message string) *SiteError {
	return &SiteError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewTransformError creates a stage transformation error.
func NewTransformError(stage, transform, filePath string, cause error) *SiteError {
	return &SiteError{
		Type:        ErrorTypeTransform,
		Code:        ErrCodeTransformFailed,
		Message:     "transformation failed",
		Cause:       cause,
		Stage:       stage,
		Transform:   transform,
		FilePath:    filePath,
		Recoverable: true,
	}
}

// NewPublishError creates a publish error listing the files that failed.
func NewPublishError(message string, files []string, cause error) *SiteError {
	return &SiteError{
		Type:        ErrorTypePublish,
		Code:        ErrCodePublishFailed,
		Message:     message,
		Cause:       cause,
		Files:       files,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *SiteError {
	return &SiteError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var se *SiteError
	if errors.As(err, &se) {
		return se.Recoverable
	}

	return false
}

// IsConfigError checks if an error is a configuration error.
func IsConfigError(err error) bool {
	return hasType(err, ErrorTypeConfig)
}

// IsTransformError checks if an error came from a stage transformation.
func IsTransformError(err error) bool {
	return hasType(err, ErrorTypeTransform)
}

// IsPublishError checks if an error came from the publisher.
func IsPublishError(err error) bool {
	return hasType(err, ErrorTypePublish)
}

func hasType(err error, t ErrorType) bool {
	var se *SiteError
	if errors.As(err, &se) {
		return se.Type == t
	}

	return false
}

// FailedFiles returns the files listed on the first publish error in err.
func FailedFiles(err error) []string {
	var se *SiteError
	if errors.As(err, &se) {
		return se.Files
	}

	return nil
}

// ErrorHandler logs errors with fields matching their category.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs err with fields added. Recoverable errors are logged as
// warnings, everything else as errors.
func (h *ErrorHandler) Handle(ctx context.Context, err error, fields ...interface{}) {
	if err == nil || h.logger == nil {
		return
	}

	log := h.logger.Error
	if IsRecoverable(err) {
		log = h.logger.Warn
	}

	var se *SiteError
	if !errors.As(err, &se) {
		log(ctx, err, "Unhandled error occurred", fields...)
		return
	}

	switch se.Type {
	case ErrorTypeTransform:
		log(ctx, err, "Stage transformation failed", withFields(fields,
			"code", se.Code,
			"stage", se.Stage,
			"transform", se.Transform,
			"file", se.FilePath)...)
	case ErrorTypePublish:
		log(ctx, err, "Publish failed", withFields(fields,
			"code", se.Code,
			"failed_files", len(se.Files))...)
	default:
		log(ctx, err, "Error occurred", withFields(fields,
			"type", string(se.Type),
			"code", se.Code,
			"file", se.FilePath)...)
	}
}

func withFields(fields []interface{}, more ...interface{}) []interface{} {
	out := make([]interface{}, 0, len(fields)+len(more))
	out = append(out, fields...)
	return append(out, more...)
}

// Common error codes.
const (
	ErrCodeModeUnset       = "ERR_MODE_UNSET"
	ErrCodeConfigInvalid   = "ERR_CONFIG_INVALID"
	ErrCodeTransformFailed = "ERR_TRANSFORM_FAILED"
	ErrCodeReadFailed      = "ERR_READ_FAILED"
	ErrCodeWriteFailed     = "ERR_WRITE_FAILED"
	ErrCodeCleanFailed     = "ERR_CLEAN_FAILED"
	ErrCodePublishFailed   = "ERR_PUBLISH_FAILED"
	ErrCodeCredentials     = "ERR_CREDENTIALS"
	ErrCodeInternalError   = "ERR_INTERNAL"
)
