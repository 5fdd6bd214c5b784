package errors

import (
	"errors"
)

// Wrap wraps an error with additional context, creating a SiteError if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *SiteError {
	if err == nil {
		return nil
	}

	// Keep the location details of an existing SiteError
	var se *SiteError
	if errors.As(err, &se) {
		return &SiteError{
			Type:        errType,
			Code:        code,
			Message:     message,
			Cause:       se,
			Context:     se.Context,
			Stage:       se.Stage,
			Transform:   se.Transform,
			FilePath:    se.FilePath,
			Files:       se.Files,
			Recoverable: se.Recoverable,
		}
	}

	return &SiteError{
		Type:        errType,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: errType == ErrorTypeTransform,
	}
}

// WrapIO wraps an error as an I/O error on a file
func WrapIO(err error, code, message, filePath string) *SiteError {
	siteErr := Wrap(err, ErrorTypeIO, code, message)
	if siteErr != nil {
		siteErr.FilePath = filePath
	}
	return siteErr
}

// Join combines stage errors, skipping nils. It returns nil when every
// error is nil.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// As is a re-export of the standard library errors.As
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is is a re-export of the standard library errors.Is
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// New is a re-export of the standard library errors.New
func New(text string) error {
	return errors.New(text)
}
