package apperror

import "errors"

type Code string

const (
	InvalidSymbol     Code = "INVALID_SYMBOL"
	InvalidRange      Code = "INVALID_RANGE"
	NavigationTimeout Code = "NAVIGATION_TIMEOUT"
	NavigationFailed  Code = "NAVIGATION_FAILED"
	TableNotFound     Code = "TABLE_NOT_FOUND"
	MalformedRow      Code = "MALFORMED_ROW"
	Session           Code = "SESSION"
	Internal          Code = "INTERNAL"
)

type AppError struct {
	code    Code
	message string
	cause   error
}

func New(code Code, message string) *AppError {
	return &AppError{code: code, message: message}
}

// Wrap attaches a code and message to cause. The cause stays reachable
// through errors.Is / errors.As.
func Wrap(code Code, cause error, message string) *AppError {
	return &AppError{code: code, message: message, cause: cause}
}

func (e *AppError) Error() string {
	if e.cause == nil {
		return e.message
	}
	return e.message + ": " + e.cause.Error()
}

func (e *AppError) Unwrap() error { return e.cause }
func (e *AppError) Code() Code    { return e.code }

// Recoverable reports whether an error of this code is contained to a
// single row or symbol rather than the whole batch.
func (c Code) Recoverable() bool {
	return c != Session
}

// CodeOf returns the code of the outermost AppError in err's chain.
// Errors that carry no code are reported as Internal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.code
	}
	return Internal
}

func Is(err error, code Code) bool {
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.code == code {
			return true
		}
		err = appErr.cause
	}
	return false
}
