package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// Kind classifies the outcome of a core operation.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindInsufficientStock Kind = "insufficient_stock"
	KindNotFound          Kind = "not_found"
	KindForbiddenSelf     Kind = "forbidden_self_action"
	KindForbidden         Kind = "forbidden"
	KindStorage           Kind = "storage"
)

// Error is the classified failure returned by core operations. Line and
// ProductID identify the offending batch line when set.
type Error struct {
	Kind      Kind
	Message   string
	Line      int
	ProductID int64
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind == KindStorage {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind so errors.Is(err, &Error{Kind: KindNotFound}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Validation builds a KindValidation error.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a KindNotFound error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...), Err: ErrNotFound}
}

// InsufficientStock reports the product name and the quantity still available.
func InsufficientStock(productID int64, name string, available int) *Error {
	return &Error{
		Kind:      KindInsufficientStock,
		Message:   fmt.Sprintf("Insufficient stock for %s. Available: %d", name, available),
		ProductID: productID,
	}
}

// ForbiddenSelf builds a KindForbiddenSelf error.
func ForbiddenSelf(message string) *Error {
	return &Error{Kind: KindForbiddenSelf, Message: message}
}

// Forbidden builds a KindForbidden error.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// Storage wraps an infrastructure failure. The message is safe to show to users.
func Storage(message string, err error) *Error {
	return &Error{Kind: KindStorage, Message: message, Err: err}
}

// AtLine tags the error with the 1-based batch line it belongs to.
func (e *Error) AtLine(line int, productID int64) *Error {
	e.Line = line
	if productID != 0 {
		e.ProductID = productID
	}
	e.Message = fmt.Sprintf("line %d: %s", line, e.Message)
	return e
}

// Classify returns err as *Error, wrapping anything unclassified as a storage
// failure with the supplied user-facing message.
func Classify(err error, storageMessage string) *Error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	return Storage(storageMessage, err)
}

// KindOf reports the classification of err.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	return KindStorage
}

// UserSafeMessage returns the message that may be shown to end users.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Message
	}
	if errors.Is(err, ErrNotFound) {
		return "Record not found"
	}
	return "The operation could not be completed"
}
