package goals

import "errors"

// Error messages returned to clients.
const (
	MsgInvalidStatement   = "invalid statement"
	MsgGoalCapReached     = "goal cap reached"
	MsgDuplicatePayload   = "duplicate category_ids in payload"
	MsgCategoryIDsMissing = "categoryIds required"
	MsgNotFound           = "not found"
	MsgLinkExists         = "category link already exists"
)

// ErrNotFound covers both absent rows and rows owned by someone else.
var ErrNotFound = errors.New(MsgNotFound)

// ValidationError rejects input before any store access.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// ConflictError reports category links that already exist for a goal.
type ConflictError struct {
	CategoryIDs []int64
}

func (e *ConflictError) Error() string {
	return MsgLinkExists
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
