package orm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Common errors
var (
	ErrNotFound         = errors.New("record not found")
	ErrDuplicateKey     = errors.New("duplicate key violation")
	ErrForeignKey       = errors.New("foreign key violation")
	ErrCheckConstraint  = errors.New("check constraint violation")
	ErrNotNull          = errors.New("not null constraint violation")
	ErrConnectionFailed = errors.New("database connection failed")
	ErrTimeout          = errors.New("operation timeout")
	ErrCanceled         = errors.New("operation canceled")
	ErrMixedArray       = errors.New("array condition mixes element types")
	ErrNoColumns        = errors.New("no columns provided")
)

// SQLSTATE codes the store classifies.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeNotNullViolation    = "23502"
	CodeCheckViolation      = "23514"
)

// Error provides detailed error information
type Error struct {
	Op         string // Operation that failed
	Table      string // Table involved
	Err        error  // Underlying error
	Code       string // SQLSTATE reported by the driver (if any)
	Constraint string // Constraint name (if applicable)
	Column     string // Column name (if applicable)
	Retryable  bool
}

func (e *Error) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("orm: %s", e.Op))

	if e.Table != "" {
		parts = append(parts, fmt.Sprintf("table=%s", e.Table))
	}

	if e.Column != "" {
		parts = append(parts, fmt.Sprintf("column=%s", e.Column))
	}

	if e.Constraint != "" {
		parts = append(parts, fmt.Sprintf("constraint=%s", e.Constraint))
	}

	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	return e.Err
}

// driverError is the portable view of a driver-level error.
type driverError struct {
	code       string
	message    string
	constraint string
	column     string
}

// asDriverError extracts SQLSTATE details from lib/pq or pgx errors.
func asDriverError(err error) (driverError, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return driverError{
			code:       string(pqErr.Code),
			message:    pqErr.Message,
			constraint: pqErr.Constraint,
			column:     pqErr.Column,
		}, true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return driverError{
			code:       pgErr.Code,
			message:    pgErr.Message,
			constraint: pgErr.ConstraintName,
			column:     pgErr.ColumnName,
		}, true
	}

	return driverError{}, false
}

// ParsePostgreSQLError converts driver errors to ORM errors. The SQLSTATE code
// wins when the driver exposes one; message matching covers the rest.
func ParsePostgreSQLError(err error, op, table string) error {
	if err == nil {
		return nil
	}

	var ormErr *Error
	if errors.As(err, &ormErr) {
		return err
	}

	if errors.Is(err, sql.ErrNoRows) {
		return &Error{Op: op, Table: table, Err: ErrNotFound}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Op: op, Table: table, Err: ErrTimeout, Retryable: true}
	}

	if errors.Is(err, context.Canceled) {
		return &Error{Op: op, Table: table, Err: ErrCanceled}
	}

	if de, ok := asDriverError(err); ok {
		if sentinel := sentinelForCode(de.code); sentinel != nil {
			constraint := de.constraint
			if constraint == "" {
				constraint = extractConstraintName(de.message)
			}
			column := de.column
			if column == "" && sentinel == ErrNotNull {
				column = extractColumnName(de.message)
			}
			if sentinel != ErrNotNull {
				column = ""
			}
			return &Error{
				Op:         op,
				Table:      table,
				Err:        sentinel,
				Code:       de.code,
				Constraint: constraint,
				Column:     column,
			}
		}
		return &Error{Op: op, Table: table, Err: err, Code: de.code}
	}

	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "duplicate key value violates unique constraint"):
		return &Error{
			Op:         op,
			Table:      table,
			Err:        ErrDuplicateKey,
			Code:       CodeUniqueViolation,
			Constraint: extractConstraintName(errStr),
		}
	case strings.Contains(errStr, "violates foreign key constraint"):
		return &Error{
			Op:         op,
			Table:      table,
			Err:        ErrForeignKey,
			Code:       CodeForeignKeyViolation,
			Constraint: extractConstraintName(errStr),
		}
	case strings.Contains(errStr, "violates not-null constraint"):
		return &Error{
			Op:     op,
			Table:  table,
			Err:    ErrNotNull,
			Code:   CodeNotNullViolation,
			Column: extractColumnName(errStr),
		}
	case strings.Contains(errStr, "violates check constraint"):
		return &Error{
			Op:         op,
			Table:      table,
			Err:        ErrCheckConstraint,
			Code:       CodeCheckViolation,
			Constraint: extractConstraintName(errStr),
		}
	case strings.Contains(errStr, "connection refused"),
		strings.Contains(errStr, "connection reset"),
		strings.Contains(errStr, "broken pipe"):
		return &Error{Op: op, Table: table, Err: ErrConnectionFailed, Retryable: true}
	}

	return &Error{Op: op, Table: table, Err: err}
}

func sentinelForCode(code string) error {
	switch code {
	case CodeUniqueViolation:
		return ErrDuplicateKey
	case CodeForeignKeyViolation:
		return ErrForeignKey
	case CodeNotNullViolation:
		return ErrNotNull
	case CodeCheckViolation:
		return ErrCheckConstraint
	}
	return nil
}

func extractConstraintName(errStr string) string {
	idx := strings.Index(errStr, "constraint \"")
	if idx == -1 {
		return ""
	}
	start := idx + len("constraint \"")
	end := strings.Index(errStr[start:], "\"")
	if end == -1 {
		return ""
	}
	return errStr[start : start+end]
}

func extractColumnName(errStr string) string {
	columnIdx := strings.Index(errStr, "column \"")
	if columnIdx == -1 {
		return ""
	}
	start := columnIdx + len("column \"")
	end := strings.Index(errStr[start:], "\"")
	if end == -1 {
		return ""
	}
	return errStr[start : start+end]
}

// IsConflict reports whether err is a unique-constraint violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var ormErr *Error
	if errors.As(err, &ormErr) {
		return ormErr.Retryable
	}
	return false
}

// IsConstraintError checks if an error is a constraint violation
func IsConstraintError(err error) bool {
	return errors.Is(err, ErrDuplicateKey) ||
		errors.Is(err, ErrForeignKey) ||
		errors.Is(err, ErrCheckConstraint) ||
		errors.Is(err, ErrNotNull)
}

// GetConstraintName extracts the constraint name from an error
func GetConstraintName(err error) string {
	var ormErr *Error
	if errors.As(err, &ormErr) {
		return ormErr.Constraint
	}
	return ""
}
