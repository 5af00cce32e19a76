// Package apperr holds the error taxonomy shared by the admin services.
//
// Services return these kinds (wrapped with %w where useful) so that
// controllers can map them to HTTP responses without string matching.
package apperr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrNotFound            = errors.New("not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// ValidationError describes malformed input rejected before any store call.
// Fields holds per-field messages when several inputs failed at once.
type ValidationError struct {
	Field   string
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Validation builds a ValidationError for field.
func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFound wraps ErrNotFound with the missing entity.
func NotFound(entity string) error {
	return fmt.Errorf("%s %w", entity, ErrNotFound)
}

// Constraint classifies store-side constraint violations.
type Constraint string

const (
	ConstraintNone       Constraint = ""
	ConstraintUnique     Constraint = "unique"
	ConstraintCheck      Constraint = "check"
	ConstraintForeignKey Constraint = "foreign_key"
	ConstraintNotNull    Constraint = "not_null"
)

// MySQL server error numbers we translate.
const (
	mysqlDuplicateEntry     = 1062
	mysqlNotNull            = 1048
	mysqlNoDefault          = 1364
	mysqlForeignKeyParent   = 1451
	mysqlForeignKeyChild    = 1452
	mysqlCheckViolated      = 3819
	mysqlOutOfRangeUnsigned = 1690
)

// RemoteError is a passthrough failure from the store. Message, when set,
// is safe to show to the caller.
type RemoteError struct {
	Op         string
	Constraint Constraint
	Name       string
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.Constraint != ConstraintNone {
		return fmt.Sprintf("%s: %s constraint violated: %v", e.Op, e.Constraint, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// FromStore translates a GORM/MySQL error returned by op into the taxonomy.
// Nil stays nil and already translated errors pass through unchanged.
func FromStore(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInsufficientBalance) || errors.Is(err, ErrValidation) {
		return err
	}
	var remote *RemoteError
	if errors.As(err, &remote) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &RemoteError{Op: op, Constraint: ConstraintUnique, Err: err}
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return &RemoteError{Op: op, Constraint: ConstraintForeignKey, Err: err}
	}
	if errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return &RemoteError{Op: op, Constraint: ConstraintCheck, Err: err}
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return &RemoteError{Op: op, Constraint: constraintFromNumber(myErr.Number), Name: constraintName(myErr.Message), Err: err}
	}
	return &RemoteError{Op: op, Err: err}
}

// ConstraintOf reports the constraint kind of a RemoteError in err's chain.
func ConstraintOf(err error) Constraint {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Constraint
	}
	return ConstraintNone
}

// IsCheckViolation reports whether err is a CHECK constraint failure, used by
// the ledger to turn a rejected decrement into ErrInsufficientBalance.
func IsCheckViolation(err error) bool {
	if ConstraintOf(err) == ConstraintCheck {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlCheckViolated || myErr.Number == mysqlOutOfRangeUnsigned
	}
	return false
}

func constraintFromNumber(n uint16) Constraint {
	switch n {
	case mysqlDuplicateEntry:
		return ConstraintUnique
	case mysqlCheckViolated, mysqlOutOfRangeUnsigned:
		return ConstraintCheck
	case mysqlForeignKeyParent, mysqlForeignKeyChild:
		return ConstraintForeignKey
	case mysqlNotNull, mysqlNoDefault:
		return ConstraintNotNull
	default:
		return ConstraintNone
	}
}

// constraintName extracts the quoted key/constraint name from a MySQL message,
// e.g. "Duplicate entry 'x' for key 'assistants.name'".
func constraintName(msg string) string {
	for _, marker := range []string{"for key '", "Check constraint '", "CONSTRAINT `"} {
		idx := strings.Index(msg, marker)
		if idx < 0 {
			continue
		}
		rest := msg[idx+len(marker):]
		end := strings.IndexAny(rest, "'`")
		if end > 0 {
			return rest[:end]
		}
	}
	return ""
}

// AuditWarning reports that the primary mutation succeeded but its audit
// entry could not be written synchronously.
type AuditWarning struct {
	ActivityType string
	Err          error
}

func (w *AuditWarning) Error() string {
	return fmt.Sprintf("audit entry %q not recorded: %v", w.ActivityType, w.Err)
}

func (w *AuditWarning) Unwrap() error { return w.Err }
