package stock

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationCode identifies which composition rule a request violated.
type ValidationCode string

const (
	CodeEmptyComposition      ValidationCode = "EmptyComposition"
	CodeMissingField          ValidationCode = "MissingField"
	CodeInvalidPercentage     ValidationCode = "InvalidPercentage"
	CodeInvalidQuantity       ValidationCode = "InvalidQuantity"
	CodePercentageSumMismatch ValidationCode = "PercentageSumMismatch"
)

// ValidationError is returned before any transaction is opened. Line is
// the zero-based index of the offending material line, or -1 when the
// failure is not line-specific.
type ValidationError struct {
	Code    ValidationCode
	Line    int
	Message string
}

func (e *ValidationError) Error() string {
	if e.Line >= 0 {
		return fmt.Sprintf("%s: line %d: %s", e.Code, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// InsufficientStockError reports a material whose requested quantity
// exceeds the locked quantity on hand.
type InsufficientStockError struct {
	MaterialID int64
	Required   decimal.Decimal
	Available  decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for material %d: required %s, available %s",
		e.MaterialID, e.Required.String(), e.Available.String())
}

// MaterialNotFoundError reports a composition line referencing a raw
// material that does not exist.
type MaterialNotFoundError struct {
	MaterialID int64
}

func (e *MaterialNotFoundError) Error() string {
	return fmt.Sprintf("raw material %d not found", e.MaterialID)
}

// BatchNotFoundError reports an update or delete against a missing batch.
type BatchNotFoundError struct {
	BatchID int64
}

func (e *BatchNotFoundError) Error() string {
	return fmt.Sprintf("batch %d not found", e.BatchID)
}

// NegativeStockError is the defensive backstop behind the ledger: the
// caller must validate sufficiency against locked quantities first, so
// hitting this indicates a programming error, not bad user input.
type NegativeStockError struct {
	MaterialID int64
	Resulting  decimal.Decimal
}

func (e *NegativeStockError) Error() string {
	return fmt.Sprintf("stock for material %d would go negative (%s)",
		e.MaterialID, e.Resulting.String())
}

// ErrConcurrencyConflict wraps lock-wait timeouts, deadlocks, and
// serialization failures. The engine does not retry; callers may retry
// the whole operation from validation.
var ErrConcurrencyConflict = errors.New("concurrent stock operation conflict")

// PersistenceError wraps unexpected database failures. The wrapped
// detail is logged server-side and never surfaced to clients.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsUserError reports whether err should map to a 400-class response
// (user-correctable) rather than a 500-class one.
func IsUserError(err error) bool {
	var ve *ValidationError
	var ise *InsufficientStockError
	var mnf *MaterialNotFoundError
	var bnf *BatchNotFoundError
	return errors.As(err, &ve) || errors.As(err, &ise) ||
		errors.As(err, &mnf) || errors.As(err, &bnf)
}
