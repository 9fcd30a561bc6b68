package stock

import (
	"github.com/shopspring/decimal"
)

// ValidatorConfig holds composition validation settings
type ValidatorConfig struct {
	// SumTolerance is the allowed deviation of the percentage sum from
	// 100. Compositions are entered with fractional percentages, so an
	// exact comparison would reject legitimate input.
	// Default: 0.01
	SumTolerance decimal.Decimal
}

// DefaultValidatorConfig returns the default validation settings
func DefaultValidatorConfig() *ValidatorConfig {
	return &ValidatorConfig{
		SumTolerance: decimal.NewFromFloat(0.01),
	}
}

// CompositionValidator checks a batch composition before any
// transaction is opened. It is a pure checker with no side effects.
type CompositionValidator struct {
	tolerance decimal.Decimal
}

// NewCompositionValidator creates a validator with the given configuration
func NewCompositionValidator(config *ValidatorConfig) *CompositionValidator {
	if config == nil {
		config = DefaultValidatorConfig()
	}
	tolerance := config.SumTolerance
	if tolerance.IsZero() || tolerance.IsNegative() {
		tolerance = DefaultValidatorConfig().SumTolerance
	}
	return &CompositionValidator{tolerance: tolerance}
}

var hundred = decimal.NewFromInt(100)

// Validate checks the header and material lines of a batch request.
// It returns a *ValidationError describing the first rule violated, or
// nil when the composition is acceptable.
func (v *CompositionValidator) Validate(header BatchHeader, lines []MaterialLine) error {
	if header.Name == "" {
		return &ValidationError{Code: CodeMissingField, Line: -1, Message: "batch name is required"}
	}
	if !header.Size.IsPositive() {
		return &ValidationError{Code: CodeInvalidQuantity, Line: -1, Message: "batch size must be positive"}
	}
	if len(lines) == 0 {
		return &ValidationError{Code: CodeEmptyComposition, Line: -1, Message: "at least one material line is required"}
	}

	sum := decimal.Zero
	for i, line := range lines {
		if line.RawMaterialID <= 0 {
			return &ValidationError{Code: CodeMissingField, Line: i, Message: "raw material reference is required"}
		}
		if line.Unit == "" {
			return &ValidationError{Code: CodeMissingField, Line: i, Message: "unit is required"}
		}
		if !line.Quantity.IsPositive() {
			return &ValidationError{Code: CodeInvalidQuantity, Line: i, Message: "quantity must be positive"}
		}
		if !line.Percentage.IsPositive() || line.Percentage.GreaterThan(hundred) {
			return &ValidationError{Code: CodeInvalidPercentage, Line: i, Message: "percentage must be in (0, 100]"}
		}
		sum = sum.Add(line.Percentage)
	}

	if sum.Sub(hundred).Abs().GreaterThan(v.tolerance) {
		return &ValidationError{
			Code:    CodePercentageSumMismatch,
			Line:    -1,
			Message: "percentages must sum to 100, got " + sum.String(),
		}
	}

	return nil
}
