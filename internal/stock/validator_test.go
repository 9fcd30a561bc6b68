package stock

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validHeader() BatchHeader {
	return BatchHeader{
		Kind: BatchKindStandard,
		Name: "Solvent Mix 40",
		Size: decimal.NewFromInt(200),
		Unit: "kg",
	}
}

func line(materialID int64, qty, pct float64) MaterialLine {
	return MaterialLine{
		RawMaterialID: materialID,
		Quantity:      decimal.NewFromFloat(qty),
		Percentage:    decimal.NewFromFloat(pct),
		Unit:          "kg",
	}
}

func TestValidateAcceptsFullComposition(t *testing.T) {
	v := NewCompositionValidator(nil)
	err := v.Validate(validHeader(), []MaterialLine{
		line(1, 120, 60),
		line(2, 50, 25),
		line(3, 30, 15),
	})
	assert.NoError(t, err)
}

func TestValidateFailureCodes(t *testing.T) {
	tests := []struct {
		name     string
		header   BatchHeader
		lines    []MaterialLine
		wantCode ValidationCode
		wantLine int
	}{
		{
			name:     "missing batch name",
			header:   BatchHeader{Size: decimal.NewFromInt(10), Unit: "kg"},
			lines:    []MaterialLine{line(1, 10, 100)},
			wantCode: CodeMissingField,
			wantLine: -1,
		},
		{
			name: "zero batch size",
			header: BatchHeader{
				Name: "x", Size: decimal.Zero, Unit: "kg",
			},
			lines:    []MaterialLine{line(1, 10, 100)},
			wantCode: CodeInvalidQuantity,
			wantLine: -1,
		},
		{
			name: "negative batch size",
			header: BatchHeader{
				Name: "x", Size: decimal.NewFromInt(-5), Unit: "kg",
			},
			lines:    []MaterialLine{line(1, 10, 100)},
			wantCode: CodeInvalidQuantity,
			wantLine: -1,
		},
		{
			name:     "empty composition",
			header:   validHeader(),
			lines:    nil,
			wantCode: CodeEmptyComposition,
			wantLine: -1,
		},
		{
			name:     "missing material reference",
			header:   validHeader(),
			lines:    []MaterialLine{line(0, 10, 100)},
			wantCode: CodeMissingField,
			wantLine: 0,
		},
		{
			name:   "missing unit",
			header: validHeader(),
			lines: []MaterialLine{{
				RawMaterialID: 1,
				Quantity:      decimal.NewFromInt(10),
				Percentage:    decimal.NewFromInt(100),
			}},
			wantCode: CodeMissingField,
			wantLine: 0,
		},
		{
			name:     "zero quantity",
			header:   validHeader(),
			lines:    []MaterialLine{line(1, 50, 50), line(2, 0, 50)},
			wantCode: CodeInvalidQuantity,
			wantLine: 1,
		},
		{
			name:     "negative quantity",
			header:   validHeader(),
			lines:    []MaterialLine{line(1, -10, 100)},
			wantCode: CodeInvalidQuantity,
			wantLine: 0,
		},
		{
			name:     "zero percentage",
			header:   validHeader(),
			lines:    []MaterialLine{line(1, 100, 100), line(2, 10, 0)},
			wantCode: CodeInvalidPercentage,
			wantLine: 1,
		},
		{
			name:     "percentage above 100",
			header:   validHeader(),
			lines:    []MaterialLine{line(1, 100, 100.5)},
			wantCode: CodeInvalidPercentage,
			wantLine: 0,
		},
		{
			name:     "sum below 100",
			header:   validHeader(),
			lines:    []MaterialLine{line(1, 100, 60), line(2, 50, 30)},
			wantCode: CodePercentageSumMismatch,
			wantLine: -1,
		},
		{
			name:     "sum above 100",
			header:   validHeader(),
			lines:    []MaterialLine{line(1, 100, 70), line(2, 50, 40)},
			wantCode: CodePercentageSumMismatch,
			wantLine: -1,
		},
	}

	v := NewCompositionValidator(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.header, tt.lines)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantCode, verr.Code)
			assert.Equal(t, tt.wantLine, verr.Line)
		})
	}
}

func TestValidateSumTolerance(t *testing.T) {
	v := NewCompositionValidator(nil)

	// 99.999 is within the default 0.01 tolerance.
	err := v.Validate(validHeader(), []MaterialLine{
		line(1, 100, 60.5),
		line(2, 50, 39.499),
	})
	assert.NoError(t, err)

	// 99.98 is outside it.
	err = v.Validate(validHeader(), []MaterialLine{
		line(1, 100, 60.5),
		line(2, 50, 39.48),
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, CodePercentageSumMismatch, verr.Code)
}

func TestValidateCustomTolerance(t *testing.T) {
	v := NewCompositionValidator(&ValidatorConfig{
		SumTolerance: decimal.NewFromFloat(0.5),
	})
	err := v.Validate(validHeader(), []MaterialLine{
		line(1, 100, 60),
		line(2, 50, 39.6),
	})
	assert.NoError(t, err)
}
