package stock

import (
	"time"

	"github.com/shopspring/decimal"
)

// BatchKind distinguishes the two batch families that share the
// reconciliation engine and the batches tables.
type BatchKind string

const (
	BatchKindStandard   BatchKind = "standard"
	BatchKindRecreation BatchKind = "recreation"
)

// RawMaterial is the stock-bearing record. QuantityOnHand is mutated
// exclusively through ledger operations inside an engine transaction.
type RawMaterial struct {
	ID             int64            `json:"id"`
	Name           string           `json:"name"`
	Unit           string           `json:"unit"`
	QuantityOnHand decimal.Decimal  `json:"quantity_on_hand"`
	CategoryID     *int64           `json:"category_id,omitempty"`
	SupplierID     *int64           `json:"supplier_id,omitempty"`
	ReorderLevel   *decimal.Decimal `json:"reorder_level,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// BatchHeader holds the batch-level fields, shared by standard batches
// and recreations. SourceBatchID is set only for recreations.
type BatchHeader struct {
	ID            int64           `json:"id"`
	Kind          BatchKind       `json:"kind"`
	Name          string          `json:"name"`
	BatchDate     time.Time       `json:"batch_date"`
	Size          decimal.Decimal `json:"size"`
	Unit          string          `json:"unit"`
	SourceBatchID *int64          `json:"source_batch_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// MaterialLine is one row of a batch composition. Quantity is consumed
// from stock when the batch is created and restored when it is updated
// or deleted.
type MaterialLine struct {
	RawMaterialID int64           `json:"raw_material_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	Percentage    decimal.Decimal `json:"percentage"`
	Unit          string          `json:"unit"`
}

// Batch is a header together with its ordered composition lines.
type Batch struct {
	Header BatchHeader    `json:"header"`
	Lines  []MaterialLine `json:"materials"`
}
