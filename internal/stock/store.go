package stock

import (
	"context"

	"github.com/shopspring/decimal"
)

// Session is the transaction-scoped surface the engine works against.
// Every method runs inside the transaction opened by Store.WithinTx;
// none of them commit or roll back on their own.
type Session interface {
	// LockQuantities locks the raw-material rows for the given ids with
	// SELECT ... FOR UPDATE, in ascending id order, and returns their
	// current quantities. Ids must be sorted ascending and deduplicated.
	// A missing id yields *MaterialNotFoundError.
	LockQuantities(ctx context.Context, ids []int64) (map[int64]decimal.Decimal, error)

	// ApplyDelta adjusts a material's quantity on hand by delta, which
	// may be negative (consumption) or positive (restoration). The row
	// must already be locked in this session.
	ApplyDelta(ctx context.Context, materialID int64, delta decimal.Decimal) (decimal.Decimal, error)

	InsertBatch(ctx context.Context, header BatchHeader, lines []MaterialLine) (int64, error)
	GetBatchHeader(ctx context.Context, id int64) (BatchHeader, error)
	GetBatchLines(ctx context.Context, batchID int64) ([]MaterialLine, error)
	UpdateBatchHeader(ctx context.Context, header BatchHeader) error
	ReplaceBatchLines(ctx context.Context, batchID int64, lines []MaterialLine) error
	DeleteBatch(ctx context.Context, id int64) error
}

// Store opens transactions and serves reads that need no locking.
type Store interface {
	// WithinTx runs fn inside a single transaction. If fn returns an
	// error the transaction is rolled back and the error returned;
	// otherwise the transaction commits.
	WithinTx(ctx context.Context, fn func(Session) error) error

	GetBatch(ctx context.Context, id int64) (Batch, error)
	ListBatches(ctx context.Context, kind BatchKind, limit, offset int) ([]Batch, error)
}
