package stock

import (
	"context"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"
)

// Engine drives batch stock reconciliation. Each public method is one
// atomic unit of work: validation happens before any transaction is
// opened, and all stock movement plus batch persistence happen inside a
// single store transaction.
type Engine struct {
	store     Store
	validator *CompositionValidator
	logger    *slog.Logger
}

// NewEngine creates a reconciliation engine.
func NewEngine(store Store, validator *CompositionValidator, logger *slog.Logger) *Engine {
	if validator == nil {
		validator = NewCompositionValidator(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, validator: validator, logger: logger}
}

// CreateBatch validates the composition, then atomically consumes the
// required stock and persists the batch. On any failure nothing is
// written and no stock moves.
func (e *Engine) CreateBatch(ctx context.Context, header BatchHeader, lines []MaterialLine) (int64, error) {
	if err := e.validator.Validate(header, lines); err != nil {
		return 0, err
	}

	required := aggregateByMaterial(lines)
	ids := sortedMaterialIDs(required)

	var batchID int64
	err := e.store.WithinTx(ctx, func(s Session) error {
		onHand, err := s.LockQuantities(ctx, ids)
		if err != nil {
			return err
		}

		// Check every material before touching any: a late failure must
		// not leave earlier deductions behind.
		for _, id := range ids {
			if onHand[id].LessThan(required[id]) {
				return &InsufficientStockError{
					MaterialID: id,
					Required:   required[id],
					Available:  onHand[id],
				}
			}
		}

		for _, id := range ids {
			if _, err := s.ApplyDelta(ctx, id, required[id].Neg()); err != nil {
				return err
			}
		}

		batchID, err = s.InsertBatch(ctx, header, lines)
		return err
	})
	if err != nil {
		return 0, err
	}

	e.logger.InfoContext(ctx, "batch created",
		slog.Int64("batch_id", batchID),
		slog.String("kind", string(header.Kind)),
		slog.Int("materials", len(lines)))
	return batchID, nil
}

// UpdateBatch replaces a batch's composition. Inside one transaction it
// restores the old composition's stock, validates the new composition
// against the restored quantities, and deducts the new requirements.
// The new composition may therefore reuse quantities the old one held.
func (e *Engine) UpdateBatch(ctx context.Context, header BatchHeader, lines []MaterialLine) error {
	if err := e.validator.Validate(header, lines); err != nil {
		return err
	}

	required := aggregateByMaterial(lines)

	err := e.store.WithinTx(ctx, func(s Session) error {
		existing, err := s.GetBatchHeader(ctx, header.ID)
		if err != nil {
			return err
		}
		oldLines, err := s.GetBatchLines(ctx, header.ID)
		if err != nil {
			return err
		}
		restored := aggregateByMaterial(oldLines)

		// Lock the union of old and new material rows in one ordered
		// pass so two concurrent updates cannot deadlock.
		union := make(map[int64]decimal.Decimal, len(required)+len(restored))
		for id := range required {
			union[id] = decimal.Zero
		}
		for id := range restored {
			union[id] = decimal.Zero
		}
		ids := sortedMaterialIDs(union)

		onHand, err := s.LockQuantities(ctx, ids)
		if err != nil {
			return err
		}

		for id, qty := range restored {
			if _, err := s.ApplyDelta(ctx, id, qty); err != nil {
				return err
			}
			onHand[id] = onHand[id].Add(qty)
		}

		for _, id := range ids {
			req, ok := required[id]
			if !ok {
				continue
			}
			if onHand[id].LessThan(req) {
				return &InsufficientStockError{
					MaterialID: id,
					Required:   req,
					Available:  onHand[id],
				}
			}
		}

		for _, id := range ids {
			req, ok := required[id]
			if !ok {
				continue
			}
			if _, err := s.ApplyDelta(ctx, id, req.Neg()); err != nil {
				return err
			}
		}

		// Kind and lineage are immutable across updates.
		header.Kind = existing.Kind
		header.SourceBatchID = existing.SourceBatchID
		if err := s.UpdateBatchHeader(ctx, header); err != nil {
			return err
		}
		return s.ReplaceBatchLines(ctx, header.ID, lines)
	})
	if err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "batch updated",
		slog.Int64("batch_id", header.ID),
		slog.Int("materials", len(lines)))
	return nil
}

// DeleteBatch removes a batch and restores the stock its composition
// consumed, atomically.
func (e *Engine) DeleteBatch(ctx context.Context, id int64) error {
	err := e.store.WithinTx(ctx, func(s Session) error {
		if _, err := s.GetBatchHeader(ctx, id); err != nil {
			return err
		}
		oldLines, err := s.GetBatchLines(ctx, id)
		if err != nil {
			return err
		}
		restored := aggregateByMaterial(oldLines)
		ids := sortedMaterialIDs(restored)

		if _, err := s.LockQuantities(ctx, ids); err != nil {
			return err
		}
		for _, mid := range ids {
			if _, err := s.ApplyDelta(ctx, mid, restored[mid]); err != nil {
				return err
			}
		}
		return s.DeleteBatch(ctx, id)
	})
	if err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "batch deleted", slog.Int64("batch_id", id))
	return nil
}

// aggregateByMaterial sums line quantities per material so a material
// appearing on several lines is locked and adjusted exactly once.
func aggregateByMaterial(lines []MaterialLine) map[int64]decimal.Decimal {
	totals := make(map[int64]decimal.Decimal, len(lines))
	for _, line := range lines {
		totals[line.RawMaterialID] = totals[line.RawMaterialID].Add(line.Quantity)
	}
	return totals
}

func sortedMaterialIDs(m map[int64]decimal.Decimal) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
