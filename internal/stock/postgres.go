package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// WithinTx runs fn inside a single transaction, rolling back on error.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(Session) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return classifyPgError("begin", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgSession{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return classifyPgError("commit", err)
	}
	return nil
}

// GetBatch reads a batch and its lines without locking anything.
func (s *PostgresStore) GetBatch(ctx context.Context, id int64) (Batch, error) {
	header, err := getBatchHeader(ctx, s.pool, id)
	if err != nil {
		return Batch{}, err
	}
	lines, err := queryBatchLines(ctx, s.pool, id)
	if err != nil {
		return Batch{}, err
	}
	return Batch{Header: header, Lines: lines}, nil
}

// ListBatches returns batches of one kind, newest first, with their lines.
func (s *PostgresStore) ListBatches(ctx context.Context, kind BatchKind, limit, offset int) ([]Batch, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, kind, name, batch_date, size, unit, source_batch_id, created_at, updated_at
		FROM batches
		WHERE kind = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, string(kind), limit, offset)
	if err != nil {
		return nil, classifyPgError("list batches", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		header, err := scanBatchHeader(rows)
		if err != nil {
			return nil, classifyPgError("list batches", err)
		}
		batches = append(batches, Batch{Header: header})
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPgError("list batches", err)
	}

	for i := range batches {
		lines, err := queryBatchLines(ctx, s.pool, batches[i].Header.ID)
		if err != nil {
			return nil, err
		}
		batches[i].Lines = lines
	}
	return batches, nil
}

// pgSession implements Session over an open transaction.
type pgSession struct {
	tx pgx.Tx
}

func (s *pgSession) LockQuantities(ctx context.Context, ids []int64) (map[int64]decimal.Decimal, error) {
	ids = dedupeSorted(ids)
	if len(ids) == 0 {
		return map[int64]decimal.Decimal{}, nil
	}

	rows, err := s.tx.Query(ctx, `
		SELECT id, quantity_on_hand
		FROM raw_materials
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`, ids)
	if err != nil {
		return nil, classifyPgError("lock quantities", err)
	}
	defer rows.Close()

	onHand := make(map[int64]decimal.Decimal, len(ids))
	for rows.Next() {
		var id int64
		var qty decimal.Decimal
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, classifyPgError("lock quantities", err)
		}
		onHand[id] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPgError("lock quantities", err)
	}

	for _, id := range ids {
		if _, ok := onHand[id]; !ok {
			return nil, &MaterialNotFoundError{MaterialID: id}
		}
	}
	return onHand, nil
}

func (s *pgSession) ApplyDelta(ctx context.Context, materialID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	var resulting decimal.Decimal
	err := s.tx.QueryRow(ctx, `
		UPDATE raw_materials
		SET quantity_on_hand = quantity_on_hand + $2, updated_at = now()
		WHERE id = $1
		RETURNING quantity_on_hand`, materialID, delta).Scan(&resulting)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, &MaterialNotFoundError{MaterialID: materialID}
		}
		var pgErr *pgconn.PgError
		// 23514: the quantity_on_hand >= 0 CHECK fired.
		if errors.As(err, &pgErr) && pgErr.Code == "23514" {
			return decimal.Zero, &NegativeStockError{MaterialID: materialID, Resulting: delta}
		}
		return decimal.Zero, classifyPgError("apply delta", err)
	}
	if resulting.IsNegative() {
		return decimal.Zero, &NegativeStockError{MaterialID: materialID, Resulting: resulting}
	}
	return resulting, nil
}

func (s *pgSession) InsertBatch(ctx context.Context, header BatchHeader, lines []MaterialLine) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `
		INSERT INTO batches (kind, name, batch_date, size, unit, source_batch_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		string(header.Kind), header.Name, header.BatchDate, header.Size, header.Unit, header.SourceBatchID,
	).Scan(&id)
	if err != nil {
		return 0, classifyPgError("insert batch", err)
	}
	if err := insertLines(ctx, s.tx, id, lines); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *pgSession) GetBatchHeader(ctx context.Context, id int64) (BatchHeader, error) {
	return getBatchHeader(ctx, s.tx, id)
}

func (s *pgSession) GetBatchLines(ctx context.Context, batchID int64) ([]MaterialLine, error) {
	return queryBatchLines(ctx, s.tx, batchID)
}

func (s *pgSession) UpdateBatchHeader(ctx context.Context, header BatchHeader) error {
	tag, err := s.tx.Exec(ctx, `
		UPDATE batches
		SET name = $2, batch_date = $3, size = $4, unit = $5, updated_at = now()
		WHERE id = $1`,
		header.ID, header.Name, header.BatchDate, header.Size, header.Unit)
	if err != nil {
		return classifyPgError("update batch header", err)
	}
	if tag.RowsAffected() == 0 {
		return &BatchNotFoundError{BatchID: header.ID}
	}
	return nil
}

func (s *pgSession) ReplaceBatchLines(ctx context.Context, batchID int64, lines []MaterialLine) error {
	if _, err := s.tx.Exec(ctx, `DELETE FROM batch_materials WHERE batch_id = $1`, batchID); err != nil {
		return classifyPgError("replace batch lines", err)
	}
	return insertLines(ctx, s.tx, batchID, lines)
}

func (s *pgSession) DeleteBatch(ctx context.Context, id int64) error {
	// batch_materials rows go with the batch via ON DELETE CASCADE.
	tag, err := s.tx.Exec(ctx, `DELETE FROM batches WHERE id = $1`, id)
	if err != nil {
		return classifyPgError("delete batch", err)
	}
	if tag.RowsAffected() == 0 {
		return &BatchNotFoundError{BatchID: id}
	}
	return nil
}

// querier is the read surface shared by the pool and an open transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertLines(ctx context.Context, tx pgx.Tx, batchID int64, lines []MaterialLine) error {
	for i, line := range lines {
		_, err := tx.Exec(ctx, `
			INSERT INTO batch_materials (batch_id, raw_material_id, quantity, percentage, unit, line_no)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			batchID, line.RawMaterialID, line.Quantity, line.Percentage, line.Unit, i)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" {
				return &MaterialNotFoundError{MaterialID: line.RawMaterialID}
			}
			return classifyPgError("insert batch lines", err)
		}
	}
	return nil
}

func getBatchHeader(ctx context.Context, q querier, id int64) (BatchHeader, error) {
	row := q.QueryRow(ctx, `
		SELECT id, kind, name, batch_date, size, unit, source_batch_id, created_at, updated_at
		FROM batches
		WHERE id = $1`, id)
	header, err := scanBatchHeader(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BatchHeader{}, &BatchNotFoundError{BatchID: id}
		}
		return BatchHeader{}, classifyPgError("get batch header", err)
	}
	return header, nil
}

func queryBatchLines(ctx context.Context, q querier, batchID int64) ([]MaterialLine, error) {
	rows, err := q.Query(ctx, `
		SELECT raw_material_id, quantity, percentage, unit
		FROM batch_materials
		WHERE batch_id = $1
		ORDER BY line_no`, batchID)
	if err != nil {
		return nil, classifyPgError("get batch lines", err)
	}
	defer rows.Close()

	var lines []MaterialLine
	for rows.Next() {
		var line MaterialLine
		if err := rows.Scan(&line.RawMaterialID, &line.Quantity, &line.Percentage, &line.Unit); err != nil {
			return nil, classifyPgError("get batch lines", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPgError("get batch lines", err)
	}
	return lines, nil
}

func scanBatchHeader(row pgx.Row) (BatchHeader, error) {
	var h BatchHeader
	var kind string
	err := row.Scan(&h.ID, &kind, &h.Name, &h.BatchDate, &h.Size, &h.Unit,
		&h.SourceBatchID, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return BatchHeader{}, err
	}
	h.Kind = BatchKind(kind)
	return h, nil
}

// classifyPgError turns serialization failures, deadlocks, and lock
// timeouts into ErrConcurrencyConflict; anything else unexpected
// becomes a PersistenceError.
func classifyPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%s: %w", op, ErrConcurrencyConflict)
		}
	}
	return &PersistenceError{Op: op, Err: err}
}

func dedupeSorted(ids []int64) []int64 {
	if len(ids) < 2 {
		return ids
	}
	out := ids[:1]
	for _, id := range ids[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}
