package stock

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store with transaction semantics: WithinTx
// snapshots all state and restores it when fn fails, so atomicity bugs
// in the engine show up as stale mutations.
type memStore struct {
	quantities map[int64]decimal.Decimal
	headers    map[int64]BatchHeader
	lines      map[int64][]MaterialLine
	nextID     int64
	txOpened   int
}

func newMemStore(quantities map[int64]decimal.Decimal) *memStore {
	return &memStore{
		quantities: quantities,
		headers:    make(map[int64]BatchHeader),
		lines:      make(map[int64][]MaterialLine),
		nextID:     1,
	}
}

func (m *memStore) snapshot() *memStore {
	q := make(map[int64]decimal.Decimal, len(m.quantities))
	for k, v := range m.quantities {
		q[k] = v
	}
	h := make(map[int64]BatchHeader, len(m.headers))
	for k, v := range m.headers {
		h[k] = v
	}
	l := make(map[int64][]MaterialLine, len(m.lines))
	for k, v := range m.lines {
		cp := make([]MaterialLine, len(v))
		copy(cp, v)
		l[k] = cp
	}
	return &memStore{quantities: q, headers: h, lines: l, nextID: m.nextID}
}

func (m *memStore) restore(snap *memStore) {
	m.quantities = snap.quantities
	m.headers = snap.headers
	m.lines = snap.lines
	m.nextID = snap.nextID
}

func (m *memStore) WithinTx(_ context.Context, fn func(Session) error) error {
	m.txOpened++
	snap := m.snapshot()
	if err := fn(&memSession{store: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memStore) GetBatch(_ context.Context, id int64) (Batch, error) {
	header, ok := m.headers[id]
	if !ok {
		return Batch{}, &BatchNotFoundError{BatchID: id}
	}
	return Batch{Header: header, Lines: m.lines[id]}, nil
}

func (m *memStore) ListBatches(_ context.Context, kind BatchKind, _, _ int) ([]Batch, error) {
	var out []Batch
	for id, h := range m.headers {
		if h.Kind == kind {
			out = append(out, Batch{Header: h, Lines: m.lines[id]})
		}
	}
	return out, nil
}

type memSession struct {
	store *memStore
}

func (s *memSession) LockQuantities(_ context.Context, ids []int64) (map[int64]decimal.Decimal, error) {
	out := make(map[int64]decimal.Decimal, len(ids))
	for _, id := range ids {
		qty, ok := s.store.quantities[id]
		if !ok {
			return nil, &MaterialNotFoundError{MaterialID: id}
		}
		out[id] = qty
	}
	return out, nil
}

func (s *memSession) ApplyDelta(_ context.Context, materialID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	qty, ok := s.store.quantities[materialID]
	if !ok {
		return decimal.Zero, &MaterialNotFoundError{MaterialID: materialID}
	}
	resulting := qty.Add(delta)
	if resulting.IsNegative() {
		return decimal.Zero, &NegativeStockError{MaterialID: materialID, Resulting: resulting}
	}
	s.store.quantities[materialID] = resulting
	return resulting, nil
}

func (s *memSession) InsertBatch(_ context.Context, header BatchHeader, lines []MaterialLine) (int64, error) {
	id := s.store.nextID
	s.store.nextID++
	header.ID = id
	s.store.headers[id] = header
	cp := make([]MaterialLine, len(lines))
	copy(cp, lines)
	s.store.lines[id] = cp
	return id, nil
}

func (s *memSession) GetBatchHeader(_ context.Context, id int64) (BatchHeader, error) {
	header, ok := s.store.headers[id]
	if !ok {
		return BatchHeader{}, &BatchNotFoundError{BatchID: id}
	}
	return header, nil
}

func (s *memSession) GetBatchLines(_ context.Context, batchID int64) ([]MaterialLine, error) {
	cp := make([]MaterialLine, len(s.store.lines[batchID]))
	copy(cp, s.store.lines[batchID])
	return cp, nil
}

func (s *memSession) UpdateBatchHeader(_ context.Context, header BatchHeader) error {
	if _, ok := s.store.headers[header.ID]; !ok {
		return &BatchNotFoundError{BatchID: header.ID}
	}
	s.store.headers[header.ID] = header
	return nil
}

func (s *memSession) ReplaceBatchLines(_ context.Context, batchID int64, lines []MaterialLine) error {
	cp := make([]MaterialLine, len(lines))
	copy(cp, lines)
	s.store.lines[batchID] = cp
	return nil
}

func (s *memSession) DeleteBatch(_ context.Context, id int64) error {
	if _, ok := s.store.headers[id]; !ok {
		return &BatchNotFoundError{BatchID: id}
	}
	delete(s.store.headers, id)
	delete(s.store.lines, id)
	return nil
}

func testEngine(store Store) *Engine {
	return NewEngine(store, NewCompositionValidator(nil), slog.New(slog.DiscardHandler))
}

func qty(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func header(name string) BatchHeader {
	return BatchHeader{
		Kind:      BatchKindStandard,
		Name:      name,
		BatchDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Size:      decimal.NewFromInt(100),
		Unit:      "kg",
	}
}

func TestCreateBatchDeductsStock(t *testing.T) {
	store := newMemStore(map[int64]decimal.Decimal{1: qty(100)})
	engine := testEngine(store)

	id, err := engine.CreateBatch(context.Background(), header("b1"), []MaterialLine{
		line(1, 30, 100),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.True(t, store.quantities[1].Equal(qty(70)),
		"want 70 on hand, got %s", store.quantities[1])

	batch, err := store.GetBatch(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "b1", batch.Header.Name)
	assert.Len(t, batch.Lines, 1)
}

func TestCreateBatchInsufficientStock(t *testing.T) {
	store := newMemStore(map[int64]decimal.Decimal{1: qty(100)})
	engine := testEngine(store)

	_, err := engine.CreateBatch(context.Background(), header("b1"), []MaterialLine{
		line(1, 150, 100),
	})
	var ise *InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, int64(1), ise.MaterialID)
	assert.True(t, ise.Required.Equal(qty(150)))
	assert.True(t, ise.Available.Equal(qty(100)))
	assert.True(t, store.quantities[1].Equal(qty(100)), "stock must be untouched")
	assert.Empty(t, store.headers, "no batch persisted")
}

func TestCreateBatchAtomicAcrossMaterials(t *testing.T) {
	store := newMemStore(map[int64]decimal.Decimal{
		1: qty(100),
		2: qty(5),
	})
	engine := testEngine(store)

	// Material 1 is sufficient; material 2 is not. Nothing may move.
	_, err := engine.CreateBatch(context.Background(), header("b1"), []MaterialLine{
		line(1, 50, 50),
		line(2, 10, 50),
	})
	var ise *InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, int64(2), ise.MaterialID)
	assert.True(t, store.quantities[1].Equal(qty(100)))
	assert.True(t, store.quantities[2].Equal(qty(5)))
}

func TestCreateBatchAggregatesRepeatedMaterial(t *testing.T) {
	store := newMemStore(map[int64]decimal.Decimal{1: qty(100)})
	engine := testEngine(store)

	// Two lines of the same material: 60+60 exceeds 100 even though
	// each alone would fit.
	_, err := engine.CreateBatch(context.Background(), header("b1"), []MaterialLine{
		line(1, 60, 50),
		line(1, 60, 50),
	})
	var ise *InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.True(t, ise.Required.Equal(qty(120)))
	assert.True(t, store.quantities[1].Equal(qty(100)))
}

func TestCreateBatchValidationShortCircuits(t *testing.T) {
	store := newMemStore(map[int64]decimal.Decimal{1: qty(100)})
	engine := testEngine(store)

	_, err := engine.CreateBatch(context.Background(), header("b1"), []MaterialLine{
		line(1, 30, 90), // sums to 90
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, CodePercentageSumMismatch, verr.Code)
	assert.Equal(t, 0, store.txOpened, "no transaction may be opened on validation failure")
}

func TestCreateBatchUnknownMaterial(t *testing.T) {
	store := newMemStore(map[int64]decimal.Decimal{1: qty(100)})
	engine := testEngine(store)

	_, err := engine.CreateBatch(context.Background(), header("b1"), []MaterialLine{
		line(99, 10, 100),
	})
	var mnf *MaterialNotFoundError
	require.ErrorAs(t, err, &mnf)
	assert.Equal(t, int64(99), mnf.MaterialID)
}

func TestCreateBatchIdempotentRejection(t *testing.T) {
	store := newMemStore(map[int64]decimal.Decimal{1: qty(100)})
	engine := testEngine(store)

	for i := 0; i < 3; i++ {
		_, err := engine.CreateBatch(context.Background(), header("b1"), []MaterialLine{
			line(1, 150, 100),
		})
		require.Error(t, err)
	}
	assert.True(t, store.quantities[1].Equal(qty(100)),
		"repeated rejections must not erode stock")
}

func TestUpdateBatchRestoreThenDeduct(t *testing.T) {
	store := newMemStore(map[int64]decimal.Decimal{1: qty(100)})
	engine := testEngine(store)
	ctx := context.Background()

	id, err := engine.CreateBatch(ctx, header("b1"), []MaterialLine{line(1, 30, 100)})
	require.NoError(t, err)
	require.True(t, store.quantities[1].Equal(qty(70)))

	h := header("b1 revised")
	h.ID = id
	err = engine.UpdateBatch(ctx, h, []MaterialLine{line(1, 50, 100)})
	require.NoError(t, err)

	// 70 restored to 100, then 50 deducted.
	assert.True(t, store.quantities[1].Equal(qty(50)),
		"want 50 on hand, got %s", store.quantities[1])
	assert.Equal(t, "b1 revised", store.headers[id].Name)
}

func TestUpdateBatchIdenticalCompositionNetsToZero(t *testing.T) {
	store := newMemStore(map[int64]decimal.Decimal{1: qty(100)})
	engine := testEngine(store)
	ctx := context.Background()

	lines := []MaterialLine{line(1, 30, 100)}
	id, err := engine.CreateBatch(ctx, header("b1"), lines)
	require.NoError(t, err)

	h := header("b1")
	h.ID = id
	require.NoError(t, engine.UpdateBatch(ctx, h, lines))
	assert.True(t, store.quantities[1].Equal(qty(70)))
}

func TestUpdateBatchValidAgainstRestoredStock(t *testing.T) {
	store := newMemStore(map[int64]decimal.Decimal{1: qty(100)})
	engine := testEngine(store)
	ctx := context.Background()

	// Consume 80; only 20 remains on hand.
	id, err := engine.CreateBatch(ctx, header("b1"), []MaterialLine{line(1, 80, 100)})
	require.NoError(t, err)
	require.True(t, store.quantities[1].Equal(qty(20)))

	// A new composition of 90 only fits against the restored 100, not
	// against the raw 20 on hand.
	h := header("b1")
	h.ID = id
	err = engine.UpdateBatch(ctx, h, []MaterialLine{line(1, 90, 100)})
	require.NoError(t, err)
	assert.True(t, store.quantities[1].Equal(qty(10)))
}

func TestUpdateBatchInsufficientRollsEverythingBack(t *testing.T) {
	store := newMemStore(map[int64]decimal.Decimal{
		1: qty(100),
		2: qty(50),
	})
	engine := testEngine(store)
	ctx := context.Background()

	id, err := engine.CreateBatch(ctx, header("b1"), []MaterialLine{
		line(1, 40, 50),
		line(2, 20, 50),
	})
	require.NoError(t, err)
	require.True(t, store.quantities[1].Equal(qty(60)))
	require.True(t, store.quantities[2].Equal(qty(30)))

	// New composition needs more of material 2 than even restoration
	// provides (30 + 20 = 50 < 80). The restore must be rolled back.
	h := header("b1")
	h.ID = id
	err = engine.UpdateBatch(ctx, h, []MaterialLine{
		line(1, 10, 50),
		line(2, 80, 50),
	})
	var ise *InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, int64(2), ise.MaterialID)

	assert.True(t, store.quantities[1].Equal(qty(60)), "restore must roll back")
	assert.True(t, store.quantities[2].Equal(qty(30)), "restore must roll back")

	batch, err := store.GetBatch(ctx, id)
	require.NoError(t, err)
	assert.True(t, batch.Lines[0].Quantity.Equal(qty(40)), "old composition must survive")
}

func TestUpdateBatchMissing(t *testing.T) {
	store := newMemStore(map[int64]decimal.Decimal{1: qty(100)})
	engine := testEngine(store)

	h := header("ghost")
	h.ID = 42
	err := engine.UpdateBatch(context.Background(), h, []MaterialLine{line(1, 10, 100)})
	var bnf *BatchNotFoundError
	require.ErrorAs(t, err, &bnf)
	assert.Equal(t, int64(42), bnf.BatchID)
	assert.True(t, store.quantities[1].Equal(qty(100)))
}

func TestUpdateBatchPreservesKindAndSource(t *testing.T) {
	store := newMemStore(map[int64]decimal.Decimal{1: qty(100)})
	engine := testEngine(store)
	ctx := context.Background()

	src := int64(7)
	h := header("recreation of 7")
	h.Kind = BatchKindRecreation
	h.SourceBatchID = &src
	id, err := engine.CreateBatch(ctx, h, []MaterialLine{line(1, 10, 100)})
	require.NoError(t, err)

	// The update request carries neither kind nor lineage.
	upd := header("renamed")
	upd.ID = id
	require.NoError(t, engine.UpdateBatch(ctx, upd, []MaterialLine{line(1, 20, 100)}))

	got := store.headers[id]
	assert.Equal(t, BatchKindRecreation, got.Kind)
	require.NotNil(t, got.SourceBatchID)
	assert.Equal(t, src, *got.SourceBatchID)
}

func TestDeleteBatchRestoresStock(t *testing.T) {
	store := newMemStore(map[int64]decimal.Decimal{
		1: qty(100),
		2: qty(50),
	})
	engine := testEngine(store)
	ctx := context.Background()

	id, err := engine.CreateBatch(ctx, header("b1"), []MaterialLine{
		line(1, 40, 50),
		line(2, 20, 50),
	})
	require.NoError(t, err)

	require.NoError(t, engine.DeleteBatch(ctx, id))
	assert.True(t, store.quantities[1].Equal(qty(100)))
	assert.True(t, store.quantities[2].Equal(qty(50)))
	_, err = store.GetBatch(ctx, id)
	var bnf *BatchNotFoundError
	assert.ErrorAs(t, err, &bnf)
}

func TestDeleteBatchMissing(t *testing.T) {
	store := newMemStore(map[int64]decimal.Decimal{1: qty(100)})
	engine := testEngine(store)

	err := engine.DeleteBatch(context.Background(), 42)
	var bnf *BatchNotFoundError
	require.ErrorAs(t, err, &bnf)
}

func TestStockNeverNegativeAcrossSequence(t *testing.T) {
	store := newMemStore(map[int64]decimal.Decimal{1: qty(100)})
	engine := testEngine(store)
	ctx := context.Background()

	ids := make([]int64, 0, 3)
	for i := 0; i < 3; i++ {
		id, err := engine.CreateBatch(ctx, header("seq"), []MaterialLine{line(1, 30, 100)})
		require.NoError(t, err)
		ids = append(ids, id)
		assert.False(t, store.quantities[1].IsNegative())
	}

	// 10 remains; a fourth batch of 30 must fail cleanly.
	_, err := engine.CreateBatch(ctx, header("seq"), []MaterialLine{line(1, 30, 100)})
	require.Error(t, err)
	assert.True(t, store.quantities[1].Equal(qty(10)))

	for _, id := range ids {
		require.NoError(t, engine.DeleteBatch(ctx, id))
	}
	assert.True(t, store.quantities[1].Equal(qty(100)))
}

func TestConcurrencyConflictPassesThrough(t *testing.T) {
	store := newMemStore(map[int64]decimal.Decimal{1: qty(100)})
	failing := &conflictStore{memStore: store}
	engine := testEngine(failing)

	_, err := engine.CreateBatch(context.Background(), header("b1"), []MaterialLine{
		line(1, 10, 100),
	})
	assert.True(t, errors.Is(err, ErrConcurrencyConflict))
}

// conflictStore simulates a lock-wait failure on every transaction.
type conflictStore struct {
	*memStore
}

func (c *conflictStore) WithinTx(_ context.Context, _ func(Session) error) error {
	return ErrConcurrencyConflict
}
