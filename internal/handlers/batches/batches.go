package batches

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"chemstock_system/internal/config"
	"chemstock_system/internal/handlers"
	"chemstock_system/internal/middlewares"
	"chemstock_system/internal/stock"
)

type BatchHandler struct {
	h *handlers.Handler
}

func NewBatchHandler(h *handlers.Handler) *BatchHandler {
	return &BatchHandler{h: h}
}

type materialLineRequest struct {
	MaterialID  int64           `json:"materialId"`
	RawMaterial string          `json:"rawMaterial"`
	Name        string          `json:"name"`
	Quantity    decimal.Decimal `json:"quantity"`
	Percentage  decimal.Decimal `json:"percentage"`
	Unit        string          `json:"unit"`
	Notes       string          `json:"notes,omitempty"`
}

type addBatchRequest struct {
	BatchName string                `json:"batchName"`
	BatchDate string                `json:"batchDate"`
	BatchSize decimal.Decimal       `json:"batchSize"`
	BatchUnit string                `json:"batchUnit"`
	Materials []materialLineRequest `json:"materials"`
}

type updateBatchRequest struct {
	ID        int64                 `json:"id"`
	BatchName string                `json:"batchName"`
	BatchDate string                `json:"batchDate"`
	BatchSize decimal.Decimal       `json:"batchSize"`
	BatchUnit string                `json:"batchUnit"`
	Materials []materialLineRequest `json:"materials"`
}

type deleteBatchRequest struct {
	Data struct {
		ID int64 `json:"id"`
	} `json:"data"`
}

// AddBatch creates a standard batch, consuming the composed raw
// materials from stock atomically.
func (bh *BatchHandler) AddBatch(w http.ResponseWriter, r *http.Request) {
	var req addBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.RespondBadRequest(w, "Invalid request payload", err.Error())
		return
	}

	header, lines, err := bh.buildBatch(r.Context(), stock.BatchKindStandard, req.BatchName, req.BatchDate, req.BatchSize, req.BatchUnit, req.Materials)
	if err != nil {
		bh.h.ObserveEngineOp("create", "rejected")
		config.RespondBadRequest(w, "Invalid batch request", err.Error())
		return
	}

	batchID, err := bh.h.Engine.CreateBatch(r.Context(), header, lines)
	if err != nil {
		bh.h.ObserveEngineOp("create", engineOutcome(err))
		bh.h.RespondStockError(w, err)
		return
	}

	bh.h.ObserveEngineOp("create", "ok")
	config.RespondJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Batch created successfully",
		"batchId": batchID,
	})
}

// UpdateBatch replaces a batch's composition: the old composition's
// stock is restored and the new one deducted in one transaction.
func (bh *BatchHandler) UpdateBatch(w http.ResponseWriter, r *http.Request) {
	var req updateBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.RespondBadRequest(w, "Invalid request payload", err.Error())
		return
	}
	if req.ID <= 0 {
		config.RespondBadRequest(w, "Missing required fields", "id is required")
		return
	}

	header, lines, err := bh.buildBatch(r.Context(), stock.BatchKindStandard, req.BatchName, req.BatchDate, req.BatchSize, req.BatchUnit, req.Materials)
	if err != nil {
		bh.h.ObserveEngineOp("update", "rejected")
		config.RespondBadRequest(w, "Invalid batch request", err.Error())
		return
	}
	header.ID = req.ID

	if err := bh.h.Engine.UpdateBatch(r.Context(), header, lines); err != nil {
		bh.h.ObserveEngineOp("update", engineOutcome(err))
		bh.h.RespondStockError(w, err)
		return
	}

	bh.h.ObserveEngineOp("update", "ok")
	config.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Batch updated successfully",
	})
}

// DeleteBatch removes a batch and restores the stock it consumed.
func (bh *BatchHandler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	var req deleteBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.RespondBadRequest(w, "Invalid request payload", err.Error())
		return
	}
	if req.Data.ID <= 0 {
		config.RespondBadRequest(w, "Missing required fields", "data.id is required")
		return
	}

	if err := bh.h.Engine.DeleteBatch(r.Context(), req.Data.ID); err != nil {
		bh.h.ObserveEngineOp("delete", engineOutcome(err))
		bh.h.RespondStockError(w, err)
		return
	}

	bh.h.ObserveEngineOp("delete", "ok")
	config.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Batch deleted and stock restored",
		"batchId": req.Data.ID,
	})
}

// GetBatches lists standard batches with their compositions.
func (bh *BatchHandler) GetBatches(w http.ResponseWriter, r *http.Request) {
	pagination := middlewares.GetPagination(r.Context())

	batches, err := bh.h.Store.ListBatches(r.Context(), stock.BatchKindStandard, pagination.Limit, pagination.Offset)
	if err != nil {
		config.RespondInternalError(w, err, bh.h.Logger)
		return
	}

	data := make([]map[string]any, 0, len(batches))
	for _, b := range batches {
		data = append(data, batchToResponse(b))
	}

	config.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
	})
}

func batchToResponse(b stock.Batch) map[string]any {
	materials := make([]map[string]any, 0, len(b.Lines))
	for _, line := range b.Lines {
		materials = append(materials, map[string]any{
			"raw_material_id": line.RawMaterialID,
			"quantity":        line.Quantity,
			"percentage":      line.Percentage,
			"unit":            line.Unit,
		})
	}
	return map[string]any{
		"id":         b.Header.ID,
		"name":       b.Header.Name,
		"batch_date": b.Header.BatchDate.Format("2006-01-02"),
		"size":       b.Header.Size,
		"unit":       b.Header.Unit,
		"created_at": b.Header.CreatedAt,
		"materials":  materials,
	}
}

// buildBatch converts a request into an engine header and lines,
// resolving material names to ids where the request gives only a name.
func (bh *BatchHandler) buildBatch(ctx context.Context, kind stock.BatchKind, name, date string, size decimal.Decimal, unit string, materials []materialLineRequest) (stock.BatchHeader, []stock.MaterialLine, error) {
	batchDate, err := parseBatchDate(date)
	if err != nil {
		return stock.BatchHeader{}, nil, err
	}

	lines := make([]stock.MaterialLine, 0, len(materials))
	for _, m := range materials {
		materialID := m.MaterialID
		if materialID == 0 {
			materialName := m.Name
			if materialName == "" {
				materialName = m.RawMaterial
			}
			materialID, err = bh.resolveMaterialID(ctx, materialName)
			if err != nil {
				return stock.BatchHeader{}, nil, err
			}
		}
		lines = append(lines, stock.MaterialLine{
			RawMaterialID: materialID,
			Quantity:      m.Quantity,
			Percentage:    m.Percentage,
			Unit:          m.Unit,
		})
	}

	header := stock.BatchHeader{
		Kind:      kind,
		Name:      name,
		BatchDate: batchDate,
		Size:      size,
		Unit:      unit,
	}
	return header, lines, nil
}

func (bh *BatchHandler) resolveMaterialID(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("material reference is required (materialId or name)")
	}
	var id int64
	err := bh.h.Pool.QueryRow(ctx, `SELECT id FROM raw_materials WHERE name = $1`, name).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("raw material %q not found", name)
		}
		return 0, fmt.Errorf("resolve material %q: %w", name, err)
	}
	return id, nil
}

func parseBatchDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("batchDate is required")
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("batchDate %q is not a valid date", s)
}

func engineOutcome(err error) string {
	if stock.IsUserError(err) {
		return "rejected"
	}
	return "error"
}
