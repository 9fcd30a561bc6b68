package recreations

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"chemstock_system/internal/config"
	"chemstock_system/internal/handlers"
	"chemstock_system/internal/middlewares"
	"chemstock_system/internal/stock"
)

// RecreationHandler serves batch recreations: reproductions of an
// earlier batch that consume stock through the same reconciliation
// engine as standard batches, keeping a reference to their source.
type RecreationHandler struct {
	h *handlers.Handler
}

func NewRecreationHandler(h *handlers.Handler) *RecreationHandler {
	return &RecreationHandler{h: h}
}

type recreationLineRequest struct {
	RawMaterialID int64           `json:"raw_material_id"`
	QuantityUsed  decimal.Decimal `json:"quantity_used"`
	UnitUsed      string          `json:"unit_used"`
	Percentage    decimal.Decimal `json:"percentage"`
}

type addRecreationRequest struct {
	OriginalBatchID    int64                   `json:"original_batch_id"`
	RecreatedBatchName string                  `json:"recreated_batch_name"`
	RecreatedBatchDate string                  `json:"recreated_batch_date"`
	RecreatedBatchSize decimal.Decimal         `json:"recreated_batch_size"`
	RecreatedBatchUnit string                  `json:"recreated_batch_unit"`
	Materials          []recreationLineRequest `json:"materials"`
}

type updateRecreationRequest struct {
	ID                 int64                   `json:"id"`
	RecreatedBatchName string                  `json:"recreated_batch_name"`
	RecreatedBatchDate string                  `json:"recreated_batch_date"`
	RecreatedBatchSize decimal.Decimal         `json:"recreated_batch_size"`
	RecreatedBatchUnit string                  `json:"recreated_batch_unit"`
	Materials          []recreationLineRequest `json:"materials"`
}

// AddRecreation creates a recreation batch linked to its source batch.
func (rh *RecreationHandler) AddRecreation(w http.ResponseWriter, r *http.Request) {
	var req addRecreationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.RespondBadRequest(w, "Invalid request payload", err.Error())
		return
	}
	if req.OriginalBatchID <= 0 {
		config.RespondBadRequest(w, "Missing required fields", "original_batch_id is required")
		return
	}

	// The source batch must exist before the recreation references it.
	if _, err := rh.h.Store.GetBatch(r.Context(), req.OriginalBatchID); err != nil {
		rh.h.RespondStockError(w, err)
		return
	}

	batchDate, err := parseDate(req.RecreatedBatchDate)
	if err != nil {
		config.RespondBadRequest(w, "Invalid batch request", err.Error())
		return
	}

	sourceID := req.OriginalBatchID
	header := stock.BatchHeader{
		Kind:          stock.BatchKindRecreation,
		Name:          req.RecreatedBatchName,
		BatchDate:     batchDate,
		Size:          req.RecreatedBatchSize,
		Unit:          req.RecreatedBatchUnit,
		SourceBatchID: &sourceID,
	}
	lines := toLines(req.Materials)

	batchID, err := rh.h.Engine.CreateBatch(r.Context(), header, lines)
	if err != nil {
		rh.h.ObserveEngineOp("create", outcome(err))
		rh.h.RespondStockError(w, err)
		return
	}

	rh.h.ObserveEngineOp("create", "ok")
	config.RespondJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Batch recreation created successfully",
		"data": map[string]any{
			"id":              batchID,
			"batch_name":      header.Name,
			"materials_count": len(lines),
		},
	})
}

// UpdateRecreation replaces a recreation's composition with
// restore-then-deduct semantics. The source-batch link is preserved.
func (rh *RecreationHandler) UpdateRecreation(w http.ResponseWriter, r *http.Request) {
	var req updateRecreationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.RespondBadRequest(w, "Invalid request payload", err.Error())
		return
	}
	if req.ID <= 0 {
		config.RespondBadRequest(w, "Missing required fields", "id is required")
		return
	}

	batchDate, err := parseDate(req.RecreatedBatchDate)
	if err != nil {
		config.RespondBadRequest(w, "Invalid batch request", err.Error())
		return
	}

	header := stock.BatchHeader{
		ID:        req.ID,
		Kind:      stock.BatchKindRecreation,
		Name:      req.RecreatedBatchName,
		BatchDate: batchDate,
		Size:      req.RecreatedBatchSize,
		Unit:      req.RecreatedBatchUnit,
	}

	if err := rh.h.Engine.UpdateBatch(r.Context(), header, toLines(req.Materials)); err != nil {
		rh.h.ObserveEngineOp("update", outcome(err))
		rh.h.RespondStockError(w, err)
		return
	}

	rh.h.ObserveEngineOp("update", "ok")
	config.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Batch recreation updated successfully",
	})
}

// ListRecreations lists recreation batches with their compositions.
func (rh *RecreationHandler) ListRecreations(w http.ResponseWriter, r *http.Request) {
	pagination := middlewares.GetPagination(r.Context())

	batches, err := rh.h.Store.ListBatches(r.Context(), stock.BatchKindRecreation, pagination.Limit, pagination.Offset)
	if err != nil {
		config.RespondInternalError(w, err, rh.h.Logger)
		return
	}

	data := make([]map[string]any, 0, len(batches))
	for _, b := range batches {
		materials := make([]map[string]any, 0, len(b.Lines))
		for _, line := range b.Lines {
			materials = append(materials, map[string]any{
				"raw_material_id": line.RawMaterialID,
				"quantity_used":   line.Quantity,
				"percentage":      line.Percentage,
				"unit_used":       line.Unit,
			})
		}
		entry := map[string]any{
			"id":                   b.Header.ID,
			"recreated_batch_name": b.Header.Name,
			"recreated_batch_date": b.Header.BatchDate.Format("2006-01-02"),
			"recreated_batch_size": b.Header.Size,
			"recreated_batch_unit": b.Header.Unit,
			"created_at":           b.Header.CreatedAt,
			"materials":            materials,
		}
		if b.Header.SourceBatchID != nil {
			entry["original_batch_id"] = *b.Header.SourceBatchID
		}
		data = append(data, entry)
	}

	config.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
	})
}

func toLines(materials []recreationLineRequest) []stock.MaterialLine {
	lines := make([]stock.MaterialLine, 0, len(materials))
	for _, m := range materials {
		lines = append(lines, stock.MaterialLine{
			RawMaterialID: m.RawMaterialID,
			Quantity:      m.QuantityUsed,
			Percentage:    m.Percentage,
			Unit:          m.UnitUsed,
		})
	}
	return lines
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("recreated_batch_date is required")
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("recreated_batch_date %q is not a valid date", s)
}

func outcome(err error) string {
	if stock.IsUserError(err) {
		return "rejected"
	}
	return "error"
}
