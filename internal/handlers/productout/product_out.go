package productout

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"chemstock_system/internal/config"
	"chemstock_system/internal/handlers"
	"chemstock_system/internal/middlewares"
)

// ProductOutHandler records finished product leaving the plant. These
// are dispatch records only; raw-material stock was already consumed
// when the batch was made.
type ProductOutHandler struct {
	h *handlers.Handler
}

func NewProductOutHandler(h *handlers.Handler) *ProductOutHandler {
	return &ProductOutHandler{h: h}
}

type ProductOut struct {
	ID           int64           `json:"id"`
	BatchID      *int64          `json:"batch_id,omitempty"`
	ProductName  string          `json:"product_name"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
	DispatchedAt time.Time       `json:"dispatched_at"`
	Notes        *string         `json:"notes,omitempty"`
}

type addProductOutRequest struct {
	BatchID     *int64          `json:"batch_id,omitempty"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	Notes       *string         `json:"notes,omitempty"`
}

func (ph *ProductOutHandler) AddProductOut(w http.ResponseWriter, r *http.Request) {
	var req addProductOutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.RespondBadRequest(w, "Invalid request payload", err.Error())
		return
	}
	if req.ProductName == "" || req.Unit == "" {
		config.RespondBadRequest(w, "Missing required fields", "product_name and unit are required")
		return
	}
	if !req.Quantity.IsPositive() {
		config.RespondBadRequest(w, "Invalid quantity", "quantity must be positive")
		return
	}

	var id int64
	err := ph.h.Pool.QueryRow(r.Context(), `
		INSERT INTO product_out (batch_id, product_name, quantity, unit, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		req.BatchID, req.ProductName, req.Quantity, req.Unit, req.Notes).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			config.RespondBadRequest(w, "Unknown batch", "batch_id does not reference an existing batch")
			return
		}
		config.RespondInternalError(w, err, ph.h.Logger)
		return
	}

	config.RespondCreated(w, "Dispatch recorded successfully", map[string]any{"id": id})
}

func (ph *ProductOutHandler) ListProductOut(w http.ResponseWriter, r *http.Request) {
	pagination := middlewares.GetPagination(r.Context())

	rows, err := ph.h.Pool.Query(r.Context(), `
		SELECT id, batch_id, product_name, quantity, unit, dispatched_at, notes
		FROM product_out
		ORDER BY dispatched_at DESC, id DESC
		LIMIT $1 OFFSET $2`, pagination.Limit, pagination.Offset)
	if err != nil {
		config.RespondInternalError(w, err, ph.h.Logger)
		return
	}
	defer rows.Close()

	records := make([]ProductOut, 0)
	for rows.Next() {
		var p ProductOut
		if err := rows.Scan(&p.ID, &p.BatchID, &p.ProductName, &p.Quantity,
			&p.Unit, &p.DispatchedAt, &p.Notes); err != nil {
			config.RespondInternalError(w, err, ph.h.Logger)
			return
		}
		records = append(records, p)
	}
	if err := rows.Err(); err != nil {
		config.RespondInternalError(w, err, ph.h.Logger)
		return
	}

	config.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    records,
	})
}
