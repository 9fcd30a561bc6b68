package materials

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"chemstock_system/internal/config"
	"chemstock_system/internal/handlers"
	"chemstock_system/internal/middlewares"
	"chemstock_system/internal/stock"
)

const dropdownCacheKey = "materials:dropdown"

// MaterialHandler serves raw-material CRUD. Stock quantities are
// read-only here: quantity_on_hand moves only through batch operations.
type MaterialHandler struct {
	h *handlers.Handler
}

func NewMaterialHandler(h *handlers.Handler) *MaterialHandler {
	return &MaterialHandler{h: h}
}

type createMaterialRequest struct {
	Name            string           `json:"name"`
	Unit            string           `json:"unit"`
	InitialQuantity *decimal.Decimal `json:"initial_quantity,omitempty"`
	CategoryID      *int64           `json:"category_id,omitempty"`
	SupplierID      *int64           `json:"supplier_id,omitempty"`
	ReorderLevel    *decimal.Decimal `json:"reorder_level,omitempty"`
}

type updateMaterialRequest struct {
	Name         *string          `json:"name,omitempty"`
	Unit         *string          `json:"unit,omitempty"`
	CategoryID   *int64           `json:"category_id,omitempty"`
	SupplierID   *int64           `json:"supplier_id,omitempty"`
	ReorderLevel *decimal.Decimal `json:"reorder_level,omitempty"`
}

// CreateMaterial registers a raw material. An initial quantity may be
// set at creation; afterwards stock moves only through batches.
func (mh *MaterialHandler) CreateMaterial(w http.ResponseWriter, r *http.Request) {
	var req createMaterialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.RespondBadRequest(w, "Invalid request payload", err.Error())
		return
	}
	if req.Name == "" || req.Unit == "" {
		config.RespondBadRequest(w, "Missing required fields", "name and unit are required")
		return
	}

	initial := decimal.Zero
	if req.InitialQuantity != nil {
		if req.InitialQuantity.IsNegative() {
			config.RespondBadRequest(w, "Invalid initial quantity", "initial_quantity must be non-negative")
			return
		}
		initial = *req.InitialQuantity
	}

	var id int64
	err := mh.h.Pool.QueryRow(r.Context(), `
		INSERT INTO raw_materials (name, unit, quantity_on_hand, category_id, supplier_id, reorder_level)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		req.Name, req.Unit, initial, req.CategoryID, req.SupplierID, req.ReorderLevel,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			config.RespondBadRequest(w, "Unknown category or supplier", pgErr.Detail)
			return
		}
		config.RespondInternalError(w, err, mh.h.Logger)
		return
	}

	mh.invalidateDropdown(r)
	config.RespondCreated(w, "Material created successfully", map[string]any{"id": id})
}

// ListMaterials lists raw materials with pagination.
func (mh *MaterialHandler) ListMaterials(w http.ResponseWriter, r *http.Request) {
	pagination := middlewares.GetPagination(r.Context())

	rows, err := mh.h.Pool.Query(r.Context(), `
		SELECT id, name, unit, quantity_on_hand, category_id, supplier_id, reorder_level, created_at, updated_at
		FROM raw_materials
		ORDER BY name
		LIMIT $1 OFFSET $2`, pagination.Limit, pagination.Offset)
	if err != nil {
		config.RespondInternalError(w, err, mh.h.Logger)
		return
	}
	defer rows.Close()

	materials := make([]stock.RawMaterial, 0)
	for rows.Next() {
		var m stock.RawMaterial
		if err := rows.Scan(&m.ID, &m.Name, &m.Unit, &m.QuantityOnHand,
			&m.CategoryID, &m.SupplierID, &m.ReorderLevel, &m.CreatedAt, &m.UpdatedAt); err != nil {
			config.RespondInternalError(w, err, mh.h.Logger)
			return
		}
		materials = append(materials, m)
	}
	if err := rows.Err(); err != nil {
		config.RespondInternalError(w, err, mh.h.Logger)
		return
	}

	config.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    materials,
	})
}

// GetMaterial returns one raw material by id.
func (mh *MaterialHandler) GetMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var m stock.RawMaterial
	err := mh.h.Pool.QueryRow(r.Context(), `
		SELECT id, name, unit, quantity_on_hand, category_id, supplier_id, reorder_level, created_at, updated_at
		FROM raw_materials
		WHERE id = $1`, id,
	).Scan(&m.ID, &m.Name, &m.Unit, &m.QuantityOnHand,
		&m.CategoryID, &m.SupplierID, &m.ReorderLevel, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			config.RespondNotFound(w, "Material not found")
			return
		}
		config.RespondInternalError(w, err, mh.h.Logger)
		return
	}

	config.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    m,
	})
}

// UpdateMaterial updates descriptive fields. quantity_on_hand is
// deliberately not updatable here.
func (mh *MaterialHandler) UpdateMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req updateMaterialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.RespondBadRequest(w, "Invalid request payload", err.Error())
		return
	}

	tag, err := mh.h.Pool.Exec(r.Context(), `
		UPDATE raw_materials
		SET name          = COALESCE($2, name),
		    unit          = COALESCE($3, unit),
		    category_id   = COALESCE($4, category_id),
		    supplier_id   = COALESCE($5, supplier_id),
		    reorder_level = COALESCE($6, reorder_level),
		    updated_at    = now()
		WHERE id = $1`,
		id, req.Name, req.Unit, req.CategoryID, req.SupplierID, req.ReorderLevel)
	if err != nil {
		config.RespondInternalError(w, err, mh.h.Logger)
		return
	}
	if tag.RowsAffected() == 0 {
		config.RespondNotFound(w, "Material not found")
		return
	}

	mh.invalidateDropdown(r)
	config.RespondSuccess(w, http.StatusOK, "Material updated successfully", nil)
}

// DeleteMaterial removes a material unless batches reference it.
func (mh *MaterialHandler) DeleteMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	tag, err := mh.h.Pool.Exec(r.Context(), `DELETE FROM raw_materials WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			config.RespondConflict(w, "Material is referenced by existing batches", "")
			return
		}
		config.RespondInternalError(w, err, mh.h.Logger)
		return
	}
	if tag.RowsAffected() == 0 {
		config.RespondNotFound(w, "Material not found")
		return
	}

	mh.invalidateDropdown(r)
	config.RespondSuccess(w, http.StatusOK, "Material deleted successfully", nil)
}

type dropdownEntry struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Unit string `json:"unit"`
}

// Dropdown returns the id/name/unit list used by composition forms,
// cached briefly since it changes rarely and is fetched often.
func (mh *MaterialHandler) Dropdown(w http.ResponseWriter, r *http.Request) {
	if cached, err := mh.h.Cache.Get(r.Context(), dropdownCacheKey); err == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(cached)
		return
	}

	rows, err := mh.h.Pool.Query(r.Context(), `SELECT id, name, unit FROM raw_materials ORDER BY name`)
	if err != nil {
		config.RespondInternalError(w, err, mh.h.Logger)
		return
	}
	defer rows.Close()

	entries := make([]dropdownEntry, 0)
	for rows.Next() {
		var e dropdownEntry
		if err := rows.Scan(&e.ID, &e.Name, &e.Unit); err != nil {
			config.RespondInternalError(w, err, mh.h.Logger)
			return
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		config.RespondInternalError(w, err, mh.h.Logger)
		return
	}

	body, err := json.Marshal(map[string]any{"success": true, "data": entries})
	if err != nil {
		config.RespondInternalError(w, err, mh.h.Logger)
		return
	}

	if err := mh.h.Cache.Set(r.Context(), dropdownCacheKey, body, 5*time.Minute); err != nil {
		mh.h.Logger.Warn("failed to cache materials dropdown", "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (mh *MaterialHandler) invalidateDropdown(r *http.Request) {
	if err := mh.h.Cache.Delete(r.Context(), dropdownCacheKey); err != nil {
		mh.h.Logger.Warn("failed to invalidate materials dropdown cache", "error", err)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		config.RespondBadRequest(w, "Invalid id", "id must be a positive integer")
		return 0, false
	}
	return id, true
}
