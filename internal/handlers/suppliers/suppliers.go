package suppliers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"chemstock_system/internal/config"
	"chemstock_system/internal/handlers"
	"chemstock_system/internal/middlewares"
)

type SupplierHandler struct {
	h *handlers.Handler
}

func NewSupplierHandler(h *handlers.Handler) *SupplierHandler {
	return &SupplierHandler{h: h}
}

type Supplier struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	ContactName  *string   `json:"contact_name,omitempty"`
	ContactEmail *string   `json:"contact_email,omitempty"`
	ContactPhone *string   `json:"contact_phone,omitempty"`
	Address      *string   `json:"address,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type supplierRequest struct {
	Name         string  `json:"name"`
	ContactName  *string `json:"contact_name,omitempty"`
	ContactEmail *string `json:"contact_email,omitempty"`
	ContactPhone *string `json:"contact_phone,omitempty"`
	Address      *string `json:"address,omitempty"`
}

func (sh *SupplierHandler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.RespondBadRequest(w, "Invalid request payload", err.Error())
		return
	}
	if req.Name == "" {
		config.RespondBadRequest(w, "Missing required fields", "name is required")
		return
	}

	var id int64
	err := sh.h.Pool.QueryRow(r.Context(), `
		INSERT INTO suppliers (name, contact_name, contact_email, contact_phone, address)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		req.Name, req.ContactName, req.ContactEmail, req.ContactPhone, req.Address).Scan(&id)
	if err != nil {
		config.RespondInternalError(w, err, sh.h.Logger)
		return
	}

	config.RespondCreated(w, "Supplier created successfully", map[string]any{"id": id})
}

func (sh *SupplierHandler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	pagination := middlewares.GetPagination(r.Context())

	rows, err := sh.h.Pool.Query(r.Context(), `
		SELECT id, name, contact_name, contact_email, contact_phone, address, created_at, updated_at
		FROM suppliers
		ORDER BY name
		LIMIT $1 OFFSET $2`, pagination.Limit, pagination.Offset)
	if err != nil {
		config.RespondInternalError(w, err, sh.h.Logger)
		return
	}
	defer rows.Close()

	suppliers := make([]Supplier, 0)
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.ID, &s.Name, &s.ContactName, &s.ContactEmail,
			&s.ContactPhone, &s.Address, &s.CreatedAt, &s.UpdatedAt); err != nil {
			config.RespondInternalError(w, err, sh.h.Logger)
			return
		}
		suppliers = append(suppliers, s)
	}
	if err := rows.Err(); err != nil {
		config.RespondInternalError(w, err, sh.h.Logger)
		return
	}

	config.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    suppliers,
	})
}

func (sh *SupplierHandler) GetSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var s Supplier
	err := sh.h.Pool.QueryRow(r.Context(), `
		SELECT id, name, contact_name, contact_email, contact_phone, address, created_at, updated_at
		FROM suppliers
		WHERE id = $1`, id,
	).Scan(&s.ID, &s.Name, &s.ContactName, &s.ContactEmail,
		&s.ContactPhone, &s.Address, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			config.RespondNotFound(w, "Supplier not found")
			return
		}
		config.RespondInternalError(w, err, sh.h.Logger)
		return
	}

	config.RespondJSON(w, http.StatusOK, map[string]any{"success": true, "data": s})
}

func (sh *SupplierHandler) UpdateSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req supplierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.RespondBadRequest(w, "Invalid request payload", err.Error())
		return
	}
	if req.Name == "" {
		config.RespondBadRequest(w, "Missing required fields", "name is required")
		return
	}

	tag, err := sh.h.Pool.Exec(r.Context(), `
		UPDATE suppliers
		SET name = $2, contact_name = $3, contact_email = $4,
		    contact_phone = $5, address = $6, updated_at = now()
		WHERE id = $1`,
		id, req.Name, req.ContactName, req.ContactEmail, req.ContactPhone, req.Address)
	if err != nil {
		config.RespondInternalError(w, err, sh.h.Logger)
		return
	}
	if tag.RowsAffected() == 0 {
		config.RespondNotFound(w, "Supplier not found")
		return
	}

	config.RespondSuccess(w, http.StatusOK, "Supplier updated successfully", nil)
}

func (sh *SupplierHandler) DeleteSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	tag, err := sh.h.Pool.Exec(r.Context(), `DELETE FROM suppliers WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			config.RespondConflict(w, "Supplier is referenced by raw materials", "")
			return
		}
		config.RespondInternalError(w, err, sh.h.Logger)
		return
	}
	if tag.RowsAffected() == 0 {
		config.RespondNotFound(w, "Supplier not found")
		return
	}

	config.RespondSuccess(w, http.StatusOK, "Supplier deleted successfully", nil)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		config.RespondBadRequest(w, "Invalid id", "id must be a positive integer")
		return 0, false
	}
	return id, true
}
