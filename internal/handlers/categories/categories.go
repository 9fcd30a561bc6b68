package categories

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

type CategoryHandler struct {
	h *handlers.Handler
}

func NewCategoryHandler(h *handlers.Handler) *CategoryHandler {
	return &CategoryHandler{h: h}
}

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type categoryRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

func (ch *CategoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.RespondBadRequest(w, "Invalid request payload", err.Error())
		return
	}
	if req.Name == "" {
		config.RespondBadRequest(w, "Missing required fields", "name is required")
		return
	}

	var id int64
	err := ch.h.Pool.QueryRow(r.Context(), `
		INSERT INTO categories (name, description)
		VALUES ($1, $2)
		RETURNING id`, req.Name, req.Description).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			config.RespondConflict(w, "Category name already exists", "")
			return
		}
		config.RespondInternalError(w, err, ch.h.Logger)
		return
	}

	config.RespondCreated(w, "Category created successfully", map[string]any{"id": id})
}

func (ch *CategoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	pagination := middlewares.GetPagination(r.Context())

	rows, err := ch.h.Pool.Query(r.Context(), `
		SELECT id, name, description, created_at, updated_at
		FROM categories
		ORDER BY name
		LIMIT $1 OFFSET $2`, pagination.Limit, pagination.Offset)
	if err != nil {
		config.RespondInternalError(w, err, ch.h.Logger)
		return
	}
	defer rows.Close()

	categories := make([]Category, 0)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			config.RespondInternalError(w, err, ch.h.Logger)
			return
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		config.RespondInternalError(w, err, ch.h.Logger)
		return
	}

	config.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    categories,
	})
}

func (ch *CategoryHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var c Category
	err := ch.h.Pool.QueryRow(r.Context(), `
		SELECT id, name, description, created_at, updated_at
		FROM categories
		WHERE id = $1`, id).Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			config.RespondNotFound(w, "Category not found")
			return
		}
		config.RespondInternalError(w, err, ch.h.Logger)
		return
	}

	config.RespondJSON(w, http.StatusOK, map[string]any{"success": true, "data": c})
}

func (ch *CategoryHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.RespondBadRequest(w, "Invalid request payload", err.Error())
		return
	}
	if req.Name == "" {
		config.RespondBadRequest(w, "Missing required fields", "name is required")
		return
	}

	tag, err := ch.h.Pool.Exec(r.Context(), `
		UPDATE categories
		SET name = $2, description = $3, updated_at = now()
		WHERE id = $1`, id, req.Name, req.Description)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			config.RespondConflict(w, "Category name already exists", "")
			return
		}
		config.RespondInternalError(w, err, ch.h.Logger)
		return
	}
	if tag.RowsAffected() == 0 {
		config.RespondNotFound(w, "Category not found")
		return
	}

	config.RespondSuccess(w, http.StatusOK, "Category updated successfully", nil)
}

func (ch *CategoryHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	tag, err := ch.h.Pool.Exec(r.Context(), `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			config.RespondConflict(w, "Category is referenced by raw materials", "")
			return
		}
		config.RespondInternalError(w, err, ch.h.Logger)
		return
	}
	if tag.RowsAffected() == 0 {
		config.RespondNotFound(w, "Category not found")
		return
	}

	config.RespondSuccess(w, http.StatusOK, "Category deleted successfully", nil)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		config.RespondBadRequest(w, "Invalid id", "id must be a positive integer")
		return 0, false
	}
	return id, true
}
