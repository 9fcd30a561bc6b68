package middlewares

import (
	"context"
	"net/http"
	"strconv"
)

// PaginationConfig holds configuration for pagination parsing
type PaginationConfig struct {
	// DefaultLimit is used when no limit parameter is given
	// Default: 50
	DefaultLimit int

	// MaxLimit caps the requested limit to protect the database
	// Default: 200
	MaxLimit int
}

// DefaultPaginationConfig returns sensible pagination defaults
func DefaultPaginationConfig() *PaginationConfig {
	return &PaginationConfig{
		DefaultLimit: 50,
		MaxLimit:     200,
	}
}

// PaginationParams holds parsed pagination parameters
type PaginationParams struct {
	Page   int `json:"page"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type contextKeyPagination struct{}

// ParsePagination extracts page/limit query parameters, falling back to
// defaults and capping limit at the configured maximum.
func ParsePagination(r *http.Request, cfg *PaginationConfig) *PaginationParams {
	if cfg == nil {
		cfg = DefaultPaginationConfig()
	}

	query := r.URL.Query()

	page := 1
	if s := query.Get("page"); s != "" {
		if p, err := strconv.Atoi(s); err == nil && p > 0 {
			page = p
		}
	}

	limit := cfg.DefaultLimit
	if s := query.Get("limit"); s != "" {
		if l, err := strconv.Atoi(s); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > cfg.MaxLimit {
		limit = cfg.MaxLimit
	}

	return &PaginationParams{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// Pagination returns a middleware that parses pagination parameters and
// stores them in the request context.
func Pagination(cfg *PaginationConfig) func(http.Handler) http.Handler {
	if cfg == nil {
		cfg = DefaultPaginationConfig()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			params := ParsePagination(r, cfg)
			ctx := context.WithValue(r.Context(), contextKeyPagination{}, params)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPagination retrieves pagination from context, or defaults when the
// middleware did not run.
func GetPagination(ctx context.Context) *PaginationParams {
	if params, ok := ctx.Value(contextKeyPagination{}).(*PaginationParams); ok {
		return params
	}
	return &PaginationParams{Page: 1, Limit: DefaultPaginationConfig().DefaultLimit}
}
