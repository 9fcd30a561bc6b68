package middlewares

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePaginationDefaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/materials", nil)
	params := ParsePagination(r, nil)

	assert.Equal(t, 1, params.Page)
	assert.Equal(t, 50, params.Limit)
	assert.Equal(t, 0, params.Offset)
}

func TestParsePaginationExplicit(t *testing.T) {
	r := httptest.NewRequest("GET", "/materials?page=3&limit=25", nil)
	params := ParsePagination(r, nil)

	assert.Equal(t, 3, params.Page)
	assert.Equal(t, 25, params.Limit)
	assert.Equal(t, 50, params.Offset)
}

func TestParsePaginationCapsLimit(t *testing.T) {
	r := httptest.NewRequest("GET", "/materials?limit=10000", nil)
	params := ParsePagination(r, &PaginationConfig{DefaultLimit: 50, MaxLimit: 200})

	assert.Equal(t, 200, params.Limit)
}

func TestParsePaginationIgnoresGarbage(t *testing.T) {
	r := httptest.NewRequest("GET", "/materials?page=abc&limit=-5", nil)
	params := ParsePagination(r, nil)

	assert.Equal(t, 1, params.Page)
	assert.Equal(t, 50, params.Limit)
}
