package router

import (
	"net/http"

	"chemstock_system/internal/handlers"
	"chemstock_system/internal/handlers/batches"
	"chemstock_system/internal/handlers/categories"
	"chemstock_system/internal/handlers/materials"
	"chemstock_system/internal/handlers/productout"
	"chemstock_system/internal/handlers/recreations"
	"chemstock_system/internal/handlers/reports"
	"chemstock_system/internal/handlers/suppliers"
	"chemstock_system/internal/handlers/users"
	"chemstock_system/internal/middlewares"
	"chemstock_system/internal/observability"
)

// New assembles the full route table and middleware chain.
func New(h *handlers.Handler, health *observability.HealthHandler) http.Handler {
	mux := http.NewServeMux()

	batchHandler := batches.NewBatchHandler(h)
	recreationHandler := recreations.NewRecreationHandler(h)
	materialHandler := materials.NewMaterialHandler(h)
	categoryHandler := categories.NewCategoryHandler(h)
	supplierHandler := suppliers.NewSupplierHandler(h)
	userHandler := users.NewUserHandler(h)
	productOutHandler := productout.NewProductOutHandler(h)
	reportHandler := reports.NewReportHandler(h)

	// Batch reconciliation endpoints
	mux.HandleFunc("POST /api/v1/batch/add", batchHandler.AddBatch)
	mux.HandleFunc("POST /api/v1/batch/update", batchHandler.UpdateBatch)
	mux.HandleFunc("POST /api/v1/batch/delete", batchHandler.DeleteBatch)
	mux.HandleFunc("GET /api/v1/batch/get_batches", batchHandler.GetBatches)

	mux.HandleFunc("POST /api/v1/batch_recreation/add", recreationHandler.AddRecreation)
	mux.HandleFunc("POST /api/v1/batch_recreation/update", recreationHandler.UpdateRecreation)
	mux.HandleFunc("GET /api/v1/batch_recreation/list", recreationHandler.ListRecreations)

	// Raw materials
	mux.HandleFunc("GET /api/v1/materials", materialHandler.ListMaterials)
	mux.HandleFunc("POST /api/v1/materials", materialHandler.CreateMaterial)
	mux.HandleFunc("GET /api/v1/materials/dropdown", materialHandler.Dropdown)
	mux.HandleFunc("GET /api/v1/materials/{id}", materialHandler.GetMaterial)
	mux.HandleFunc("PUT /api/v1/materials/{id}", materialHandler.UpdateMaterial)
	mux.HandleFunc("DELETE /api/v1/materials/{id}", materialHandler.DeleteMaterial)

	// Categories
	mux.HandleFunc("GET /api/v1/categories", categoryHandler.ListCategories)
	mux.HandleFunc("POST /api/v1/categories", categoryHandler.CreateCategory)
	mux.HandleFunc("GET /api/v1/categories/{id}", categoryHandler.GetCategory)
	mux.HandleFunc("PUT /api/v1/categories/{id}", categoryHandler.UpdateCategory)
	mux.HandleFunc("DELETE /api/v1/categories/{id}", categoryHandler.DeleteCategory)

	// Suppliers
	mux.HandleFunc("GET /api/v1/suppliers", supplierHandler.ListSuppliers)
	mux.HandleFunc("POST /api/v1/suppliers", supplierHandler.CreateSupplier)
	mux.HandleFunc("GET /api/v1/suppliers/{id}", supplierHandler.GetSupplier)
	mux.HandleFunc("PUT /api/v1/suppliers/{id}", supplierHandler.UpdateSupplier)
	mux.HandleFunc("DELETE /api/v1/suppliers/{id}", supplierHandler.DeleteSupplier)

	// Product dispatch
	mux.HandleFunc("POST /api/v1/product_out/add", productOutHandler.AddProductOut)
	mux.HandleFunc("GET /api/v1/product_out", productOutHandler.ListProductOut)

	// Auth
	mux.HandleFunc("POST /api/v1/auth/login", userHandler.Login)
	mux.HandleFunc("POST /api/v1/auth/logout", userHandler.Logout)

	// Reports
	mux.HandleFunc("GET /api/v1/reports/stock/export", reportHandler.ExportStock)

	// Infrastructure
	mux.HandleFunc("GET /health/live", health.Live)
	mux.HandleFunc("GET /health/ready", health.Ready)
	mux.Handle("GET /metrics", h.Metrics.Handler())

	return chain(mux,
		middlewares.Recovery(&middlewares.RecoveryConfig{Logger: h.Logger}),
		middlewares.RequestID(),
		middlewares.Logger(&middlewares.LoggerConfig{
			Logger:             h.Logger,
			SkipPaths:          []string{"/health/live", "/health/ready", "/metrics"},
			IncludeQueryParams: true,
		}),
		h.Metrics.Middleware(observability.DefaultMetricsConfig(h.Cfg.App.Name)),
		middlewares.CORS(&middlewares.CORSConfig{
			AllowedOrigins: h.Cfg.CORS.AllowedOrigins,
			AllowedMethods: h.Cfg.CORS.AllowedMethods,
			AllowedHeaders: h.Cfg.CORS.AllowedHeaders,
			MaxAge:         h.Cfg.CORS.MaxAge,
		}),
		middlewares.Pagination(&middlewares.PaginationConfig{
			DefaultLimit: h.Cfg.Pagination.DefaultLimit,
			MaxLimit:     h.Cfg.Pagination.MaxLimit,
		}),
	)
}

// chain wraps handler with the middlewares so the first listed runs
// outermost.
func chain(handler http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		handler = mws[i](handler)
	}
	return handler
}
