package reports

import (
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"chemstock_system/internal/config"
	"chemstock_system/internal/handlers"
)

// ReportHandler produces spreadsheet exports for operations staff.
type ReportHandler struct {
	h *handlers.Handler
}

func NewReportHandler(h *handlers.Handler) *ReportHandler {
	return &ReportHandler{h: h}
}

type stockRow struct {
	ID           int64
	Name         string
	Unit         string
	Quantity     decimal.Decimal
	ReorderLevel *decimal.Decimal
	Category     *string
	Supplier     *string
}

// ExportStock writes the current raw-material stock as an XLSX
// attachment, flagging rows at or below their reorder level.
func (rh *ReportHandler) ExportStock(w http.ResponseWriter, r *http.Request) {
	rows, err := rh.h.Pool.Query(r.Context(), `
		SELECT rm.id, rm.name, rm.unit, rm.quantity_on_hand, rm.reorder_level,
		       c.name, s.name
		FROM raw_materials rm
		LEFT JOIN categories c ON c.id = rm.category_id
		LEFT JOIN suppliers s ON s.id = rm.supplier_id
		ORDER BY rm.name`)
	if err != nil {
		config.RespondInternalError(w, err, rh.h.Logger)
		return
	}
	defer rows.Close()

	var materials []stockRow
	for rows.Next() {
		var m stockRow
		if err := rows.Scan(&m.ID, &m.Name, &m.Unit, &m.Quantity,
			&m.ReorderLevel, &m.Category, &m.Supplier); err != nil {
			config.RespondInternalError(w, err, rh.h.Logger)
			return
		}
		materials = append(materials, m)
	}
	if err := rows.Err(); err != nil {
		config.RespondInternalError(w, err, rh.h.Logger)
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Stock"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"ID", "Material", "Unit", "Quantity On Hand", "Reorder Level", "Category", "Supplier", "Low Stock"}
	for i, title := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, title)
	}

	for i, m := range materials {
		rowNum := i + 2
		lowStock := ""
		if m.ReorderLevel != nil && m.Quantity.LessThanOrEqual(*m.ReorderLevel) {
			lowStock = "YES"
		}

		values := []any{m.ID, m.Name, m.Unit, m.Quantity.InexactFloat64()}
		if m.ReorderLevel != nil {
			values = append(values, m.ReorderLevel.InexactFloat64())
		} else {
			values = append(values, "")
		}
		values = append(values, deref(m.Category), deref(m.Supplier), lowStock)

		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowNum)
			f.SetCellValue(sheet, cell, v)
		}
	}

	filename := fmt.Sprintf("stock-report-%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))

	if err := f.Write(w); err != nil {
		rh.h.Logger.Error("failed to write stock report", "error", err)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
