package xlsx

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/lorrc/repair-desk/internal/core/domain"
	"github.com/lorrc/repair-desk/internal/core/ports"
)

const (
	// SheetName is the single worksheet in every export.
	SheetName = "รายการแจ้งซ่อม"

	contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	placeholder = "-"
)

type column struct {
	header string
	width  float64
	value  func(index int, t domain.Ticket) any
}

var columns = []column{
	{"ลำดับ", 8, func(i int, _ domain.Ticket) any { return i + 1 }},
	{"ชื่อผู้แจ้ง", 20, func(_ int, t domain.Ticket) any { return t.TeacherName }},
	{"หน่วยงาน", 20, func(_ int, t domain.Ticket) any { return t.Department }},
	{"หมายเลขครุภัณฑ์", 18, func(_ int, t domain.Ticket) any { return t.AssetNumber }},
	{"เบอร์โทร", 15, func(_ int, t domain.Ticket) any { return t.Phone }},
	{"ประเภทปัญหา", 20, func(_ int, t domain.Ticket) any { return t.ProblemType }},
	{"สถานที่", 20, func(_ int, t domain.Ticket) any { return t.Location }},
	{"รายละเอียดปัญหา", 40, func(_ int, t domain.Ticket) any { return t.Description }},
	{"สถานะ", 15, func(_ int, t domain.Ticket) any { return string(t.Status) }},
	{"วันที่แจ้ง", 20, func(_ int, t domain.Ticket) any { return t.CreatedAt }},
	{"วันที่เสร็จสิ้น", 20, func(_ int, t domain.Ticket) any {
		if t.CompletedAt == nil {
			return placeholder
		}
		return orPlaceholder(*t.CompletedAt)
	}},
	{"ช่างผู้ซ่อม", 20, func(_ int, t domain.Ticket) any {
		if t.Rating == nil {
			return placeholder
		}
		return orPlaceholder(t.Rating.TechnicianName)
	}},
	{"คะแนนประเมิน", 15, func(_ int, t domain.Ticket) any {
		if t.Rating == nil || t.Rating.Score == 0 {
			return placeholder
		}
		return fmt.Sprintf("%d ดาว", t.Rating.Score)
	}},
	{"ความคิดเห็น", 40, func(_ int, t domain.Ticket) any {
		if t.Rating == nil {
			return placeholder
		}
		return orPlaceholder(t.Rating.Comment)
	}},
}

func orPlaceholder(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}

// Exporter renders tickets as an Excel workbook.
type Exporter struct{}

var _ ports.Exporter = (*Exporter)(nil)

func NewExporter() *Exporter {
	return &Exporter{}
}

// Export writes one header row followed by one row per ticket.
func (e *Exporter) Export(w io.Writer, tickets []domain.Ticket) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(columns))
	for i, col := range columns {
		header[i] = col.header
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, name, name, col.width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, t := range tickets {
		row := make([]any, len(columns))
		for j, col := range columns {
			row[j] = col.value(i, t)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// FileName is the download name for an export taken at now.
func (e *Exporter) FileName(now time.Time) string {
	return fmt.Sprintf("%s_%s.xlsx", SheetName, now.Format("2006-01-02"))
}

func (e *Exporter) ContentType() string {
	return contentType
}
