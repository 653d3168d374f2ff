package xlsx_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/lorrc/repair-desk/internal/adapters/secondary/xlsx"
	"github.com/lorrc/repair-desk/internal/core/domain"
)

func TestExporter_Export(t *testing.T) {
	completed := "07/03/68 15:00 น."
	tickets := []domain.Ticket{
		{
			ID:          2,
			TeacherName: "ครูสมชาย",
			Department:  "ฝ่ายวิชาการ",
			AssetNumber: "4401",
			Phone:       "081-234-5678",
			ProblemType: "คอมพิวเตอร์",
			Description: "เปิดไม่ติด",
			Location:    "ห้อง 201",
			Status:      domain.StatusDone,
			CreatedAt:   "07/03/68 14:00 น.",
			CompletedAt: &completed,
			Rating:      &domain.Rating{TechnicianName: "ช่างเอ", Score: 4},
		},
		{
			ID:          1,
			TeacherName: "ครูสมหญิง",
			Status:      domain.StatusDone,
			CreatedAt:   "06/03/68 09:00 น.",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, xlsx.NewExporter().Export(&buf, tickets))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{xlsx.SheetName}, f.GetSheetList())

	rows, err := f.GetRows(xlsx.SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{
		"ลำดับ", "ชื่อผู้แจ้ง", "หน่วยงาน", "หมายเลขครุภัณฑ์", "เบอร์โทร", "ประเภทปัญหา", "สถานที่",
		"รายละเอียดปัญหา", "สถานะ", "วันที่แจ้ง", "วันที่เสร็จสิ้น", "ช่างผู้ซ่อม", "คะแนนประเมิน", "ความคิดเห็น",
	}, rows[0])

	assert.Equal(t, []string{
		"1", "ครูสมชาย", "ฝ่ายวิชาการ", "4401", "081-234-5678", "คอมพิวเตอร์", "ห้อง 201",
		"เปิดไม่ติด", "เสร็จสิ้น", "07/03/68 14:00 น.", completed, "ช่างเอ", "4 ดาว", "-",
	}, rows[1])

	assert.Equal(t, "2", rows[2][0])
	assert.Equal(t, []string{"-", "-", "-", "-"}, rows[2][10:14])

	width, err := f.GetColWidth(xlsx.SheetName, "H")
	require.NoError(t, err)
	assert.Equal(t, float64(40), width)
}

func TestExporter_FileName(t *testing.T) {
	e := xlsx.NewExporter()
	now := time.Date(2025, 3, 7, 23, 59, 0, 0, time.UTC)

	assert.Equal(t, "รายการแจ้งซ่อม_2025-03-07.xlsx", e.FileName(now))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", e.ContentType())
}
