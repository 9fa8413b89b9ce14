package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"registration-service/internal/models"

	"github.com/xuri/excelize/v2"
)

// Output formats
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

const sheetName = "참가자"

// Headers are the export columns, one row per participant.
var Headers = []string{
	"주문ID", "구매자명", "이메일", "연락처", "구매자성별", "코스", "주문참가자수", "구매자총참가자",
	"결제금액", "취소여부", "수령인", "수령인연락처", "우편번호", "주소", "상세주소",
	"참가자순번", "참가자명", "참가자성별", "생년월일", "참가자연락처", "참가자코스", "티셔츠사이즈",
	"비상연락처", "비상연락처관계", "대표구매자여부", "입력완료여부",
}

// Record flattens one export row into cells matching Headers. Participant
// numbers are shown 1-based.
func Record(r models.ExportRow) []string {
	index := ""
	if r.ParticipantIndex != nil {
		index = strconv.Itoa(*r.ParticipantIndex + 1)
	}
	return []string{
		strconv.FormatInt(r.OrderID, 10),
		r.BuyerName,
		r.BuyerEmail,
		r.BuyerPhone,
		deref(r.BuyerGender),
		r.Course,
		strconv.Itoa(r.TotalParticipants),
		strconv.Itoa(r.BuyerTotalParticipants),
		strconv.FormatInt(r.TotalAmount, 10),
		yesNo(&r.IsCancelled),
		r.RecipientName,
		r.RecipientPhone,
		r.Zipcode,
		r.Address,
		r.AddressDetail,
		index,
		deref(r.Name),
		deref(r.Gender),
		deref(r.BirthDate),
		deref(r.Phone),
		deref(r.ParticipantCourse),
		deref(r.TshirtSize),
		deref(r.EmergencyContact),
		deref(r.EmergencyRelation),
		yesNo(r.IsPrimary),
		yesNo(r.IsCompleted),
	}
}

// Render writes rows in the given format.
func Render(rows []models.ExportRow, format string) ([]byte, error) {
	switch format {
	case FormatXLSX:
		return renderXLSX(rows)
	case FormatCSV:
		return renderCSV(rows)
	}
	return nil, fmt.Errorf("unsupported export format %q", format)
}

func renderCSV(rows []models.ExportRow) ([]byte, error) {
	var buf bytes.Buffer
	// BOM so spreadsheet apps detect UTF-8
	buf.Write([]byte{0xEF, 0xBB, 0xBF})
	w := csv.NewWriter(&buf)
	if err := w.Write(Headers); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := w.Write(Record(r)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}
	return buf.Bytes(), nil
}

func renderXLSX(rows []models.ExportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, err
	}
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sheet writer: %w", err)
	}

	header := make([]interface{}, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return nil, err
	}

	for i, r := range rows {
		rec := Record(r)
		cells := make([]interface{}, len(rec))
		for j, v := range rec {
			cells[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush sheet: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName names an export produced at t.
func FileName(mode, format string, t time.Time) string {
	return fmt.Sprintf("participants_%s_%s.%s", mode, t.Format("20060102_150405"), format)
}

// ContentType returns the MIME type of a format.
func ContentType(format string) string {
	if format == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func yesNo(b *bool) string {
	if b != nil && *b {
		return "Y"
	}
	return "N"
}
