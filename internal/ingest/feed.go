package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"registration-service/internal/store"

	"github.com/xuri/excelize/v2"
)

// Column headers of the shop purchase export.
const (
	HeaderBuyerEmail     = "주문자 이메일"
	HeaderBuyerName      = "주문자 이름"
	HeaderBuyerPhone     = "주문자 전화번호"
	HeaderProductName    = "상품명"
	HeaderOptionText     = "옵션명"
	HeaderQuantity       = "구매수량"
	HeaderAmount         = "최종주문금액"
	HeaderRecipientName  = "수령자명"
	HeaderRecipientPhone = "수령자 전화번호"
	HeaderZipcode        = "배송지 우편번호"
	HeaderAddress        = "주소"
	HeaderAddressDetail  = "상세주소"
)

// Column headers of the member feed.
const (
	HeaderMemberEmail  = "이메일"
	HeaderMemberGender = "성별"
)

// RawPurchaseRow is one line of the purchase export. Line is the 1-based
// line in the source file, header included.
type RawPurchaseRow struct {
	Line           int
	BuyerEmail     string
	BuyerName      string
	BuyerPhone     string
	ProductName    string
	OptionText     string
	Quantity       int
	Amount         string
	RecipientName  string
	RecipientPhone string
	Zipcode        string
	Address        string
	AddressDetail  string

	// InvalidQuantity marks a quantity cell that is not a usable count;
	// Quantity is then 0.
	InvalidQuantity bool
}

// HasAmount reports whether the row carries a final order amount. A zero
// amount counts as absent; a non-numeric token counts as present.
func (r RawPurchaseRow) HasAmount() bool {
	a := strings.TrimSpace(r.Amount)
	if a == "" {
		return false
	}
	if v, err := parseNumber(a); err == nil {
		return v != 0
	}
	return true
}

// AmountValue returns the amount floored to whole currency units, or 0 when
// the amount is missing or not numeric.
func (r RawPurchaseRow) AmountValue() int64 {
	v, err := parseNumber(r.Amount)
	if err != nil {
		return 0
	}
	return int64(math.Floor(v))
}

func parseNumber(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	return strconv.ParseFloat(s, 64)
}

// parseQuantity reads a quantity cell. Empty and zero cells count as 1.
// ok is false for text, non-finite, negative and out of range values.
func parseQuantity(s string) (qty int, ok bool) {
	if strings.TrimSpace(s) == "" {
		return 1, true
	}
	v, err := parseNumber(s)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > math.MaxInt32 {
		return 0, false
	}
	if v < 1 {
		return 1, true
	}
	return int(math.Floor(v)), true
}

// ReadTable loads a feed file as header plus records. .xlsx files are read
// from their first sheet; anything else is parsed as CSV.
func ReadTable(path string) ([][]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return readXLSX(path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ReadCSV(bytes.NewReader(b))
}

// ReadCSV parses CSV records, dropping a UTF-8 byte order mark if present.
func ReadCSV(r io.Reader) ([][]string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	b = bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})
	cr := csv.NewReader(bytes.NewReader(b))
	cr.FieldsPerRecord = -1
	var records [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse csv: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

type columns map[string]int

func indexHeader(header []string) columns {
	cols := make(columns, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	return cols
}

func (c columns) get(rec []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func (c columns) require(names ...string) error {
	for _, n := range names {
		if _, ok := c[n]; !ok {
			return fmt.Errorf("missing column %q", n)
		}
	}
	return nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// ParsePurchaseRows maps table records (header first) to purchase rows.
// Blank lines are dropped.
func ParsePurchaseRows(records [][]string) ([]RawPurchaseRow, error) {
	if len(records) == 0 {
		return nil, errors.New("purchase feed is empty")
	}
	cols := indexHeader(records[0])
	if err := cols.require(HeaderBuyerEmail, HeaderProductName, HeaderAmount); err != nil {
		return nil, err
	}

	rows := make([]RawPurchaseRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		qty, ok := parseQuantity(cols.get(rec, HeaderQuantity))
		rows = append(rows, RawPurchaseRow{
			Line:            i + 2,
			Quantity:        qty,
			InvalidQuantity: !ok,
			BuyerEmail:      cols.get(rec, HeaderBuyerEmail),
			BuyerName:       cols.get(rec, HeaderBuyerName),
			BuyerPhone:      cols.get(rec, HeaderBuyerPhone),
			ProductName:     cols.get(rec, HeaderProductName),
			OptionText:      cols.get(rec, HeaderOptionText),
			Amount:          cols.get(rec, HeaderAmount),
			RecipientName:   cols.get(rec, HeaderRecipientName),
			RecipientPhone:  cols.get(rec, HeaderRecipientPhone),
			Zipcode:         cols.get(rec, HeaderZipcode),
			Address:         cols.get(rec, HeaderAddress),
			AddressDetail:   cols.get(rec, HeaderAddressDetail),
		})
	}
	return rows, nil
}

// ReadPurchaseRows reads the purchase export at path.
func ReadPurchaseRows(path string) ([]RawPurchaseRow, error) {
	records, err := ReadTable(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read orders feed: %w", err)
	}
	return ParsePurchaseRows(records)
}

// GenderLookup maps a canonical buyer id to M or F.
type GenderLookup map[string]string

// Lookup returns the gender recorded for email, or nil.
func (g GenderLookup) Lookup(email string) *string {
	v, ok := g[store.CanonicalBuyerID(email)]
	if !ok {
		return nil
	}
	return &v
}

// ParseGenderLookup builds a lookup from member feed records. Rows with a
// gender other than M or F are ignored.
func ParseGenderLookup(records [][]string) (GenderLookup, error) {
	lookup := GenderLookup{}
	if len(records) == 0 {
		return lookup, nil
	}
	cols := indexHeader(records[0])
	if err := cols.require(HeaderMemberEmail, HeaderMemberGender); err != nil {
		return nil, err
	}
	for _, rec := range records[1:] {
		email := store.CanonicalBuyerID(cols.get(rec, HeaderMemberEmail))
		gender := strings.ToUpper(cols.get(rec, HeaderMemberGender))
		if email == "" || (gender != "M" && gender != "F") {
			continue
		}
		lookup[email] = gender
	}
	return lookup, nil
}

// LoadGenderLookup reads the member feed at path.
func LoadGenderLookup(path string) (GenderLookup, error) {
	records, err := ReadTable(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read member feed: %w", err)
	}
	return ParseGenderLookup(records)
}
