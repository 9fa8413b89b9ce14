package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var purchaseHeader = []string{
	HeaderBuyerEmail, HeaderBuyerName, HeaderBuyerPhone, HeaderProductName, HeaderOptionText,
	HeaderQuantity, HeaderAmount, HeaderRecipientName, HeaderRecipientPhone, HeaderZipcode,
	HeaderAddress, HeaderAddressDetail,
}

func TestParsePurchaseRows(t *testing.T) {
	records := [][]string{
		purchaseHeader,
		{"a@example.com", "홍길동", "01012345678", "10K 참가권", "성별: M", "2", "30,000", "홍길동", "", "01234.0", "서울", "101호"},
		{"", "", "", "", "", "", "", "", "", "", "", ""},
		{"", "", "", "5K 참가권", "", "", "", "", "", "", "", ""},
	}

	rows, err := ParsePurchaseRows(records)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, 2, rows[0].Quantity)
	assert.True(t, rows[0].HasAmount())
	assert.Equal(t, int64(30000), rows[0].AmountValue())

	assert.Equal(t, 4, rows[1].Line)
	assert.Equal(t, 1, rows[1].Quantity)
	assert.False(t, rows[1].HasAmount())
}

func TestParsePurchaseRowsMissingColumn(t *testing.T) {
	_, err := ParsePurchaseRows([][]string{{HeaderBuyerEmail, HeaderProductName}})
	assert.ErrorContains(t, err, HeaderAmount)

	_, err = ParsePurchaseRows(nil)
	assert.Error(t, err)
}

func TestHasAmount(t *testing.T) {
	cases := map[string]bool{
		"":       false,
		"  ":     false,
		"0":      false,
		"0.0":    false,
		"10000":  true,
		"1,000":  true,
		"무료":     true,
		"12.5":   true,
	}
	for amount, want := range cases {
		assert.Equal(t, want, RawPurchaseRow{Amount: amount}.HasAmount(), amount)
	}
	assert.Equal(t, int64(12), RawPurchaseRow{Amount: "12.9"}.AmountValue())
}

func TestReadCSVStripsBOM(t *testing.T) {
	in := "\xEF\xBB\xBF" + strings.Join(purchaseHeader, ",") + "\n" +
		"a@example.com,홍길동,010-1234-5678,Half,,1,50000,,,,,\n"
	records, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)

	rows, err := ParsePurchaseRows(records)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a@example.com", rows[0].BuyerEmail)
}

func TestReadTableXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &purchaseHeader))
	row := []interface{}{"a@example.com", "홍길동", "010-1234-5678", "하프 코스", "", 1, 50000}
	require.NoError(t, f.SetSheetRow(sheet, "A2", &row))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	rows, err := ReadPurchaseRows(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "하프 코스", rows[0].ProductName)
	assert.Equal(t, int64(50000), rows[0].AmountValue())
}

func TestGenderLookup(t *testing.T) {
	records := [][]string{
		{HeaderMemberEmail, HeaderMemberGender},
		{"A@Example.com", "f"},
		{"b@example.com", "X"},
		{"", "M"},
	}
	lookup, err := ParseGenderLookup(records)
	require.NoError(t, err)
	assert.Len(t, lookup, 1)
	require.NotNil(t, lookup.Lookup(" a@example.COM"))
	assert.Equal(t, "F", *lookup.Lookup("a@example.com"))
	assert.Nil(t, lookup.Lookup("b@example.com"))

	var empty GenderLookup
	assert.Nil(t, empty.Lookup("a@example.com"))
}

func TestLoadGenderLookupMissingFile(t *testing.T) {
	_, err := LoadGenderLookup(filepath.Join(t.TempDir(), "absent.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseQuantity(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"", 1, true},
		{"0", 1, true},
		{"2", 2, true},
		{"2.7", 2, true},
		{"1,000", 1000, true},
		{"1e15", 0, false},
		{"1e19", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseQuantity(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParsePurchaseRowsFlagsInvalidQuantity(t *testing.T) {
	records := [][]string{
		purchaseHeader,
		{"a@example.com", "홍길동", "01012345678", "10K", "", "1e15", "10000", "", "", "", "", ""},
		{"b@example.com", "김철수", "01022223333", "5K", "", "3", "30000", "", "", "", "", ""},
	}
	rows, err := ParsePurchaseRows(records)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].InvalidQuantity)
	assert.Equal(t, 0, rows[0].Quantity)
	assert.False(t, rows[1].InvalidQuantity)
	assert.Equal(t, 3, rows[1].Quantity)
}
