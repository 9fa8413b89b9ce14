package ingest

import (
	"testing"

	"registration-service/internal/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func start(line int, email, product string, qty int) RawPurchaseRow {
	return RawPurchaseRow{Line: line, BuyerEmail: email, ProductName: product, Quantity: qty, Amount: "10000"}
}

func cont(line int, product string, qty int) RawPurchaseRow {
	return RawPurchaseRow{Line: line, ProductName: product, Quantity: qty}
}

func TestGroupContinuationRows(t *testing.T) {
	rows := []RawPurchaseRow{
		start(2, "a@example.com", "하프 마라톤", 1),
		cont(3, "10K 추가", 2),
		cont(4, "기념품", 1),
		start(5, "b@example.com", "5K", 1),
	}

	res := NewGrouper().Group(rows)
	require.Len(t, res.Groups, 2)
	assert.Empty(t, res.Skipped)

	g := res.Groups[0]
	assert.Equal(t, 4, g.TotalParticipants)
	assert.Equal(t, "a@example.com", g.Primary.BuyerEmail)
	require.Len(t, g.Rows, 3)
	assert.Equal(t, parser.CourseHalf, g.Rows[0].Course)
	assert.Equal(t, parser.Course10K, g.Rows[1].Course)
	assert.Equal(t, parser.CourseHalf, g.Rows[2].Course, "unclassified continuation inherits the first course")

	assert.Equal(t, 1, res.Groups[1].TotalParticipants)
}

func TestGroupTotalsMatchQuantities(t *testing.T) {
	rows := []RawPurchaseRow{
		start(2, "a@example.com", "10K", 3),
		cont(3, "10K", 0),
		start(4, "b@example.com", "5K", -2),
	}
	res := NewGrouper().Group(rows)
	require.Len(t, res.Groups, 2)
	for _, g := range res.Groups {
		sum := 0
		for _, r := range g.Rows {
			sum += r.Quantity
		}
		assert.Equal(t, sum, g.TotalParticipants)
		assert.GreaterOrEqual(t, g.TotalParticipants, 1)
	}
	assert.Equal(t, 4, res.Groups[0].TotalParticipants)
}

func TestGroupReportsSkippedRows(t *testing.T) {
	noEmail := start(3, "", "10K", 1)
	rows := []RawPurchaseRow{
		cont(2, "10K", 1),
		noEmail,
		start(4, "a@example.com", "10K", 1),
		noEmail,
		cont(6, "5K", 1),
	}
	rows[3].Line = 5

	res := NewGrouper().Group(rows)
	require.Len(t, res.Groups, 1)
	assert.Equal(t, 2, res.Groups[0].TotalParticipants)
	assert.Equal(t, []Diagnostic{
		{Line: 2, Reason: ReasonOrphanContinuation},
		{Line: 3, Reason: ReasonAmountWithoutEmail},
		{Line: 5, Reason: ReasonAmountWithoutEmail},
	}, res.Skipped)
}

func TestGroupCustomDelimiter(t *testing.T) {
	g := &Grouper{StartsOrder: func(r RawPurchaseRow) bool { return r.BuyerEmail != "" }}
	rows := []RawPurchaseRow{
		{Line: 2, BuyerEmail: "a@example.com", ProductName: "10K", Quantity: 1},
		{Line: 3, ProductName: "5K", Quantity: 1},
	}
	res := g.Group(rows)
	require.Len(t, res.Groups, 1)
	assert.Equal(t, 2, res.Groups[0].TotalParticipants)
}

func TestGroupEmptyInput(t *testing.T) {
	res := NewGrouper().Group(nil)
	assert.Empty(t, res.Groups)
	assert.Empty(t, res.Skipped)
}

func TestGroupRejectsInvalidQuantity(t *testing.T) {
	row := func(email, qty, amount string) []string {
		return []string{email, "홍길동", "01012345678", "10K", "", qty, amount, "", "", "", "", ""}
	}
	records := [][]string{
		purchaseHeader,
		row("a@example.com", "2", "20000"),
		row("", "abc", ""),
		row("b@example.com", "1e15", "10000"),
		row("", "1", ""),
		row("c@example.com", "1e19", "10000"),
		row("d@example.com", "-3", "10000"),
		row("e@example.com", "150", "10000"),
		row("f@example.com", "1", "10000"),
	}
	rows, err := ParsePurchaseRows(records)
	require.NoError(t, err)

	res := NewGrouper().Group(rows)
	require.Len(t, res.Groups, 2)
	assert.Equal(t, "a@example.com", res.Groups[0].Primary.BuyerEmail)
	assert.Equal(t, 2, res.Groups[0].TotalParticipants)
	assert.Equal(t, "f@example.com", res.Groups[1].Primary.BuyerEmail)
	assert.Equal(t, []Diagnostic{
		{Line: 3, Reason: ReasonInvalidQuantity},
		{Line: 4, Reason: ReasonInvalidQuantity},
		{Line: 5, Reason: ReasonOrphanContinuation},
		{Line: 6, Reason: ReasonInvalidQuantity},
		{Line: 7, Reason: ReasonInvalidQuantity},
		{Line: 8, Reason: ReasonInvalidQuantity},
	}, res.Skipped)

	m := NewMaterializer(nil)
	assert.NotPanics(t, func() {
		for _, g := range res.Groups {
			m.Materialize(g)
		}
	})
}

func TestGroupMaxQuantityConfigurable(t *testing.T) {
	rows := []RawPurchaseRow{start(2, "a@example.com", "10K", 150)}

	g := NewGrouper()
	g.MaxQuantity = 200
	res := g.Group(rows)
	require.Len(t, res.Groups, 1)
	assert.Equal(t, 150, res.Groups[0].TotalParticipants)
}
