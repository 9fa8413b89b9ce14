package ingest

import "registration-service/internal/parser"

// Skip reasons reported by the grouper.
const (
	ReasonOrphanContinuation = "continuation row without pending order"
	ReasonAmountWithoutEmail = "amount without buyer email"
	ReasonInvalidQuantity    = "invalid quantity"
)

// DefaultMaxQuantity is the largest quantity a single feed row may carry.
const DefaultMaxQuantity = 100

// GroupRow is one constituent row of an order group.
type GroupRow struct {
	Row      RawPurchaseRow
	Quantity int
	Course   string
}

// OrderGroup is a purchase transaction reassembled from consecutive rows.
// TotalParticipants is the sum of Rows[i].Quantity and is at least 1.
type OrderGroup struct {
	Primary           RawPurchaseRow
	Rows              []GroupRow
	TotalParticipants int
}

// Diagnostic describes a feed row that did not make it into any group.
type Diagnostic struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// GroupResult is the output of one grouping pass.
type GroupResult struct {
	Groups  []OrderGroup
	Skipped []Diagnostic
}

// AmountAndEmail starts a new order on rows that carry both an amount and a
// buyer email.
func AmountAndEmail(r RawPurchaseRow) bool {
	return r.HasAmount() && r.BuyerEmail != ""
}

// Grouper folds the ordered feed into order groups. Row order matters:
// continuation rows attach to the most recent order.
type Grouper struct {
	StartsOrder func(RawPurchaseRow) bool
	// MaxQuantity rejects rows above it; zero disables the check.
	MaxQuantity int
}

// NewGrouper returns a grouper using AmountAndEmail and DefaultMaxQuantity.
func NewGrouper() *Grouper {
	return &Grouper{StartsOrder: AmountAndEmail, MaxQuantity: DefaultMaxQuantity}
}

// Group makes a single forward pass over rows.
func (g *Grouper) Group(rows []RawPurchaseRow) GroupResult {
	starts := g.StartsOrder
	if starts == nil {
		starts = AmountAndEmail
	}

	var (
		res     GroupResult
		pending *OrderGroup
	)
	flush := func() {
		if pending != nil {
			res.Groups = append(res.Groups, *pending)
			pending = nil
		}
	}

	for _, row := range rows {
		if row.InvalidQuantity || (g.MaxQuantity > 0 && row.Quantity > g.MaxQuantity) {
			// rows after a rejected order start must not join the previous order
			if starts(row) {
				flush()
			}
			res.Skipped = append(res.Skipped, Diagnostic{Line: row.Line, Reason: ReasonInvalidQuantity})
			continue
		}

		qty := row.Quantity
		if qty < 1 {
			qty = 1
		}

		switch {
		case starts(row):
			flush()
			pending = &OrderGroup{
				Primary:           row,
				Rows:              []GroupRow{{Row: row, Quantity: qty, Course: parser.ClassifyCourse(row.ProductName)}},
				TotalParticipants: qty,
			}
		case row.HasAmount():
			res.Skipped = append(res.Skipped, Diagnostic{Line: row.Line, Reason: ReasonAmountWithoutEmail})
		case pending == nil:
			res.Skipped = append(res.Skipped, Diagnostic{Line: row.Line, Reason: ReasonOrphanContinuation})
		default:
			course := parser.ClassifyCourse(row.ProductName)
			if course == "" {
				course = pending.Rows[0].Course
			}
			pending.Rows = append(pending.Rows, GroupRow{Row: row, Quantity: qty, Course: course})
			pending.TotalParticipants += qty
		}
	}
	flush()

	return res
}
