// Package pricing computes line item and quote totals. It is pure and does no I/O.
package pricing

import (
	"github.com/shopspring/decimal"

	"quotedesk/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Column scales. Inputs finer than these would be rounded by the store and
// price differently on the next recompute.
const (
	MoneyPlaces = 2 // line discount, shipping
	RatePlaces  = 4 // unit price, tax rate, quote discount value
)

// FitsPlaces reports whether d has no digits beyond the given decimal places.
func FitsPlaces(d decimal.Decimal, places int32) bool {
	return d.Truncate(places).Equal(d)
}

// Item is the minimal shape needed to price one line.
type Item struct {
	Quantity  int
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
}

type Input struct {
	Items         []Item
	DiscountValue decimal.Decimal
	DiscountType  domain.DiscountType
	TaxRate       decimal.Decimal
	Shipping      decimal.Decimal
}

// Totals holds unrounded results. Use Rounded before persisting or displaying.
type Totals struct {
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	AfterDiscount decimal.Decimal
	Tax           decimal.Decimal
	Shipping      decimal.Decimal
	Total         decimal.Decimal
}

// LineItemTotal is quantity*unitPrice - discount. Negative results are credits and are not clamped.
func LineItemTotal(quantity int, unitPrice, discount decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Sub(discount)
}

func QuoteTotals(in Input) Totals {
	subtotal := decimal.Zero
	for _, it := range in.Items {
		subtotal = subtotal.Add(LineItemTotal(it.Quantity, it.UnitPrice, it.Discount))
	}

	discount := in.DiscountValue
	if in.DiscountType == domain.DiscountPercentage {
		discount = subtotal.Mul(in.DiscountValue).Div(hundred)
	}

	afterDiscount := subtotal.Sub(discount)
	tax := afterDiscount.Mul(in.TaxRate).Div(hundred)

	return Totals{
		Subtotal:      subtotal,
		Discount:      discount,
		AfterDiscount: afterDiscount,
		Tax:           tax,
		Shipping:      in.Shipping,
		Total:         afterDiscount.Add(tax).Add(in.Shipping),
	}
}

// Rounded rounds each field to cents from its own unrounded value.
func (t Totals) Rounded() Totals {
	return Totals{
		Subtotal:      Round2(t.Subtotal),
		Discount:      Round2(t.Discount),
		AfterDiscount: Round2(t.AfterDiscount),
		Tax:           Round2(t.Tax),
		Shipping:      Round2(t.Shipping),
		Total:         Round2(t.Total),
	}
}

func (t Totals) IsCredit() bool {
	return t.Total.IsNegative()
}

// Round2 rounds half away from zero to two places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ItemsFromLineItems adapts stored or submitted line items for pricing.
func ItemsFromLineItems(items []domain.LineItem) []Item {
	out := make([]Item, 0, len(items))
	for _, li := range items {
		out = append(out, Item{Quantity: li.Quantity, UnitPrice: li.UnitPrice, Discount: li.Discount})
	}
	return out
}

// Apply recomputes every line total and the quote totals in place, discarding
// whatever totals the client sent. Line totals stay exact so the subtotal is
// their sum; only quote-level figures are rounded to cents.
func Apply(q *domain.Quote) Totals {
	for i := range q.LineItems {
		li := &q.LineItems[i]
		li.Total = LineItemTotal(li.Quantity, li.UnitPrice, li.Discount)
	}
	if !q.DiscountType.Valid() {
		q.DiscountType = domain.DiscountFixed
	}
	t := QuoteTotals(Input{
		Items:         ItemsFromLineItems(q.LineItems),
		DiscountValue: q.DiscountValue,
		DiscountType:  q.DiscountType,
		TaxRate:       q.TaxRate,
		Shipping:      q.Shipping,
	})
	r := t.Rounded()
	q.Subtotal = r.Subtotal
	q.Discount = r.Discount
	q.Tax = r.Tax
	q.Shipping = r.Shipping
	q.Total = r.Total
	return t
}
