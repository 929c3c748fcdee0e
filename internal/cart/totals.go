package cart

// PriceLine recomputes the derived line amounts from qty, unit price and
// line-level discount/tax.
func PriceLine(it *Item) {
	it.LineSubtotalCents = it.UnitPriceCents * int64(it.Qty)
	it.LineTotalCents = it.LineSubtotalCents - it.LineDiscountCents + it.LineTaxCents
}

// RecomputeTotals derives all cart-level totals from the items. It is the
// single place totals are computed, and it is idempotent: applying it twice
// to the same inputs yields the same cart.
func RecomputeTotals(c *Cart, items []Item) {
	var subtotal int64
	for i := range items {
		subtotal += items[i].LineSubtotalCents
	}
	c.SubtotalCents = subtotal
	c.GrandTotalCents = c.SubtotalCents - c.DiscountTotalCents + c.TaxTotalCents + c.ShippingTotalCents
}
