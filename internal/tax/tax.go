// Package tax is the tax-calculation collaborator. The core only needs a
// total for the checkout session; breakdowns stay inside the implementation.
package tax

import (
	"context"
	"errors"
)

var ErrUnsupportedCurrency = errors.New("unsupported currency")

type Calculator interface {
	// Calculate returns the tax total in cents for a taxable amount shipped
	// to the given ISO-2 country.
	Calculate(ctx context.Context, country, currency string, taxableCents int64) (int64, error)
}

// RateTable applies a flat basis-point rate per destination country.
type RateTable struct {
	// BasisPoints maps ISO-2 country codes to rates; 825 means 8.25%.
	BasisPoints map[string]int64
	// DefaultBasisPoints applies to countries absent from the table.
	DefaultBasisPoints int64
	// Currencies restricts which currencies the table can price; empty
	// means any.
	Currencies []string
}

func (t *RateTable) Calculate(_ context.Context, country, currency string, taxableCents int64) (int64, error) {
	if len(t.Currencies) > 0 {
		ok := false
		for _, c := range t.Currencies {
			if c == currency {
				ok = true
				break
			}
		}
		if !ok {
			return 0, ErrUnsupportedCurrency
		}
	}

	bp, found := t.BasisPoints[country]
	if !found {
		bp = t.DefaultBasisPoints
	}
	if taxableCents <= 0 || bp <= 0 {
		return 0, nil
	}
	// round half up
	return (taxableCents*bp + 5000) / 10000, nil
}
