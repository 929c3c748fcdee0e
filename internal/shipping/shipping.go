// Package shipping is the shipping-rate collaborator: which methods can
// deliver to an address, and what they cost.
package shipping

import (
	"context"
	"errors"
)

var ErrMethodUnavailable = errors.New("shipping method unavailable for destination")

type Method struct {
	Code         string
	Name         string
	FlatCents    int64
	PerItemCents int64
	// Countries limits availability; empty means worldwide.
	Countries []string
}

func (m Method) servesCountry(country string) bool {
	if len(m.Countries) == 0 {
		return true
	}
	for _, c := range m.Countries {
		if c == country {
			return true
		}
	}
	return false
}

func (m Method) cost(itemCount int) int64 {
	return m.FlatCents + m.PerItemCents*int64(itemCount)
}

type Service interface {
	Available(ctx context.Context, country string, itemCount int) ([]Method, error)
	Cost(ctx context.Context, country, methodCode string, itemCount int) (int64, error)
}

// StaticRates serves a fixed method table.
type StaticRates struct{ Methods []Method }

// DefaultRates mirrors the storefront's standard offering.
func DefaultRates() *StaticRates {
	return &StaticRates{Methods: []Method{
		{Code: "standard", Name: "Standard", FlatCents: 500, PerItemCents: 50},
		{Code: "express", Name: "Express", FlatCents: 1500, PerItemCents: 100, Countries: []string{"US", "CA", "GB", "DE", "FR"}},
	}}
}

func (s *StaticRates) Available(_ context.Context, country string, _ int) ([]Method, error) {
	var out []Method
	for _, m := range s.Methods {
		if m.servesCountry(country) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *StaticRates) Cost(_ context.Context, country, methodCode string, itemCount int) (int64, error) {
	for _, m := range s.Methods {
		if m.Code == methodCode && m.servesCountry(country) {
			return m.cost(itemCount), nil
		}
	}
	return 0, ErrMethodUnavailable
}
