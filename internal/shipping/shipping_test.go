package shipping

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailableFiltersByCountry(t *testing.T) {
	s := DefaultRates()
	ctx := context.Background()

	us, err := s.Available(ctx, "US", 1)
	require.NoError(t, err)
	assert.Len(t, us, 2)

	jp, err := s.Available(ctx, "JP", 1)
	require.NoError(t, err)
	require.Len(t, jp, 1)
	assert.Equal(t, "standard", jp[0].Code)
}

func TestCost(t *testing.T) {
	s := DefaultRates()
	ctx := context.Background()

	std, err := s.Cost(ctx, "JP", "standard", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(500+3*50), std)

	exp, err := s.Cost(ctx, "US", "express", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1500+2*100), exp)
}

func TestCostUnavailable(t *testing.T) {
	s := DefaultRates()
	_, err := s.Cost(context.Background(), "JP", "express", 1)
	assert.ErrorIs(t, err, ErrMethodUnavailable)

	_, err = s.Cost(context.Background(), "US", "drone", 1)
	assert.ErrorIs(t, err, ErrMethodUnavailable)
}
