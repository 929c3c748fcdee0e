package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitCSV("a, b"))
	assert.Equal(t, []string{"kafka:9092"}, splitCSV("kafka:9092,"))
	assert.Empty(t, splitCSV(" , "))
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, 15*time.Minute, cfg.CheckoutTTL)
	assert.Equal(t, 60*time.Second, cfg.SweepInterval)
	assert.Equal(t, 60*24*time.Hour, cfg.CartAbandonTTL)
	assert.Equal(t, 120, cfg.RateLimit)
}

func TestOverrides(t *testing.T) {
	t.Setenv("CHECKOUT_TTL", "5m")
	t.Setenv("RATE_LIMIT", "10")
	t.Setenv("ENV", "development")

	cfg := Load()
	assert.Equal(t, 5*time.Minute, cfg.CheckoutTTL)
	assert.Equal(t, 10, cfg.RateLimit)
	assert.True(t, cfg.Dev())
}

func TestBadValuesFallBack(t *testing.T) {
	t.Setenv("CHECKOUT_TTL", "not-a-duration")
	t.Setenv("RATE_LIMIT", "many")

	cfg := Load()
	assert.Equal(t, 15*time.Minute, cfg.CheckoutTTL)
	assert.Equal(t, 120, cfg.RateLimit)
}
