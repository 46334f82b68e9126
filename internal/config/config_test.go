package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("POSTGRES_USER", "slotbook")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "slotbook")
}

func TestNew_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, "disable", cfg.Postgres.SSLMode)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Empty(t, cfg.RabbitMQ.URL)

	assert.Equal(t, 3, cfg.Booking.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.Booking.BaseDelay)
	assert.Equal(t, 2*time.Second, cfg.Booking.MaxDelay)
	assert.Equal(t, 5*time.Second, cfg.Booking.TxTimeout)
}

func TestNew_MissingRequired(t *testing.T) {
	t.Setenv("POSTGRES_USER", "")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "slotbook")

	_, err := New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTGRES_USER")
}

func TestNew_BookingOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("BOOKING_MAX_RETRIES", "5")
	t.Setenv("BOOKING_BASE_DELAY_MS", "50")
	t.Setenv("BOOKING_MAX_DELAY_MS", "1000")
	t.Setenv("BOOKING_TX_TIMEOUT_MS", "2500")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Booking.MaxRetries)
	assert.Equal(t, 50*time.Millisecond, cfg.Booking.BaseDelay)
	assert.Equal(t, time.Second, cfg.Booking.MaxDelay)
	assert.Equal(t, 2500*time.Millisecond, cfg.Booking.TxTimeout)
}

func TestNew_RejectsGarbageInt(t *testing.T) {
	setRequired(t)
	t.Setenv("BOOKING_MAX_RETRIES", "many")

	_, err := New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOOKING_MAX_RETRIES")
}
