package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_ValidateConfig(t *testing.T) {
	t.Parallel()

	t.Run("invalid listen address", func(t *testing.T) {
		t.Parallel()

		cfg := DefaultConfig()
		cfg.ListenAddress = "rando-address" // doesn't follow the format

		assert.ErrorIs(t, ValidateConfig(cfg), ErrInvalidListenAddress)
	})

	t.Run("invalid quote TTL", func(t *testing.T) {
		t.Parallel()

		cfg := DefaultConfig()
		cfg.QuoteTTL = "forever"

		assert.ErrorIs(t, ValidateConfig(cfg), ErrInvalidDuration)
	})

	t.Run("invalid rates source", func(t *testing.T) {
		t.Parallel()

		cfg := DefaultConfig()
		cfg.Rates.Source = "carrier-pigeon"

		assert.ErrorIs(t, ValidateConfig(cfg), ErrInvalidRatesSource)
	})

	t.Run("http rates source without URL", func(t *testing.T) {
		t.Parallel()

		cfg := DefaultConfig()
		cfg.Rates.Source = RatesSourceHTTP

		assert.ErrorIs(t, ValidateConfig(cfg), ErrInvalidURL)
	})

	t.Run("invalid static rates", func(t *testing.T) {
		t.Parallel()

		cfg := DefaultConfig()
		cfg.Rates.StaticRubUsdt = 0

		assert.ErrorIs(t, ValidateConfig(cfg), ErrInvalidStaticRates)
	})

	t.Run("invalid policy", func(t *testing.T) {
		t.Parallel()

		cfg := DefaultConfig()
		cfg.Policy.Tiers = nil

		assert.Error(t, ValidateConfig(cfg))
	})

	t.Run("invalid remote", func(t *testing.T) {
		t.Parallel()

		cfg := DefaultConfig()
		cfg.Remote = &Remote{URL: "not a url"}

		assert.ErrorIs(t, ValidateConfig(cfg), ErrInvalidURL)

		cfg.Remote = &Remote{URL: "http://quotes.internal", RPS: -1}

		assert.ErrorIs(t, ValidateConfig(cfg), ErrInvalidRateLimit)
	})

	t.Run("valid configuration", func(t *testing.T) {
		t.Parallel()

		assert.NoError(t, ValidateConfig(DefaultConfig()))
	})
}

func TestConfig_Read(t *testing.T) {
	t.Parallel()

	t.Run("overrides keep defaults", func(t *testing.T) {
		t.Parallel()

		content := `
listen_address = "127.0.0.1:9000"
quote_ttl = "5m"

[rates]
source = "http"
url = "http://rates.internal"
static_usdt_thb = 32.0
static_rub_usdt = 90.0

[remote]
url = "http://quotes.internal"
timeout = "3s"
`

		path := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		cfg, err := Read(path)
		require.NoError(t, err)

		assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddress)
		assert.Equal(t, "5m", cfg.QuoteTTL)

		require.NotNil(t, cfg.Rates)
		assert.Equal(t, RatesSourceHTTP, cfg.Rates.Source)
		assert.Equal(t, "http://rates.internal", cfg.Rates.URL)
		assert.Equal(t, 32.0, cfg.Rates.StaticUsdtThb)

		require.NotNil(t, cfg.Remote)
		assert.Equal(t, "http://quotes.internal", cfg.Remote.URL)

		// untouched sections
		require.NotNil(t, cfg.Policy)
		assert.Len(t, cfg.Policy.Tiers, 3)
		require.NotNil(t, cfg.CORSConfig)

		assert.NoError(t, ValidateConfig(cfg))
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := Read(filepath.Join(t.TempDir(), "missing.toml"))

		assert.Error(t, err)
	})
}

func TestConfig_Duration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 5*time.Minute, Duration("5m", time.Second))
	assert.Equal(t, time.Second, Duration("", time.Second))
	assert.Equal(t, time.Second, Duration("-1s", time.Second))
}
