package serve

import (
	"time"

	"github.com/sig-0/fxquote/ingest"
	"github.com/sig-0/fxquote/provider/spot"
	"github.com/sig-0/fxquote/server/config"
)

// defaultProviders returns the default ingestion providers
func defaultProviders(cfg *config.Providers, partnerAPIKey string) []ingest.Provider {
	if cfg == nil {
		cfg = config.DefaultProvidersConfig()
	}

	timeout := config.Duration(cfg.Timeout, time.Second*30)

	providers := []ingest.Provider{
		// USDT/THB ticker
		spot.NewBinanceProvider(timeout, cfg.BinanceEndpoints...),

		// Official CBR reference rates
		spot.NewCBRProvider(cfg.CBRURL, timeout),
	}

	// RUB/USDT partner rate, only with credentials
	if partnerAPIKey != "" {
		providers = append(
			providers,
			spot.NewDoverkaProvider(cfg.DoverkaURL, partnerAPIKey, timeout),
		)
	}

	return providers
}
