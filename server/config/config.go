package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"github.com/pelletier/go-toml"

	"github.com/sig-0/fxquote/quote"
)

const (
	DefaultListenAddress = "0.0.0.0:8545"
	DefaultQuoteTTL      = "15m"

	// RatesSourceStorage serves spot rates from ingested observations
	RatesSourceStorage = "storage"

	// RatesSourceHTTP serves spot rates from a remote rates service (GET /rates)
	RatesSourceHTTP = "http"
)

var (
	ErrInvalidListenAddress = errors.New("invalid listen address")
	ErrInvalidDuration      = errors.New("invalid duration")
	ErrInvalidRatesSource   = errors.New("invalid rates source")
	ErrInvalidURL           = errors.New("invalid URL")
	ErrInvalidStaticRates   = errors.New("invalid static rates")
	ErrInvalidRateLimit     = errors.New("invalid rate limit")
)

var listenAddressRegex = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}:\d+$`)

// Config defines the base-level server configuration
type Config struct {
	// The associated CORS config, if any
	CORSConfig *CORS `toml:"cors_config"`

	// The spot rate provider config
	Rates *Rates `toml:"rates"`

	// The commission and margin policy
	Policy *quote.Policy `toml:"policy"`

	// The remote quote service, if any.
	// The local engine is always the last calculator
	Remote *Remote `toml:"remote"`

	// The payment partner config
	Payment *Payment `toml:"payment"`

	// The spot rate ingestion providers
	Providers *Providers `toml:"providers"`

	// The address at which the server will be served.
	// Format should be: <IP>:<PORT>
	ListenAddress string `toml:"listen_address"`

	// How long issued quotes stay payable
	QuoteTTL string `toml:"quote_ttl"`
}

// Rates defines the spot rate provider configuration
type Rates struct {
	// Source is either "storage" or "http"
	Source string `toml:"source"`

	// URL is the rates service base URL, for the http source
	URL string `toml:"url"`

	// TTL is how long fetched rates are served before a refresh
	TTL string `toml:"ttl"`

	// FetchTimeout bounds a single rate fetch
	FetchTimeout string `toml:"fetch_timeout"`

	// MaxAge is the oldest usable observation, for the storage source
	MaxAge string `toml:"max_age"`

	// StaticUsdtThb and StaticRubUsdt are served when no rates were ever fetched
	StaticUsdtThb float64 `toml:"static_usdt_thb"`
	StaticRubUsdt float64 `toml:"static_rub_usdt"`
}

// Remote defines the remote quote service configuration
type Remote struct {
	URL     string  `toml:"url"`
	Timeout string  `toml:"timeout"`
	RPS     float64 `toml:"rps"`
	Burst   int     `toml:"burst"`
}

// Payment defines the payment partner configuration.
// The API key is read from the environment
type Payment struct {
	URL   string  `toml:"url"`
	RPS   float64 `toml:"rps"`
	Burst int     `toml:"burst"`
}

// Providers defines the spot rate ingestion providers
type Providers struct {
	BinanceEndpoints []string `toml:"binance_endpoints"`
	DoverkaURL       string   `toml:"doverka_url"`
	CBRURL           string   `toml:"cbr_url"`
	Timeout          string   `toml:"timeout"`
}

// DefaultConfig returns the default server configuration
func DefaultConfig() *Config {
	return &Config{
		ListenAddress: DefaultListenAddress,
		QuoteTTL:      DefaultQuoteTTL,
		CORSConfig:    DefaultCORSConfig(),
		Rates:         DefaultRatesConfig(),
		Policy:        quote.DefaultPolicy(),
		Payment:       DefaultPaymentConfig(),
		Providers:     DefaultProvidersConfig(),
	}
}

// DefaultRatesConfig returns the default spot rate provider configuration
func DefaultRatesConfig() *Rates {
	return &Rates{
		Source:        RatesSourceStorage,
		TTL:           "60s",
		FetchTimeout:  "10s",
		MaxAge:        "15m",
		StaticUsdtThb: 31.16,
		StaticRubUsdt: 84.23,
	}
}

// DefaultPaymentConfig returns the default payment partner configuration
func DefaultPaymentConfig() *Payment {
	return &Payment{
		URL:   "https://api.doverkapay.com",
		RPS:   1,
		Burst: 5,
	}
}

// DefaultProvidersConfig returns the default ingestion provider configuration
func DefaultProvidersConfig() *Providers {
	return &Providers{
		BinanceEndpoints: []string{
			"https://api.binance.com/api/v3/ticker/price",
			"https://api.binance.th/api/v1/ticker/price",
		},
		DoverkaURL: "https://api.doverkapay.com",
		CBRURL:     "https://www.cbr.ru/currency_base/daily/",
		Timeout:    "30s",
	}
}

// ValidateConfig validates the server configuration
func ValidateConfig(config *Config) error {
	// Validate the listen address
	if !listenAddressRegex.MatchString(config.ListenAddress) {
		return ErrInvalidListenAddress
	}

	if err := validateDuration("quote_ttl", config.QuoteTTL); err != nil {
		return err
	}

	if config.Policy != nil {
		if err := config.Policy.Validate(); err != nil {
			return fmt.Errorf("invalid policy, %w", err)
		}
	}

	if err := validateRates(config.Rates); err != nil {
		return err
	}

	if r := config.Remote; r != nil && r.URL != "" {
		if err := validateURL(r.URL); err != nil {
			return err
		}

		if err := validateOptionalDuration("remote.timeout", r.Timeout); err != nil {
			return err
		}

		if r.RPS < 0 || r.Burst < 0 {
			return ErrInvalidRateLimit
		}
	}

	if p := config.Payment; p != nil && p.URL != "" {
		if err := validateURL(p.URL); err != nil {
			return err
		}

		if p.RPS < 0 || p.Burst < 0 {
			return ErrInvalidRateLimit
		}
	}

	if p := config.Providers; p != nil {
		if err := validateOptionalDuration("providers.timeout", p.Timeout); err != nil {
			return err
		}
	}

	return nil
}

func validateRates(r *Rates) error {
	if r == nil {
		return nil
	}

	switch r.Source {
	case RatesSourceStorage:
	case RatesSourceHTTP:
		if err := validateURL(r.URL); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRatesSource, r.Source)
	}

	for name, value := range map[string]string{
		"rates.ttl":           r.TTL,
		"rates.fetch_timeout": r.FetchTimeout,
		"rates.max_age":       r.MaxAge,
	} {
		if err := validateOptionalDuration(name, value); err != nil {
			return err
		}
	}

	if r.StaticUsdtThb <= 0 || r.StaticRubUsdt <= 0 {
		return ErrInvalidStaticRates
	}

	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}

	return nil
}

func validateDuration(name, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fmt.Errorf("%w: %s = %q", ErrInvalidDuration, name, value)
	}

	return nil
}

func validateOptionalDuration(name, value string) error {
	if value == "" {
		return nil
	}

	return validateDuration(name, value)
}

// Duration parses a validated duration, returning def if unset
func Duration(value string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}

	return d
}

// Read reads the configuration from the given path.
// Unset sections keep their defaults
func Read(path string) (*Config, error) {
	// Read the config file
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Parse it
	cfg := DefaultConfig()

	if err := toml.Unmarshal(content, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
