package serve

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/sig-0/fxquote/cmd/env"
	"github.com/sig-0/fxquote/ingest"
	"github.com/sig-0/fxquote/metrics"
	"github.com/sig-0/fxquote/notify/telegram"
	"github.com/sig-0/fxquote/payment"
	"github.com/sig-0/fxquote/quote"
	"github.com/sig-0/fxquote/quote/remote"
	"github.com/sig-0/fxquote/server"
	"github.com/sig-0/fxquote/server/config"
	"github.com/sig-0/fxquote/storage"
)

// prepare reads the server configuration (if any) and the .env file,
// and returns the service logger
func (c *serveCfg) prepare() (*slog.Logger, error) {
	if c.configPath != "" {
		serverCfg, err := config.Read(c.configPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read server config, %w", err)
		}

		c.config = serverCfg
	}

	// the listen flag wins over the file
	if c.listenAddress != "" {
		c.config.ListenAddress = c.listenAddress
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Load .env
	if err := godotenv.Load(); err != nil {
		logger.Warn("unable to load .env file")
	}

	return logger, nil
}

// run wires the service over the given store and blocks until
// the context is cancelled or any of the services fail
func (c *serveCfg) run(ctx context.Context, store storage.Storage, logger *slog.Logger) error {
	var (
		cfg = c.config
		m   = metrics.New()

		partnerKey = os.Getenv(env.Prefix + env.PartnerAPIKeySuffix)
	)

	// Create the ingestion service
	orchestrator := ingest.New(
		store,
		ingest.WithLogger(logger),
		ingest.WithMetrics(m),
	)

	for _, provider := range defaultProviders(cfg.Providers, partnerKey) {
		if err := orchestrator.Register(provider); err != nil {
			return fmt.Errorf("unable to register provider: %w", err)
		}
	}

	// Create the server instance
	s, err := server.New(
		store,
		server.WithLogger(logger),
		server.WithConfig(cfg),
		server.WithMetrics(m),
		server.WithCalculator(newCalculator(cfg, logger, m)),
		server.WithPayments(newPayments(cfg.Payment, partnerKey)),
		server.WithNotifier(telegram.New(
			os.Getenv(env.Prefix+env.TelegramTokenSuffix),
			os.Getenv(env.Prefix+env.TelegramChatSuffix),
			telegram.WithLogger(logger),
		)),
		server.WithWebhookSecret(os.Getenv(env.Prefix+env.WebhookSecretSuffix)),
	)
	if err != nil {
		return fmt.Errorf("unable to create server, %w", err)
	}

	runCtx, cancelFn := signal.NotifyContext(
		ctx,
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer cancelFn()

	group, gCtx := errgroup.WithContext(runCtx)

	// Start the HTTP server
	group.Go(func() error {
		return s.Serve(gCtx)
	})

	// Start the ingestion service
	group.Go(func() error {
		return orchestrator.Start(gCtx)
	})

	return group.Wait()
}

// newCalculator returns the local engine, behind the remote
// quote service when one is configured
func newCalculator(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) quote.Calculator {
	local := quote.NewLocal(cfg.Policy)

	r := cfg.Remote
	if r == nil || r.URL == "" {
		return local
	}

	opts := []remote.Option{
		remote.WithHTTPClient(&http.Client{
			Timeout: config.Duration(r.Timeout, remote.DefaultTimeout),
		}),
	}

	if r.RPS > 0 {
		opts = append(opts, remote.WithRateLimit(r.RPS, max(r.Burst, 1)))
	}

	return quote.NewFallback(
		[]quote.Calculator{
			remote.New(r.URL, opts...),
			local,
		},
		quote.WithFallbackLogger(logger),
		quote.WithFallbackMetrics(m),
	)
}

// newPayments returns the partner payment client.
// The client is disabled without an API key
func newPayments(cfg *config.Payment, apiKey string) *payment.Client {
	if cfg == nil {
		cfg = config.DefaultPaymentConfig()
	}

	var opts []payment.Option

	if cfg.RPS > 0 {
		opts = append(opts, payment.WithRateLimit(cfg.RPS, max(cfg.Burst, 1)))
	}

	return payment.New(cfg.URL, apiKey, opts...)
}
