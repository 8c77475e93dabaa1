package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v3"
	"github.com/patrickmn/go-cache"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/sig-0/fxquote/metrics"
	"github.com/sig-0/fxquote/payment"
	"github.com/sig-0/fxquote/quote"
	"github.com/sig-0/fxquote/rates"
	"github.com/sig-0/fxquote/server/config"
	"github.com/sig-0/fxquote/storage"
	"github.com/sig-0/fxquote/storage/types"
)

// RateProvider serves the current spot rate pair
type RateProvider interface {
	// Fetch returns the current rates, refreshing them if stale
	Fetch(context.Context) rates.Snapshot

	// Refresh drops any cached rates and fetches new ones
	Refresh(context.Context) rates.Snapshot

	// WithRates runs fn against the current rates,
	// retrying the refresh once when only last known rates are available
	WithRates(ctx context.Context, fn func(rates.Snapshot) error) error
}

// PaymentIssuer issues payment links for quotes
type PaymentIssuer interface {
	Enabled() bool
	Issue(context.Context, *payment.Request) (*payment.Link, error)
}

// Notifier delivers operator notifications
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

var noopLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type Server struct {
	logger  *slog.Logger
	config  *config.Config
	metrics *metrics.Metrics

	storage storage.Storage
	rates   RateProvider

	// local computes remote-compatible quotes (POST /v1/calculate),
	// calculator computes issued quotes (POST /v1/quotes)
	local      *quote.Local
	calculator quote.Calculator

	payments      PaymentIssuer
	notifier      Notifier
	webhookSecret string

	// quotes holds issued quotes until they expire
	quotes   *cache.Cache
	quoteTTL time.Duration

	mux *chi.Mux
}

// New creates a new server instance
func New(storage storage.Storage, opts ...Option) (*Server, error) {
	s := &Server{
		logger:  noopLogger,
		storage: storage,
		config:  config.DefaultConfig(),
		mux:     chi.NewMux(),
	}

	// Apply the options
	for _, opt := range opts {
		opt(s)
	}

	// Validate the configuration
	if err := config.ValidateConfig(s.config); err != nil {
		return nil, fmt.Errorf("invalid configuration, %w", err)
	}

	s.local = quote.NewLocal(s.config.Policy)

	if s.calculator == nil {
		s.calculator = s.local
	}

	if s.rates == nil {
		s.rates = defaultRateProvider(storage, s.config.Rates, s.logger, s.metrics)
	}

	s.quoteTTL = config.Duration(s.config.QuoteTTL, 15*time.Minute)
	s.quotes = cache.New(s.quoteTTL, 2*s.quoteTTL)

	// Set up the CORS middleware
	if s.config.CORSConfig != nil {
		corsMiddleware := cors.New(cors.Options{
			AllowedOrigins: s.config.CORSConfig.AllowedOrigins,
			AllowedMethods: s.config.CORSConfig.AllowedMethods,
			AllowedHeaders: s.config.CORSConfig.AllowedHeaders,
		})

		s.mux.Use(corsMiddleware.Handler)
	}

	s.mux.Use(httplog.RequestLogger(s.logger, &httplog.Options{
		Level:         slog.LevelInfo,
		Schema:        httplog.SchemaOTEL,
		RecoverPanics: true,
		Skip: func(r *http.Request, respStatus int) bool {
			return respStatus == 404 || respStatus == 405 || r.URL.Path == "/health"
		},
	}))

	s.registerRoutes()

	return s, nil
}

// registerRoutes registers the standard handler endpoints
func (s *Server) registerRoutes() {
	s.mux.Get("/health", s.Health)
	s.mux.Get("/openapi.yaml", s.OpenAPI)
	s.mux.Get("/docs", s.Redoc)

	if s.metrics != nil {
		s.mux.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	s.mux.Route("/v1", func(r chi.Router) {
		r.Get("/rates", s.Rates)
		r.Get("/rates/{base}", s.RatesForBase)
		r.Get("/rates/{base}/{target}", s.RatesForPair)

		r.Get("/sources", s.Sources)
		r.Get("/currencies", s.Currencies)
		r.Get("/tiers", s.Tiers)

		r.Post("/calculate", s.Calculate)
		r.Post("/quotes", s.CreateQuote)
		r.Get("/quotes/{id}", s.GetQuote)

		r.Post("/payments", s.CreatePayment)
		r.Post("/webhooks/payment", s.PaymentWebhook)
	})
}

// defaultRateProvider serves rates from the ingested observations,
// or from the configured rates service
func defaultRateProvider(
	store storage.Storage,
	cfg *config.Rates,
	logger *slog.Logger,
	m *metrics.Metrics,
) *rates.Provider {
	if cfg == nil {
		cfg = config.DefaultRatesConfig()
	}

	var source rates.Source = rates.NewStorageSource(
		store,
		types.SourceBinance,
		types.SourceDoverka,
		config.Duration(cfg.MaxAge, 0),
	)

	if cfg.Source == config.RatesSourceHTTP {
		source = rates.NewHTTPSource(
			cfg.URL,
			config.Duration(cfg.FetchTimeout, rates.DefaultFetchTimeout),
		)
	}

	return rates.NewProvider(
		source,
		rates.WithLogger(logger),
		rates.WithMetrics(m),
		rates.WithTTL(config.Duration(cfg.TTL, rates.DefaultTTL)),
		rates.WithFetchTimeout(config.Duration(cfg.FetchTimeout, rates.DefaultFetchTimeout)),
		rates.WithStaticRates(quote.Rates{
			UsdtThb: cfg.StaticUsdtThb,
			RubUsdt: cfg.StaticRubUsdt,
		}),
	)
}

// Handler returns the server HTTP handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Serve serves the fxquote service
func (s *Server) Serve(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.config.ListenAddress,
		Handler:           s.mux,
		ReadHeaderTimeout: 60 * time.Second,
	}

	group, gCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		defer s.logger.Info("server shut down")

		ln, err := net.Listen("tcp", server.Addr)
		if err != nil {
			return err
		}

		s.logger.Info(
			fmt.Sprintf(
				"server started at %s",
				ln.Addr().String(),
			),
		)

		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	group.Go(func() error {
		<-gCtx.Done()

		s.logger.Info("server to be shutdown")

		wsCtx, cancel := context.WithTimeout(context.Background(), time.Second*30)
		defer cancel()

		return server.Shutdown(wsCtx)
	})

	return group.Wait()
}
