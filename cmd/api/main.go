package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/zatekoja/labbook/internal/adapters/cache"
	"github.com/zatekoja/labbook/internal/adapters/history"
	"github.com/zatekoja/labbook/internal/adapters/payment"
	"github.com/zatekoja/labbook/internal/adapters/providers/geolocation"
	"github.com/zatekoja/labbook/internal/adapters/search"
	"github.com/zatekoja/labbook/internal/api/handlers"
	"github.com/zatekoja/labbook/internal/api/middleware"
	"github.com/zatekoja/labbook/internal/api/routes"
	"github.com/zatekoja/labbook/internal/application/services"
	"github.com/zatekoja/labbook/internal/domain/providers"
	"github.com/zatekoja/labbook/internal/domain/repositories"
	"github.com/zatekoja/labbook/internal/infrastructure/clients/labapi"
	"github.com/zatekoja/labbook/internal/infrastructure/clients/redis"
	"github.com/zatekoja/labbook/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/labbook/internal/infrastructure/observability"
	"github.com/zatekoja/labbook/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	// Redis is optional; without it the catalog is uncached and history lives on disk
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, continuing without cache")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	backend := labapi.NewClient(cfg.Backend.BaseURL, tokenSource(&cfg.Backend),
		labapi.WithTimeout(cfg.Backend.Timeout),
		labapi.WithPhoneRegion(cfg.Backend.PhoneRegion),
		labapi.WithMetrics(metrics),
	)

	var labs repositories.LabRepository = backend
	var cacheMiddleware *middleware.CacheMiddleware
	if redisClient != nil {
		cacheProvider := cache.NewRedisAdapter(redisClient)
		labs = cache.NewCachedLabRepository(backend, cacheProvider, metrics)
		cacheMiddleware = middleware.NewCacheMiddleware(cacheProvider, metrics)
		log.Info().Msg("Lab catalog wrapped with Redis cache")
	}

	activity := services.NewActivityTracker()
	locationProvider, placesProvider := geolocationProviders(&cfg.Geolocation)
	locator := services.NewGeoLocator(locationProvider, activity,
		services.WithLocationTimeout(cfg.Geolocation.Timeout),
		services.WithLocationMaxAge(cfg.Geolocation.MaxAge),
	)
	directory := services.NewLabDirectory(labs, activity)
	nearby := services.NewNearbySearchService(placesProvider, activity, metrics)

	suggester := suggestionProvider(ctx, &cfg.Typesense, directory)
	suggestions := services.NewSuggestionService(suggester, activity)
	defer suggestions.Close()
	searchHistory := services.NewSearchHistoryService(historyStore(&cfg.History, redisClient))

	checkouts := handlers.NewCheckoutLinks()
	submitter := services.NewBookingSubmitter(backend, paymentGateway(&cfg.Payment, checkouts), activity, cfg.Payment.Currency)
	sessions := handlers.NewWizardSessions(func() *services.BookingWizard {
		return services.NewBookingWizard(labs, activity, services.WithCatalogTimeout(cfg.Backend.Timeout))
	}, cfg.Server.SessionIdle, handlers.WithSessionSuggestions(func() *services.SuggestionService {
		return services.NewSuggestionService(suggester, activity)
	}))

	router := routes.NewRouter(
		handlers.NewLabHandler(directory, labs, locator, services.DefaultNearbyCount),
		handlers.NewLocationHandler(locator, activity),
		handlers.NewNearbyHandler(nearby, locator, cfg.Geolocation.RadiusMeter),
		handlers.NewSearchHandler(suggestions, searchHistory),
		handlers.NewBookingHandler(sessions, submitter, directory, labs, locator, checkouts),
		cacheMiddleware,
		cfg.Server.AllowedOrigins,
		metrics,
	)

	// pay-now submissions stay open until the checkout completes
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Payment.Timeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	// Locate and load the directory once up front; both keep their own error state.
	g.Go(func() error {
		if _, err := locator.Locate(gctx); err != nil {
			log.Warn().Err(err).Msg(services.LocationMessage(err))
		}
		return nil
	})
	g.Go(func() error {
		if list, err := directory.FetchAll(gctx); err != nil {
			log.Warn().Err(err).Msg("Initial lab list fetch failed")
		} else {
			log.Info().Int("labs", len(list)).Msg("Lab list loaded")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		return
	}
	log.Info().Msg("Server stopped")
}

func tokenSource(cfg *config.BackendConfig) labapi.TokenSource {
	if cfg.CredentialsFile != "" {
		return labapi.FileTokenSource{Path: cfg.CredentialsFile}
	}
	return labapi.StaticToken(cfg.Token)
}

// geolocationProviders picks the position source and the places source.
// Configured static coordinates always override the position source.
func geolocationProviders(cfg *config.GeolocationConfig) (providers.LocationProvider, providers.PlacesProvider) {
	var location providers.LocationProvider
	var places providers.PlacesProvider

	switch cfg.Provider {
	case "google":
		if cfg.APIKey == "" {
			log.Warn().Msg("GEOLOCATION_API_KEY is not set; using mock geolocation provider")
			mock := geolocation.NewMockProvider()
			location, places = mock, mock
			break
		}
		google := geolocation.NewGoogleProvider(cfg.APIKey, geolocation.WithPlacesQPS(cfg.PlacesQPS))
		location, places = google, google
	case "static":
		if cfg.APIKey != "" {
			places = geolocation.NewGoogleProvider(cfg.APIKey, geolocation.WithPlacesQPS(cfg.PlacesQPS))
		}
	default:
		mock := geolocation.NewMockProvider()
		location, places = mock, mock
	}

	if cfg.HasStaticLocation() {
		location = geolocation.NewStaticProvider(*cfg.StaticLat, *cfg.StaticLng)
	} else if cfg.Provider == "static" {
		log.Warn().Msg("GEOLOCATION_PROVIDER=static without LOCATION_LAT/LOCATION_LNG; location is unsupported")
	}
	return location, places
}

// suggestionProvider prefers the Typesense index and falls back to the in-memory directory
func suggestionProvider(ctx context.Context, cfg *config.TypesenseConfig, directory *services.LabDirectory) providers.SuggestionProvider {
	if !cfg.Enabled {
		return directory
	}
	client, err := typesense.NewClient(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Typesense unavailable, suggesting from the loaded lab list")
		return directory
	}
	adapter := search.NewTypesenseAdapter(client)
	if err := adapter.InitSchema(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to init Typesense schema")
	}
	return adapter
}

func historyStore(cfg *config.HistoryConfig, redisClient *redis.Client) providers.HistoryStore {
	if cfg.Store == "redis" {
		if redisClient != nil {
			return history.NewRedisStore(redisClient, cfg.Key)
		}
		log.Warn().Msg("HISTORY_STORE=redis but Redis is unavailable; using file store")
	}
	return history.NewFileStore(cfg.Path)
}

func paymentGateway(cfg *config.PaymentConfig, checkouts *handlers.CheckoutLinks) providers.PaymentGateway {
	if cfg.Provider == "stripe" {
		if cfg.StripeKey != "" {
			return payment.NewStripeGateway(payment.StripeConfig{
				SecretKey:    cfg.StripeKey,
				Currency:     cfg.Currency,
				SuccessURL:   cfg.SuccessURL,
				CancelURL:    cfg.CancelURL,
				PollInterval: cfg.PollInterval,
				Timeout:      cfg.Timeout,
			}, checkouts.Open)
		}
		log.Warn().Msg("STRIPE_SECRET_KEY is not set; using mock payment gateway")
	}
	return payment.NewMockGateway()
}
