package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/zatekoja/labbook/internal/adapters/search"
	"github.com/zatekoja/labbook/internal/domain/entities"
	"github.com/zatekoja/labbook/internal/infrastructure/clients/labapi"
	"github.com/zatekoja/labbook/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/labbook/internal/infrastructure/observability"
	"github.com/zatekoja/labbook/pkg/config"
	apperrors "github.com/zatekoja/labbook/pkg/errors"
	"github.com/zatekoja/labbook/pkg/retry"
)

const detailWorkers = 4

func main() {
	var reset bool
	var intervalFlag string
	flag.BoolVar(&reset, "reset", false, "delete existing Typesense collection before reindexing")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.Parse()

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	if intervalValue != "" {
		var err error
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatal().Err(err).Str("interval", intervalValue).Msg("Invalid interval")
		}
		if interval <= 0 {
			log.Fatal().Msg("Interval must be greater than zero")
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-indexer", cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := indexOnce(ctx, cfg, reset); err != nil {
			log.Error().Err(err).Msg("Reindex failed")
		}

		if interval <= 0 {
			break
		}

		reset = false
		log.Info().Dur("next_run_in", interval).Msg("Reindex complete")

		select {
		case <-ctx.Done():
			log.Info().Msg("Reindexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, cfg *config.Config, reset bool) error {
	tokens := labapi.TokenSource(labapi.StaticToken(cfg.Backend.Token))
	if cfg.Backend.CredentialsFile != "" {
		tokens = labapi.FileTokenSource{Path: cfg.Backend.CredentialsFile}
	}
	backend := labapi.NewClient(cfg.Backend.BaseURL, tokens,
		labapi.WithTimeout(cfg.Backend.Timeout),
		labapi.WithPhoneRegion(cfg.Backend.PhoneRegion),
	)

	tsClient, err := typesense.NewClient(ctx, &cfg.Typesense)
	if err != nil {
		return err
	}

	if reset || os.Getenv("RESET_TYPESENSE") == "true" {
		log.Info().Msg("Reset requested, deleting labs collection")
		if _, err := tsClient.Client().Collection(typesense.LabsCollection).Delete(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to delete collection")
		}
	}

	index := search.NewTypesenseAdapter(tsClient)
	if err := index.InitSchema(ctx); err != nil {
		return err
	}

	retryCfg := retry.Config{
		MaxAttempts:     4,
		InitialDelay:    500 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		BackoffFactor:   2.0,
		MaxTotalTimeout: 2 * time.Minute,
		ShouldRetry:     apperrors.Retryable,
	}

	var labs []*entities.Lab
	err = retry.Do(ctx, retryCfg, "list labs", func() error {
		var listErr error
		labs, listErr = backend.List(ctx)
		return listErr
	})
	if err != nil {
		return fmt.Errorf("failed to list labs: %w", err)
	}

	log.Info().Int("labs", len(labs)).Msg("Indexing labs")

	var indexed, removed, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailWorkers)

	for _, summary := range labs {
		if summary == nil || summary.ID == "" {
			continue
		}
		g.Go(func() error {
			if !summary.IsActive {
				if err := index.Delete(gctx, summary.ID); err != nil {
					log.Warn().Err(err).Str("lab_id", summary.ID).Msg("Failed to remove inactive lab")
					failed.Add(1)
					return nil
				}
				removed.Add(1)
				return nil
			}

			// tests and packages only come with the detail call
			var lab *entities.Lab
			err := retry.Do(gctx, retryCfg, "lab "+summary.ID, func() error {
				var getErr error
				lab, getErr = backend.GetByID(gctx, summary.ID)
				return getErr
			})
			if err != nil {
				log.Warn().Err(err).Str("lab_id", summary.ID).Msg("Failed to load lab details, indexing summary only")
				lab = summary
			}

			if err := index.Index(gctx, lab); err != nil {
				log.Warn().Err(err).Str("lab_id", summary.ID).Msg("Failed to index lab")
				failed.Add(1)
				return nil
			}
			indexed.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info().
		Int64("indexed", indexed.Load()).
		Int64("removed", removed.Load()).
		Int64("failed", failed.Load()).
		Msg("Indexing finished")
	return nil
}
