package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	"github.com/samirrijal/safemap/internal/adapters/postgres"
	"github.com/samirrijal/safemap/internal/adapters/simulation"
	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/core/usecases"
	"github.com/samirrijal/safemap/internal/pkg/config"
	"github.com/samirrijal/safemap/internal/pkg/geospatial"
	"github.com/samirrijal/safemap/internal/pkg/logging"
)

func main() {
	root := &cobra.Command{
		Use:          "ingestor",
		Short:        "Load map entities into the SafeMap database",
		SilenceUsage: true,
	}
	root.PersistentFlags().Duration("timeout", 5*time.Minute, "overall deadline")

	importCmd := &cobra.Command{
		Use:   "import <file.geojson>...",
		Short: "Import GeoJSON FeatureCollections of Point features",
		Long: "Each feature needs an id (feature id or \"id\" property), a \"kind\" " +
			"(tourist, safe_zone, restricted_zone, alert, police_station) and a \"title\". " +
			"\"description\" and \"status\" are optional. Entities with an existing id are replaced.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			concurrency, _ := cmd.Flags().GetInt("concurrency")
			return withService(cmd, func(ctx context.Context, svc *usecases.EntityService) error {
				return importFiles(ctx, svc, args, concurrency)
			})
		},
	}
	importCmd.Flags().IntP("concurrency", "c", 4, "files imported in parallel")

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Store the built-in Delhi demo entities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *usecases.EntityService) error {
				entities := simulation.SeedEntities()
				if err := svc.Import(ctx, entities); err != nil {
					return err
				}
				slog.Info("seed entities stored", "count", len(entities))
				return nil
			})
		},
	}

	root.AddCommand(importCmd, seedCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// withService connects to the database and runs fn with an EntityService.
func withService(cmd *cobra.Command, fn func(context.Context, *usecases.EntityService) error) error {
	cfg, err := config.Load("safemap-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, "text", cfg.Telemetry.ServiceName)

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	return fn(ctx, usecases.NewEntityService(postgres.NewEntityRepo(db)))
}

func importFiles(ctx context.Context, svc *usecases.EntityService, paths []string, concurrency int) error {
	if concurrency < 1 {
		concurrency = 1
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
		total  int
	)
	sem := make(chan struct{}, concurrency)

	for _, p := range paths {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			entities, err := readEntities(path)
			if err == nil {
				err = svc.Import(ctx, entities)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				slog.Error("import failed", "file", path, "error", err)
				return
			}
			total += len(entities)
			slog.Info("file imported", "file", path, "entities", len(entities))
		}(p)
	}
	wg.Wait()

	slog.Info("import complete", "files", len(paths), "failed", failed, "entities", total)
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(paths))
	}
	return nil
}

func readEntities(path string) ([]domain.GeoEntity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}
	return geospatial.EntitiesFromFeatureCollection(fc)
}
