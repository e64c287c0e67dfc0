package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"match-predictor/internal/api"
	"match-predictor/internal/bracket"
	"match-predictor/internal/cfg"
	"match-predictor/internal/common"
	"match-predictor/internal/engine"
	"match-predictor/internal/factors"
	"match-predictor/internal/features"
	"match-predictor/internal/history"
	"match-predictor/internal/ledger"
	"match-predictor/internal/metrics"
	"match-predictor/internal/ml"
	"match-predictor/internal/storage"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		listCheckpoints = flag.Bool("list-checkpoints", false, "Print saved classifier checkpoints and exit")
		checkpoint      = flag.String("checkpoint", "", "Activate a saved checkpoint version before starting")
		rollback        = flag.Bool("rollback", false, "Activate the checkpoint saved before the current one before starting")
	)
	flag.Parse()

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	c.ConfigureLogging()

	if *listCheckpoints {
		if err := printCheckpoints(c.ModelsDir); err != nil {
			log.Fatal().Err(err).Msg("failed to list checkpoints")
		}
		return
	}

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", c.DataPath).Msg("storage initialization failed")
	}
	defer store.Close()
	store.SetHistoryLimit(c.HistoryLimit)

	provider, recorder, closeHistory := initializeHistory(ctx, c, store)
	defer closeHistory()

	classifier, manager := initializeModel(c, mw, *checkpoint, *rollback)

	picks := ledger.New(store)
	if err := picks.Load(); err != nil {
		log.Warn().Err(err).Msg("failed to restore pick ledger, starting empty")
	}

	eng := engine.New(
		classifier,
		features.NewExtractor(provider, mw),
		factors.NewGenerator(c.TournamentWeight),
		picks,
		engine.WithThreshold(c.ConfidenceThreshold),
		engine.WithMetrics(mw),
	)
	perf := eng.PerformanceMetrics()
	mw.PickPerformanceSet(perf.WinPercentage, perf.ProfitLoss)

	tracker := bracket.New(eng, store, bracket.WithMetrics(mw))
	if err := tracker.Load(); err != nil {
		log.Warn().Err(err).Msg("failed to restore bracket, starting empty")
	}

	server := api.NewServer(ctx, eng, recorder, tracker, c.APIPort)
	metricsServer := newMetricsServer(c.MetricsPort)

	log.Info().
		Int("api_port", c.APIPort).
		Int("metrics_port", c.MetricsPort).
		Str("history_source", c.HistorySource).
		Float64("threshold", c.ConfidenceThreshold).
		Int("picks", picks.Len()).
		Msg("match predictor started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown API server")
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown metrics server")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server failed")
	}

	saveCheckpoint(classifier, manager)
	log.Info().Msg("shutdown complete")
}

// initializeHistory picks the head-to-head source. The returned recorder
// archives games reported through the API; it is the bolt store unless
// postgres is the history source.
func initializeHistory(ctx context.Context, c cfg.Settings, store *storage.Store) (history.Provider, api.GameRecorder, func()) {
	var (
		provider history.Provider
		recorder api.GameRecorder = store
		closers  []func()
	)

	switch c.HistorySource {
	case common.HistorySourcePostgres:
		pg, err := history.NewPostgresProvider(ctx, c.DatabaseURL, c.HistoryLimit)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres history initialization failed")
		}
		if err := pg.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("postgres migration failed")
		}
		provider, recorder = pg, pg
		closers = append(closers, func() { pg.Close() })
	case common.HistorySourceHTTP:
		provider = history.NewHTTPProvider(c.HistoryURL, c.HistoryTimeout, c.HistoryLimit)
	case common.HistorySourceNone:
		provider = history.NoopProvider{}
	default:
		provider = store
	}

	if c.RedisAddr != "" && c.HistorySource != common.HistorySourceNone {
		client, err := history.NewRedisClient(ctx, c.RedisAddr, c.RedisPassword)
		if err != nil {
			log.Warn().Err(err).Str("addr", c.RedisAddr).Msg("redis unavailable, history cache disabled")
		} else {
			provider = history.NewCachedProvider(provider, client, c.RedisTTL)
			closers = append(closers, func() { client.Close() })
			log.Info().Str("addr", c.RedisAddr).Dur("ttl", c.RedisTTL).Msg("history cache enabled")
		}
	}

	return provider, recorder, func() {
		for _, fn := range closers {
			fn()
		}
	}
}

// initializeModel builds the classifier and restores the active checkpoint
// when one exists. A non-empty version, or rollback, changes which checkpoint
// is active first.
func initializeModel(c cfg.Settings, mw *metrics.MetricsWrapper, version string, rollback bool) (*ml.Classifier, *ml.ModelManager) {
	mlCfg := ml.DefaultConfig()
	mlCfg.LearningRate = c.LearningRate
	mlCfg.Seed = c.ModelSeed

	classifier, err := ml.New(mlCfg, mw)
	if err != nil {
		log.Fatal().Err(err).Msg("classifier initialization failed")
	}

	manager, err := ml.NewModelManager(c.ModelsDir)
	if err != nil {
		log.Warn().Err(err).Msg("model manager unavailable, checkpoints disabled")
		return classifier, nil
	}

	switch {
	case version != "":
		if err := manager.ActivateVersion(version); err != nil {
			log.Fatal().Err(err).Str("version", version).Msg("failed to activate checkpoint")
		}
	case rollback:
		if err := manager.Rollback(); err != nil {
			log.Fatal().Err(err).Msg("checkpoint rollback failed")
		}
	}

	restored, err := manager.LoadActive(classifier)
	if err != nil {
		log.Warn().Err(err).Msg("failed to restore checkpoint, starting from fresh weights")
	} else if !restored {
		log.Info().Msg("no checkpoint found, starting from fresh weights")
	}
	return classifier, manager
}

func printCheckpoints(modelsDir string) error {
	manager, err := ml.NewModelManager(modelsDir)
	if err != nil {
		return err
	}

	versions := manager.ListVersions()
	if len(versions) == 0 {
		fmt.Println("no checkpoints saved")
		return nil
	}
	for _, v := range versions {
		active := " "
		if v.IsActive {
			active = "*"
		}
		fmt.Printf("%s %s  %s  steps=%d samples=%d accuracy=%.2f%%\n",
			active, v.Version, v.CreatedAt.Format(time.RFC3339), v.Metrics.TrainingSteps, v.Metrics.Samples, v.Metrics.Accuracy*100)
	}
	return nil
}

func saveCheckpoint(classifier *ml.Classifier, manager *ml.ModelManager) {
	if manager == nil || classifier.Steps() == 0 {
		return
	}
	if current := manager.GetCurrentVersion(); current != nil && current.Metrics.TrainingSteps == classifier.Steps() {
		return
	}
	if _, err := manager.Save(classifier, ml.ModelMetrics{}); err != nil {
		log.Error().Err(err).Msg("failed to save checkpoint")
	}
}

func newMetricsServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
