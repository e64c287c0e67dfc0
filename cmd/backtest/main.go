package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"match-predictor/internal/backtest"
	"match-predictor/internal/cfg"
	"match-predictor/internal/engine"
	"match-predictor/internal/factors"
	"match-predictor/internal/features"
	"match-predictor/internal/ledger"
	"match-predictor/internal/ml"
	"match-predictor/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		dataPath   = flag.String("data", "", "Path to a games file (.json/.csv) or a data directory (BoltDB)")
		dataFormat = flag.String("format", "auto", "Data format: auto, csv, json, boltdb")
		outputPath = flag.String("output", "backtest-results", "Output directory for results")
		logLevel   = flag.String("log-level", "info", "Log level: debug, info, warn, error")
		startDate  = flag.String("start", "", "Start date for BoltDB games (YYYY-MM-DD)")
		endDate    = flag.String("end", "", "End date for BoltDB games (YYYY-MM-DD)")
		threshold  = flag.Float64("threshold", 0, "Pick confidence threshold (overrides config)")
		seed       = flag.Int64("seed", 0, "Weight initialization seed (overrides config)")
		saveModel  = flag.Bool("save-model", false, "Save the trained classifier as a new checkpoint")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	config, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *threshold > 0 {
		config.ConfidenceThreshold = *threshold
	}
	if *seed != 0 {
		config.ModelSeed = *seed
	}
	if *dataPath == "" {
		*dataPath = config.DataPath
	}

	fmt.Println("=== Backtest Configuration ===")
	fmt.Printf("Data Path: %s (%s)\n", *dataPath, *dataFormat)
	fmt.Printf("Output Directory: %s\n", *outputPath)
	fmt.Printf("Threshold: %.0f\n", config.ConfidenceThreshold)
	fmt.Printf("Learning Rate: %g\n", config.LearningRate)
	fmt.Println("==============================")

	startTime, endTime, err := parseRange(*startDate, *endDate)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid date range")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := backtest.NewDataLoader()
	store, err := loadData(loader, *dataPath, *dataFormat, startTime, endTime)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load data")
	}

	// File replays accumulate head-to-head history in a scratch store.
	// BoltDB replays already hold every game and only ever see earlier ones.
	var recorder backtest.GameRecorder
	if store == nil {
		scratch, err := os.MkdirTemp("", "match-predictor-backtest-")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create scratch directory")
		}
		defer os.RemoveAll(scratch)

		if store, err = storage.New(scratch); err != nil {
			log.Fatal().Err(err).Msg("Failed to open scratch store")
		}
		recorder = store
	}
	defer store.Close()
	store.SetHistoryLimit(config.HistoryLimit)

	mlCfg := ml.DefaultConfig()
	mlCfg.LearningRate = config.LearningRate
	mlCfg.Seed = config.ModelSeed
	classifier, err := ml.New(mlCfg, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create classifier")
	}

	predictor := engine.New(
		classifier,
		features.NewExtractor(store, nil),
		factors.NewGenerator(config.TournamentWeight),
		ledger.New(nil),
		engine.WithThreshold(config.ConfidenceThreshold),
	)

	bt := backtest.NewEngine(predictor, recorder, loader)
	started := time.Now()
	if err := bt.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Backtest failed")
	}
	results := bt.GetResults()

	reporter := backtest.NewReporter(results, *outputPath)
	if err := reporter.GenerateReport(); err != nil {
		log.Error().Err(err).Msg("Failed to generate reports")
	}
	reporter.PrintSummary()

	if *saveModel {
		saveCheckpoint(config.ModelsDir, classifier, results)
	}

	log.Info().
		Str("output", *outputPath).
		Dur("elapsed", time.Since(started)).
		Msg("Backtest completed successfully")
}

// loadData fills loader and returns the store it read from, if any.
func loadData(loader *backtest.DataLoader, path, format string, start, end time.Time) (*storage.Store, error) {
	if format == "auto" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat path: %w", err)
		}
		switch ext := strings.ToLower(filepath.Ext(path)); {
		case info.IsDir():
			format = "boltdb"
		case ext == ".csv":
			format = "csv"
		case ext == ".json" || ext == ".ndjson" || ext == ".jsonl":
			format = "json"
		default:
			return nil, fmt.Errorf("cannot determine file format for: %s", path)
		}
	}

	switch format {
	case "csv":
		return nil, loader.LoadFromCSV(path)
	case "json":
		return nil, loader.LoadFromJSON(path)
	case "boltdb":
		store, err := storage.New(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open BoltDB: %w", err)
		}
		if err := loader.LoadFromBoltDB(store, start, end); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown data format %q", format)
	}
}

func parseRange(startDate, endDate string) (time.Time, time.Time, error) {
	start := time.Time{}
	end := time.Now()
	var err error
	if startDate != "" {
		if start, err = time.Parse("2006-01-02", startDate); err != nil {
			return start, end, fmt.Errorf("invalid start date: %w", err)
		}
	}
	if endDate != "" {
		if end, err = time.Parse("2006-01-02", endDate); err != nil {
			return start, end, fmt.Errorf("invalid end date: %w", err)
		}
		end = end.Add(24*time.Hour - time.Nanosecond)
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("end date %s is before start date %s", endDate, startDate)
	}
	return start, end, nil
}

func saveCheckpoint(dir string, classifier *ml.Classifier, results *backtest.Results) {
	manager, err := ml.NewModelManager(dir)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open models directory")
		return
	}
	version, err := manager.Save(classifier, ml.ModelMetrics{
		Samples:    results.TotalGames,
		Accuracy:   results.Accuracy,
		BrierScore: results.BrierScore,
		LogLoss:    results.LogLoss,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to save checkpoint")
		return
	}
	log.Info().Str("version", version.Version).Str("path", version.Path).Msg("Checkpoint saved")
}
