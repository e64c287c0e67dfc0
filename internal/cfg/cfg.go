package cfg

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"match-predictor/internal/common"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	ConfidenceThreshold float64
	TournamentWeight    float64
	LearningRate        float64
	ModelSeed           int64
	ModelsDir           string
	DataPath            string
	HistorySource       string
	HistoryLimit        int
	DatabaseURL         string
	HistoryURL          string
	HistoryTimeout      time.Duration
	RedisAddr           string
	RedisPassword       string
	RedisTTL            time.Duration
	APIPort             int
	MetricsPort         int
	LogLevel            string
	LogFormat           string
}

type ConfigFile struct {
	Engine struct {
		ConfidenceThreshold float64 `yaml:"confidenceThreshold" default:"85"`
		TournamentWeight    float64 `yaml:"tournamentWeight" default:"1.25"`
	} `yaml:"engine"`

	ML struct {
		LearningRate float64 `yaml:"learningRate" default:"0.001"`
		Seed         int64   `yaml:"seed"`
		ModelsDir    string  `yaml:"modelsDir" default:"models"`
	} `yaml:"ml"`

	Storage struct {
		DataPath string `yaml:"dataPath" default:"data"`
	} `yaml:"storage"`

	History struct {
		Source      string `yaml:"source" default:"bolt"`
		Limit       int    `yaml:"limit" default:"10"`
		DatabaseURL string `yaml:"databaseURL"`
		URL         string `yaml:"url"`
		Timeout     string `yaml:"timeout" default:"5s"`
		Redis       struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			TTL      string `yaml:"ttl" default:"10m"`
		} `yaml:"redis"`
	} `yaml:"history"`

	Server struct {
		APIPort     int `yaml:"apiPort" default:"8081"`
		MetricsPort int `yaml:"metricsPort" default:"8080"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
	} `yaml:"log"`
}

// Load reads settings from the YAML file named by CONFIG_FILE, or from
// defaults when unset. Environment variables (including a .env file in the
// working directory) override both.
func Load() (Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to read .env file")
	}

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := defaults.Set(&config); err != nil {
		return Settings{}, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	return fromConfig(config)
}

func loadFromEnv() (Settings, error) {
	var config ConfigFile
	if err := defaults.Set(&config); err != nil {
		return Settings{}, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	return fromConfig(config)
}

func fromConfig(config ConfigFile) (Settings, error) {
	historyTimeout, err := time.ParseDuration(config.History.Timeout)
	if err != nil {
		return Settings{}, fmt.Errorf("invalid history timeout %q: %w", config.History.Timeout, err)
	}
	redisTTL, err := time.ParseDuration(config.History.Redis.TTL)
	if err != nil {
		return Settings{}, fmt.Errorf("invalid redis ttl %q: %w", config.History.Redis.TTL, err)
	}

	settings := Settings{
		ConfidenceThreshold: getFloatOrDefault(common.EnvConfidenceThreshold, config.Engine.ConfidenceThreshold),
		TournamentWeight:    getFloatOrDefault(common.EnvTournamentWeight, config.Engine.TournamentWeight),
		LearningRate:        getFloatOrDefault(common.EnvLearningRate, config.ML.LearningRate),
		ModelSeed:           getInt64OrDefault(common.EnvModelSeed, config.ML.Seed),
		ModelsDir:           getEnvOrDefault(common.EnvModelsDir, config.ML.ModelsDir),
		DataPath:            getEnvOrDefault(common.EnvDataPath, config.Storage.DataPath),
		HistorySource:       getEnvOrDefault(common.EnvHistorySource, config.History.Source),
		HistoryLimit:        getIntOrDefault(common.EnvHistoryLimit, config.History.Limit),
		DatabaseURL:         getEnvOrDefault(common.EnvPostgresURL, config.History.DatabaseURL),
		HistoryURL:          getEnvOrDefault(common.EnvHistoryURL, config.History.URL),
		HistoryTimeout:      getDurationOrDefault(common.EnvHistoryTimeout, historyTimeout),
		RedisAddr:           getEnvOrDefault(common.EnvRedisAddr, config.History.Redis.Addr),
		RedisPassword:       getEnvOrDefault(common.EnvRedisPassword, config.History.Redis.Password),
		RedisTTL:            getDurationOrDefault(common.EnvRedisTTL, redisTTL),
		APIPort:             getIntOrDefault(common.EnvAPIPort, config.Server.APIPort),
		MetricsPort:         getIntOrDefault(common.EnvMetricsPort, config.Server.MetricsPort),
		LogLevel:            getEnvOrDefault(common.EnvLogLevel, config.Log.Level),
		LogFormat:           getEnvOrDefault(common.EnvLogFormat, config.Log.Format),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// validateSettings performs range and consistency checks on configuration values
func validateSettings(settings *Settings) error {
	if settings.ConfidenceThreshold < common.MinConfidenceThreshold || settings.ConfidenceThreshold > common.MaxConfidenceThreshold {
		return fmt.Errorf("confidence threshold must be between %.0f and %.0f, got %f",
			common.MinConfidenceThreshold, common.MaxConfidenceThreshold, settings.ConfidenceThreshold)
	}
	if settings.TournamentWeight < common.MinTournamentWeight || settings.TournamentWeight > common.MaxTournamentWeight {
		return fmt.Errorf("tournament weight must be between %.0f and %.0f, got %f",
			common.MinTournamentWeight, common.MaxTournamentWeight, settings.TournamentWeight)
	}
	if settings.LearningRate <= 0 || settings.LearningRate > common.MaxLearningRate {
		return fmt.Errorf("learning rate must be between 0 and %g, got %g", common.MaxLearningRate, settings.LearningRate)
	}

	if settings.ModelsDir == "" {
		return fmt.Errorf("models directory cannot be empty")
	}
	if settings.DataPath == "" {
		return fmt.Errorf("data path cannot be empty")
	}

	switch settings.HistorySource {
	case common.HistorySourceBolt, common.HistorySourceNone:
	case common.HistorySourcePostgres:
		if settings.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for history source %q", settings.HistorySource)
		}
	case common.HistorySourceHTTP:
		if settings.HistoryURL == "" {
			return fmt.Errorf("history URL is required for history source %q", settings.HistorySource)
		}
	default:
		return fmt.Errorf("unknown history source %q", settings.HistorySource)
	}
	if settings.HistoryLimit <= 0 || settings.HistoryLimit > common.MaxHistoryLimit {
		return fmt.Errorf("history limit must be between 1 and %d, got %d", common.MaxHistoryLimit, settings.HistoryLimit)
	}
	if settings.HistoryTimeout < 100*time.Millisecond || settings.HistoryTimeout > time.Minute {
		return fmt.Errorf("history timeout must be between 100ms and 1m, got %v", settings.HistoryTimeout)
	}
	if settings.RedisAddr != "" && settings.RedisTTL <= 0 {
		return fmt.Errorf("redis TTL must be positive, got %v", settings.RedisTTL)
	}

	if settings.APIPort < common.MinPort || settings.APIPort > common.MaxPort {
		return fmt.Errorf("API port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.APIPort)
	}
	if settings.MetricsPort < common.MinPort || settings.MetricsPort > common.MaxPort {
		return fmt.Errorf("metrics port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.MetricsPort)
	}
	if settings.APIPort == settings.MetricsPort {
		return fmt.Errorf("API and metrics ports must differ, both are %d", settings.APIPort)
	}

	if _, err := zerolog.ParseLevel(settings.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", settings.LogLevel, err)
	}
	if settings.LogFormat != "console" && settings.LogFormat != "json" {
		return fmt.Errorf("log format must be console or json, got %q", settings.LogFormat)
	}

	return nil
}

// ConfigureLogging applies the log level and output format to the global logger.
func (s Settings) ConfigureLogging() {
	level, err := zerolog.ParseLevel(s.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if s.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
