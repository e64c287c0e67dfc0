package common

// Environment variable keys
const (
	EnvConfigFile          = "CONFIG_FILE"
	EnvConfidenceThreshold = "CONFIDENCE_THRESHOLD"
	EnvTournamentWeight    = "TOURNAMENT_WEIGHT"
	EnvLearningRate        = "LEARNING_RATE"
	EnvModelSeed           = "MODEL_SEED"
	EnvModelsDir           = "MODELS_DIR"
	EnvDataPath            = "DATA_PATH"
	EnvHistorySource       = "HISTORY_SOURCE"
	EnvHistoryLimit        = "HISTORY_LIMIT"
	EnvPostgresURL         = "DATABASE_URL"
	EnvHistoryURL          = "HISTORY_URL"
	EnvHistoryTimeout      = "HISTORY_TIMEOUT"
	EnvRedisAddr           = "REDIS_ADDR"
	EnvRedisPassword       = "REDIS_PASSWORD"
	EnvRedisTTL            = "REDIS_TTL"
	EnvAPIPort             = "API_PORT"
	EnvMetricsPort         = "METRICS_PORT"
	EnvLogLevel            = "LOG_LEVEL"
	EnvLogFormat           = "LOG_FORMAT"
)

// History sources
const (
	HistorySourceBolt     = "bolt"
	HistorySourcePostgres = "postgres"
	HistorySourceHTTP     = "http"
	HistorySourceNone     = "none"
)

// Configuration defaults
const (
	DefaultConfidenceThreshold = 85.0
	DefaultTournamentWeight    = 1.25
	DefaultLearningRate        = 0.001
	DefaultModelsDir           = "models"
	DefaultDataPath            = "data"
	DefaultHistorySource       = HistorySourceBolt
	DefaultHistoryLimit        = 10
	DefaultHistoryTimeout      = "5s"
	DefaultRedisTTL            = "10m"
	DefaultAPIPort             = 8081
	DefaultMetricsPort         = 8080
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "console"
)

// Validation constants
const (
	MinConfidenceThreshold = 50.0
	MaxConfidenceThreshold = 100.0
	MinTournamentWeight    = 1.0
	MaxTournamentWeight    = 3.0
	MaxLearningRate        = 0.1
	MaxHistoryLimit        = 50
	MinPort                = 1024
	MaxPort                = 65535
)

// Feature vector
const (
	FeatureCount       = 28
	RecentFormWindow   = 5
	MaxInjuriesNorm    = 5.0
	TemperatureScale   = 100.0
	WindScale          = 30.0
	HumidityScale      = 100.0
	ExperienceGames    = 30.0
	AppearancesScale   = 10.0
	EarthRadiusKm      = 6371.0
	TravelDistanceNorm = 1000.0
)

// Bracket games are neutral-site with even odds
const (
	BracketSport       = "NCAAB"
	BracketVenue       = "Tournament Venue"
	BracketOdds        = 1.9
	BracketTemperature = 70.0
	BracketHumidity    = 50.0
)
