package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment    string               `mapstructure:"environment"`
	LogLevel       string               `mapstructure:"log_level"`
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Ingest         IngestConfig         `mapstructure:"ingest"`
	Movement       MovementConfig       `mapstructure:"movement"`
	Pairing        PairingConfig        `mapstructure:"pairing"`
	Timing         TimingConfig         `mapstructure:"timing"`
	Detection      DetectionConfig      `mapstructure:"detection"`
	RLM            RLMConfig            `mapstructure:"rlm"`
	Steam          SteamConfig          `mapstructure:"steam"`
	Arbitrage      ArbitrageConfig      `mapstructure:"arbitrage"`
	Performance    PerformanceConfig    `mapstructure:"performance"`
	Recommendation RecommendationConfig `mapstructure:"recommendation"`
	Scheduler      SchedulerConfig      `mapstructure:"scheduler"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int    `mapstructure:"max_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type IngestConfig struct {
	BatchSize    int    `mapstructure:"batch_size"`
	MaxOddsMagnitude int `mapstructure:"max_odds_magnitude"`
	WriteRetries int    `mapstructure:"write_retries"`
	RetryBackoff string `mapstructure:"retry_backoff"`
}

// RetryBackoffDuration parses the configured backoff, defaulting to 500ms.
func (c IngestConfig) RetryBackoffDuration() time.Duration {
	d, err := time.ParseDuration(c.RetryBackoff)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// MovementConfig carries the empirically chosen movement thresholds. They
// are configuration, not invariants, so they can be recalibrated per sport.
type MovementConfig struct {
	MajorMoveThreshold       int     `mapstructure:"major_move_threshold"`
	SignificantMoveThreshold int     `mapstructure:"significant_move_threshold"`
	MinorMoveThreshold       int     `mapstructure:"minor_move_threshold"`
	LineChangeMin            float64 `mapstructure:"line_change_min"`
	SuspectDeltaThreshold    int     `mapstructure:"suspect_delta_threshold"`
	BadDataDeltaThreshold    int     `mapstructure:"bad_data_delta_threshold"`
	FalsePositiveScoreMax    float64 `mapstructure:"false_positive_score_max"`
}

type PairingConfig struct {
	WindowMinutes int `mapstructure:"window_minutes"`
}

func (c PairingConfig) Window() time.Duration {
	return time.Duration(c.WindowMinutes) * time.Minute
}

type TimingConfig struct {
	LookbackDays       int `mapstructure:"lookback_days"`
	VeryLateMinutes    int `mapstructure:"very_late_minutes"`
	LatePregameMinutes int `mapstructure:"late_pregame_minutes"`
	HoursBeforeMinutes int `mapstructure:"hours_before_minutes"`
	DayBeforeMinutes   int `mapstructure:"day_before_minutes"`
}

type DetectionConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalSeconds int  `mapstructure:"interval_seconds"`
	WindowMinutes   int  `mapstructure:"window_minutes"`
}

func (c DetectionConfig) Window() time.Duration {
	return time.Duration(c.WindowMinutes) * time.Minute
}

type RLMConfig struct {
	MinPublicPercent   float64 `mapstructure:"min_public_percent"`
	ModerateDivergence float64 `mapstructure:"moderate_divergence"`
	StrongDivergence   float64 `mapstructure:"strong_divergence"`
	ModerateDelta      int     `mapstructure:"moderate_delta"`
	StrongDelta        int     `mapstructure:"strong_delta"`
	SmoothingPeriod    int     `mapstructure:"smoothing_period"`
}

type SteamConfig struct {
	WindowMinutes int `mapstructure:"window_minutes"`
	MinBooks      int `mapstructure:"min_books"`
	MinDelta      int `mapstructure:"min_delta"`
}

func (c SteamConfig) Window() time.Duration {
	return time.Duration(c.WindowMinutes) * time.Minute
}

type ArbitrageConfig struct {
	ExpiryMinutes    int     `mapstructure:"expiry_minutes"`
	OverlapSeconds   int     `mapstructure:"overlap_seconds"`
	MinProfitPercent float64 `mapstructure:"min_profit_percent"`
}

func (c ArbitrageConfig) Expiry() time.Duration {
	return time.Duration(c.ExpiryMinutes) * time.Minute
}

func (c ArbitrageConfig) Overlap() time.Duration {
	return time.Duration(c.OverlapSeconds) * time.Second
}

type PerformanceConfig struct {
	LowSample      int    `mapstructure:"low_sample"`
	ModerateSample int    `mapstructure:"moderate_sample"`
	HighSample     int    `mapstructure:"high_sample"`
	LockTTLSeconds int    `mapstructure:"lock_ttl_seconds"`
	DefaultPeriod  string `mapstructure:"default_period"`
}

type RecommendationConfig struct {
	CacheTTL      string  `mapstructure:"cache_ttl"`
	MinWinRate    float64 `mapstructure:"min_win_rate"`
	MinROI        float64 `mapstructure:"min_roi"`
	WarnSampleMin int     `mapstructure:"warn_sample_min"`
}

// CacheTTLDuration parses the configured freshness window, defaulting to 1h.
func (c RecommendationConfig) CacheTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

type SchedulerConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ResolveSpec string `mapstructure:"resolve_spec"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("server.port", 8080)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "sharpline")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_conns", 25)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("ingest.batch_size", 500)
	viper.SetDefault("ingest.max_odds_magnitude", 10000)
	viper.SetDefault("ingest.write_retries", 3)
	viper.SetDefault("ingest.retry_backoff", "500ms")

	viper.SetDefault("movement.major_move_threshold", 20)
	viper.SetDefault("movement.significant_move_threshold", 10)
	viper.SetDefault("movement.minor_move_threshold", 5)
	viper.SetDefault("movement.line_change_min", 0.5)
	viper.SetDefault("movement.suspect_delta_threshold", 50)
	viper.SetDefault("movement.bad_data_delta_threshold", 100)
	viper.SetDefault("movement.false_positive_score_max", 0.1)

	viper.SetDefault("pairing.window_minutes", 5)

	viper.SetDefault("timing.lookback_days", 7)
	viper.SetDefault("timing.very_late_minutes", 15)
	viper.SetDefault("timing.late_pregame_minutes", 60)
	viper.SetDefault("timing.hours_before_minutes", 360)
	viper.SetDefault("timing.day_before_minutes", 1440)

	viper.SetDefault("detection.enabled", true)
	viper.SetDefault("detection.interval_seconds", 60)
	viper.SetDefault("detection.window_minutes", 30)

	viper.SetDefault("rlm.min_public_percent", 55.0)
	viper.SetDefault("rlm.moderate_divergence", 10.0)
	viper.SetDefault("rlm.strong_divergence", 20.0)
	viper.SetDefault("rlm.moderate_delta", 10)
	viper.SetDefault("rlm.strong_delta", 20)
	viper.SetDefault("rlm.smoothing_period", 3)

	viper.SetDefault("steam.window_minutes", 10)
	viper.SetDefault("steam.min_books", 3)
	viper.SetDefault("steam.min_delta", 5)

	viper.SetDefault("arbitrage.expiry_minutes", 5)
	viper.SetDefault("arbitrage.overlap_seconds", 60)
	viper.SetDefault("arbitrage.min_profit_percent", 0.0)

	viper.SetDefault("performance.low_sample", 20)
	viper.SetDefault("performance.moderate_sample", 50)
	viper.SetDefault("performance.high_sample", 100)
	viper.SetDefault("performance.lock_ttl_seconds", 30)
	viper.SetDefault("performance.default_period", "all_time")

	viper.SetDefault("recommendation.cache_ttl", "1h")
	viper.SetDefault("recommendation.min_win_rate", 52.4)
	viper.SetDefault("recommendation.min_roi", 0.0)
	viper.SetDefault("recommendation.warn_sample_min", 20)

	viper.SetDefault("scheduler.enabled", true)
	viper.SetDefault("scheduler.resolve_spec", "0 3 * * *")
}
