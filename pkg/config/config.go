package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	CORS      CORSConfig
	Log       LogConfig
	Scheduler SchedulerConfig
	Affinity  AffinityConfig
	Jobs      JobsConfig
	Export    ExportConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulerConfig tunes the weekly grid, load defaults, objective weights and
// solver limits. Clock values are "HH:MM".
type SchedulerConfig struct {
	Enabled       bool
	TimeBudget    time.Duration
	MaxTimeBudget time.Duration
	SlotMinutes   int
	Days          int

	MorningWindow       string
	AfternoonWindow     string
	OverloadWindow      string
	LunchWindow         string
	DefaultAvailability string

	OverloadMinutesPerUnit int
	FullTimeNormalHours    float64
	PartTimeNormalHours    float64
	FullTimeOverloadUnits  int
	PartTimeOverloadUnits  int

	WeightMatch        int64
	WeightRoomPriority int64
	WeightLoadBalance  int64
	WeightOverload     int64

	Seed             int64
	MaxIterations    int
	NodeLimit        int
	ProgressInterval time.Duration
	ProgressTTL      time.Duration
}

// AffinityConfig tunes affinity scoring batches.
type AffinityConfig struct {
	ColdStartScore      float64
	AugmentedMinLabels  int
	ClassifierMinLabels int
	ModelVersionPrefix  string
	CacheTTL            time.Duration
	Workers             int
}

// ExportConfig controls stored exports served through signed download links.
// Links are disabled while SigningSecret is empty.
type ExportConfig struct {
	Dir           string
	SigningSecret string
	LinkTTL       time.Duration
}

// JobsConfig sizes the background worker queue.
type JobsConfig struct {
	Workers int
	Retries int
	Buffer  int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return FromViper(v), nil
}

// FromViper maps a populated viper instance onto Config.
func FromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scheduler = SchedulerConfig{
		Enabled:       v.GetBool("ENABLE_SCHEDULER"),
		TimeBudget:    parseDuration(v.GetString("SCHEDULER_TIME_BUDGET"), 30*time.Second),
		MaxTimeBudget: parseDuration(v.GetString("SCHEDULER_MAX_TIME_BUDGET"), 5*time.Minute),
		SlotMinutes:   v.GetInt("SCHEDULER_SLOT_MINUTES"),
		Days:          v.GetInt("SCHEDULER_DAYS"),

		MorningWindow:       v.GetString("SCHEDULER_MORNING_WINDOW"),
		AfternoonWindow:     v.GetString("SCHEDULER_AFTERNOON_WINDOW"),
		OverloadWindow:      v.GetString("SCHEDULER_OVERLOAD_WINDOW"),
		LunchWindow:         v.GetString("SCHEDULER_LUNCH_WINDOW"),
		DefaultAvailability: v.GetString("SCHEDULER_DEFAULT_AVAILABILITY"),

		OverloadMinutesPerUnit: v.GetInt("SCHEDULER_OVERLOAD_MINUTES_PER_UNIT"),
		FullTimeNormalHours:    v.GetFloat64("SCHEDULER_FULL_TIME_NORMAL_HOURS"),
		PartTimeNormalHours:    v.GetFloat64("SCHEDULER_PART_TIME_NORMAL_HOURS"),
		FullTimeOverloadUnits:  v.GetInt("SCHEDULER_FULL_TIME_OVERLOAD_UNITS"),
		PartTimeOverloadUnits:  v.GetInt("SCHEDULER_PART_TIME_OVERLOAD_UNITS"),

		WeightMatch:        v.GetInt64("SCHEDULER_WEIGHT_MATCH"),
		WeightRoomPriority: v.GetInt64("SCHEDULER_WEIGHT_ROOM_PRIORITY"),
		WeightLoadBalance:  v.GetInt64("SCHEDULER_WEIGHT_LOAD_BALANCE"),
		WeightOverload:     v.GetInt64("SCHEDULER_WEIGHT_OVERLOAD"),

		Seed:             v.GetInt64("SCHEDULER_SEED"),
		MaxIterations:    v.GetInt("SCHEDULER_MAX_ITERATIONS"),
		NodeLimit:        v.GetInt("SCHEDULER_NODE_LIMIT"),
		ProgressInterval: parseDuration(v.GetString("SCHEDULER_PROGRESS_INTERVAL"), time.Second),
		ProgressTTL:      parseDuration(v.GetString("SCHEDULER_PROGRESS_TTL"), 24*time.Hour),
	}

	cfg.Affinity = AffinityConfig{
		ColdStartScore:      v.GetFloat64("AFFINITY_COLD_START_SCORE"),
		AugmentedMinLabels:  v.GetInt("AFFINITY_AUGMENTED_MIN_LABELS"),
		ClassifierMinLabels: v.GetInt("AFFINITY_CLASSIFIER_MIN_LABELS"),
		ModelVersionPrefix:  v.GetString("AFFINITY_MODEL_VERSION_PREFIX"),
		CacheTTL:            parseDuration(v.GetString("AFFINITY_CACHE_TTL"), 6*time.Hour),
		Workers:             v.GetInt("AFFINITY_WORKERS"),
	}

	cfg.Jobs = JobsConfig{
		Workers: v.GetInt("JOBS_WORKERS"),
		Retries: v.GetInt("JOBS_RETRIES"),
		Buffer:  v.GetInt("JOBS_BUFFER"),
	}

	cfg.Export = ExportConfig{
		Dir:           v.GetString("EXPORT_DIR"),
		SigningSecret: v.GetString("EXPORT_SIGNING_SECRET"),
		LinkTTL:       parseDuration(v.GetString("EXPORT_LINK_TTL"), 24*time.Hour),
	}

	return cfg
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	setDefaults(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_SCHEDULER", true)
	v.SetDefault("SCHEDULER_TIME_BUDGET", "30s")
	v.SetDefault("SCHEDULER_MAX_TIME_BUDGET", "5m")
	v.SetDefault("SCHEDULER_SLOT_MINUTES", 30)
	v.SetDefault("SCHEDULER_DAYS", 5)
	v.SetDefault("SCHEDULER_MORNING_WINDOW", "07:00-12:00")
	v.SetDefault("SCHEDULER_AFTERNOON_WINDOW", "13:00-17:00")
	v.SetDefault("SCHEDULER_OVERLOAD_WINDOW", "17:00-20:00")
	v.SetDefault("SCHEDULER_LUNCH_WINDOW", "12:00-13:00")
	v.SetDefault("SCHEDULER_DEFAULT_AVAILABILITY", "08:00-20:00")
	v.SetDefault("SCHEDULER_OVERLOAD_MINUTES_PER_UNIT", 60)
	v.SetDefault("SCHEDULER_FULL_TIME_NORMAL_HOURS", 18)
	v.SetDefault("SCHEDULER_PART_TIME_NORMAL_HOURS", 12)
	v.SetDefault("SCHEDULER_FULL_TIME_OVERLOAD_UNITS", 6)
	v.SetDefault("SCHEDULER_PART_TIME_OVERLOAD_UNITS", 0)
	v.SetDefault("SCHEDULER_WEIGHT_MATCH", 1000)
	v.SetDefault("SCHEDULER_WEIGHT_ROOM_PRIORITY", 100)
	v.SetDefault("SCHEDULER_WEIGHT_LOAD_BALANCE", 10)
	v.SetDefault("SCHEDULER_WEIGHT_OVERLOAD", 1)
	v.SetDefault("SCHEDULER_SEED", 1)
	v.SetDefault("SCHEDULER_MAX_ITERATIONS", 5000)
	v.SetDefault("SCHEDULER_NODE_LIMIT", 200000)
	v.SetDefault("SCHEDULER_PROGRESS_INTERVAL", "1s")
	v.SetDefault("SCHEDULER_PROGRESS_TTL", "24h")

	v.SetDefault("AFFINITY_COLD_START_SCORE", 0.05)
	v.SetDefault("AFFINITY_AUGMENTED_MIN_LABELS", 5)
	v.SetDefault("AFFINITY_CLASSIFIER_MIN_LABELS", 30)
	v.SetDefault("AFFINITY_MODEL_VERSION_PREFIX", "affinity")
	v.SetDefault("AFFINITY_CACHE_TTL", "6h")
	v.SetDefault("AFFINITY_WORKERS", 4)

	v.SetDefault("JOBS_WORKERS", 1)
	v.SetDefault("JOBS_RETRIES", 0)
	v.SetDefault("JOBS_BUFFER", 16)

	v.SetDefault("EXPORT_DIR", "./exports")
	v.SetDefault("EXPORT_SIGNING_SECRET", "")
	v.SetDefault("EXPORT_LINK_TTL", "24h")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
