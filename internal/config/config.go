package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	MaxRetries  int
	DialTimeout int
	Timeout     int
	Prefix      string
}

type S3Config struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
	Prefix          string
	URLTTL          time.Duration
}

type StorageConfig struct {
	Dir          string
	PublicPrefix string
	ExternalURL  string
}

type CleanupConfig struct {
	FunctionURL string
	Timeout     time.Duration
}

// ReconcileConfig drives duplicate detection and the scheduled scan.
// It is the only section the YAML overlay may override.
type ReconcileConfig struct {
	PlanWindow       time.Duration `yaml:"plan_window"`
	PlanWinner       string        `yaml:"plan_winner"`
	IgnoreStandalone bool          `yaml:"ignore_standalone"`
	ScanSchedule     string        `yaml:"scan_schedule"`
	ScanTimezone     string        `yaml:"scan_timezone"`
	ScanCacheTTL     time.Duration `yaml:"scan_cache_ttl"`
}

type AppConfig struct {
	Port      string
	Postgres  PostgresConfig
	Redis     RedisConfig
	S3        S3Config
	Storage   StorageConfig
	JWTSecret string
	Cleanup   CleanupConfig
	Reconcile ReconcileConfig
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func mustAtoi(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int value %q: %v", s, err)
	}
	return i
}

func mustBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		log.Fatalf("invalid bool value %q: %v", s, err)
	}
	return b
}

func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Fatalf("invalid duration value %q: %v", s, err)
	}
	return d
}

func Load() AppConfig {
	cfg := AppConfig{
		Port: getenv("APP_PORT", "8010"),
		Postgres: PostgresConfig{
			Host:     getenv("PG_HOST", "127.0.0.1"),
			Port:     mustAtoi(getenv("PG_PORT", "5432")),
			User:     getenv("PG_USER", "postgres"),
			Password: getenv("PG_PASSWORD", "postgres"),
			DBName:   getenv("PG_DB", "gymdesk"),
			SSLMode:  getenv("PG_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:        getenv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:    getenv("REDIS_PASSWORD", ""),
			DB:          mustAtoi(getenv("REDIS_DB", "0")),
			MaxRetries:  mustAtoi(getenv("REDIS_MAX_RETRIES", "5")),
			DialTimeout: mustAtoi(getenv("REDIS_DIAL_TIMEOUT", "10")),
			Timeout:     mustAtoi(getenv("REDIS_TIMEOUT", "5")),
			Prefix:      getenv("REDIS_PREFIX", "gymdesk:"),
		},
		S3: S3Config{
			Enabled:         mustBool(getenv("S3_ENABLED", "false")),
			Endpoint:        getenv("S3_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getenv("S3_ACCESS_KEY", "minio"),
			SecretAccessKey: getenv("S3_SECRET_KEY", "minio123"),
			Bucket:          getenv("S3_BUCKET", "exports"),
			Region:          getenv("S3_REGION", "us-east-1"),
			UseSSL:          mustBool(getenv("S3_USE_SSL", "false")),
			Prefix:          getenv("S3_PREFIX", ""),
			URLTTL:          mustDuration(getenv("S3_URL_TTL", "24h")),
		},
		Storage: StorageConfig{
			Dir:          getenv("EXPORT_DIR", "./exports"),
			PublicPrefix: getenv("FILES_PUBLIC_PREFIX", "/files"),
			ExternalURL:  getenv("EXTERNAL_URL", ""),
		},
		JWTSecret: getenv("JWT_SECRET", ""),
		Cleanup: CleanupConfig{
			FunctionURL: getenv("CLEANUP_FUNCTION_URL", ""),
			Timeout:     mustDuration(getenv("CLEANUP_TIMEOUT", "15s")),
		},
		Reconcile: ReconcileConfig{
			PlanWindow:       mustDuration(getenv("DUPLICATE_PLAN_WINDOW", "5m")),
			PlanWinner:       getenv("PLAN_WINNER_POLICY", "later_index"),
			IgnoreStandalone: mustBool(getenv("IGNORE_STANDALONE_PAYMENTS", "false")),
			ScanSchedule:     getenv("SCAN_SCHEDULE", "0 3 * * *"),
			ScanTimezone:     getenv("SCAN_TIMEZONE", "America/Sao_Paulo"),
			ScanCacheTTL:     mustDuration(getenv("SCAN_CACHE_TTL", "1h")),
		},
	}

	if path := os.Getenv("GYM_CONFIG_FILE"); path != "" {
		if err := cfg.Reconcile.Overlay(path); err != nil {
			log.Fatalf("config overlay %s: %v", path, err)
		}
	}

	return cfg
}

type overlayFile struct {
	Reconcile *reconcileOverlay `yaml:"reconcile"`
}

// Pointers tell a missing key apart from a zero value.
type reconcileOverlay struct {
	PlanWindow       *string `yaml:"plan_window"`
	PlanWinner       *string `yaml:"plan_winner"`
	IgnoreStandalone *bool   `yaml:"ignore_standalone"`
	ScanSchedule     *string `yaml:"scan_schedule"`
	ScanTimezone     *string `yaml:"scan_timezone"`
	ScanCacheTTL     *string `yaml:"scan_cache_ttl"`
}

// Overlay applies the keys present under "reconcile:" in a YAML file.
func (rc *ReconcileConfig) Overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var f overlayFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if f.Reconcile == nil {
		return nil
	}
	o := f.Reconcile

	if o.PlanWindow != nil {
		d, err := time.ParseDuration(*o.PlanWindow)
		if err != nil {
			return fmt.Errorf("plan_window: %w", err)
		}
		rc.PlanWindow = d
	}
	if o.PlanWinner != nil {
		rc.PlanWinner = *o.PlanWinner
	}
	if o.IgnoreStandalone != nil {
		rc.IgnoreStandalone = *o.IgnoreStandalone
	}
	if o.ScanSchedule != nil {
		rc.ScanSchedule = *o.ScanSchedule
	}
	if o.ScanTimezone != nil {
		rc.ScanTimezone = *o.ScanTimezone
	}
	if o.ScanCacheTTL != nil {
		d, err := time.ParseDuration(*o.ScanCacheTTL)
		if err != nil {
			return fmt.Errorf("scan_cache_ttl: %w", err)
		}
		rc.ScanCacheTTL = d
	}
	return nil
}
