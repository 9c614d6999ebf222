package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server ServerConfig `yaml:"server"`

	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`

	JWT struct {
		Secret string `yaml:"secret"`
		TTL    int    `yaml:"ttl"` // minutes
	} `yaml:"jwt"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Kafka struct {
		Enabled bool     `yaml:"enabled"`
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
		GroupID string   `yaml:"group_id"`
	} `yaml:"kafka"`

	Email struct {
		Enabled      bool   `yaml:"enabled"`
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUsername string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
		FromName     string `yaml:"from_name"`
	} `yaml:"email"`

	Push struct {
		Enabled     bool   `yaml:"enabled"`
		Region      string `yaml:"region"`
		PlatformARN string `yaml:"platform_arn"`
	} `yaml:"push"`

	Scheduler Scheduler `yaml:"scheduler"`

	Telemetry struct {
		Enabled      bool   `yaml:"enabled"`
		OTLPEndpoint string `yaml:"otlp_endpoint"`
		ServiceName  string `yaml:"service_name"`
	} `yaml:"telemetry"`

	FirstStaffEmail    string `yaml:"first_staff_email"`
	FirstStaffPassword string `yaml:"first_staff_password"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	Env            string   `yaml:"env"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Scheduler holds periodic task cadence and windows.
type Scheduler struct {
	Enabled          bool          `yaml:"enabled"`
	ReminderInterval time.Duration `yaml:"reminder_interval"`
	ReminderWindow   time.Duration `yaml:"reminder_window"`
	ReminderDedupTTL time.Duration `yaml:"reminder_dedup_ttl"`
	OverdueInterval  time.Duration `yaml:"overdue_interval"`
	DeadlineInterval time.Duration `yaml:"deadline_interval"`
	DeadlineHorizon  time.Duration `yaml:"deadline_horizon"`
	DigestInterval   time.Duration `yaml:"digest_interval"`
	CleanupInterval  time.Duration `yaml:"cleanup_interval"`
	RetentionDays    int           `yaml:"retention_days"`
}

// Load reads CONFIG_PATH (default config/config.yaml). When the file does not
// exist the configuration is built from environment variables, after loading
// a .env file if one is present.
func Load() (*Config, error) {
	cfg := Default()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	f, err := os.Open(configPath)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file at %s: %w", configPath, err)
		}
	case os.IsNotExist(err):
		_ = godotenv.Load()
	default:
		return nil, fmt.Errorf("failed to open config file at %s: %w", configPath, err)
	}

	applyEnv(cfg)

	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database url is not configured")
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is not configured")
	}
	return cfg, nil
}

// Default returns the configuration used when a key is not set anywhere.
func Default() *Config {
	var cfg Config
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 8000
	cfg.Server.Env = "development"
	cfg.JWT.TTL = 60 * 24
	cfg.Redis.Addr = "localhost:6379"
	cfg.Kafka.Topic = "ecosystia.domain-events"
	cfg.Kafka.GroupID = "notification-service"
	cfg.Email.SMTPPort = 587
	cfg.Email.FromName = "EcosystIA"
	cfg.Telemetry.ServiceName = "ecosystia-notifications"

	cfg.Scheduler = Scheduler{
		Enabled:          true,
		ReminderInterval: 5 * time.Minute,
		ReminderWindow:   15 * time.Minute,
		ReminderDedupTTL: 30 * time.Minute,
		OverdueInterval:  time.Hour,
		DeadlineInterval: 6 * time.Hour,
		DeadlineHorizon:  3 * 24 * time.Hour,
		DigestInterval:   time.Hour,
		CleanupInterval:  24 * time.Hour,
		RetentionDays:    90,
	}
	return &cfg
}

func applyEnv(cfg *Config) {
	setString(&cfg.Database.DSN, "DATABASE_URL")
	setString(&cfg.Server.Env, "SERVER_ENV")
	setInt(&cfg.Server.Port, "SERVER_PORT")
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}
	setString(&cfg.JWT.Secret, "JWT_SECRET")
	setInt(&cfg.JWT.TTL, "JWT_TTL")

	setBool(&cfg.Redis.Enabled, "REDIS_ENABLED")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")

	setBool(&cfg.Kafka.Enabled, "KAFKA_ENABLED")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	setString(&cfg.Kafka.Topic, "KAFKA_TOPIC")

	setBool(&cfg.Email.Enabled, "EMAIL_ENABLED")
	setString(&cfg.Email.SMTPHost, "SMTP_HOST")
	setInt(&cfg.Email.SMTPPort, "SMTP_PORT")
	setString(&cfg.Email.SMTPUsername, "SMTP_USER")
	setString(&cfg.Email.SMTPPassword, "SMTP_PASSWORD")
	setString(&cfg.Email.FromEmail, "SMTP_FROM")

	setBool(&cfg.Push.Enabled, "PUSH_ENABLED")
	setString(&cfg.Push.Region, "AWS_REGION")
	setString(&cfg.Push.PlatformARN, "SNS_PLATFORM_ARN")

	setBool(&cfg.Telemetry.Enabled, "OTEL_ENABLED")
	setString(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")

	setString(&cfg.FirstStaffEmail, "FIRST_STAFF_EMAIL")
	setString(&cfg.FirstStaffPassword, "FIRST_STAFF_PASSWORD")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
