package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Service    Service
	Database   Database
	SQS        SQS
	ClickHouse ClickHouse
	Consumer   Consumer
	SLA        SLA
	Telephony  Telephony
	Dashboard  DashboardSource
}

// Fields use split_words without explicit names: a named tag would fall back
// to the bare variable (PATH, PORT, USER) when the prefixed one is unset.
type Service struct {
	Environment string `split_words:"true" default:"development"`
	LogLevel    string `split_words:"true"`
	APIPort     string `split_words:"true" default:"4173"`
	OperatorKey string `split_words:"true"`
}

type Database struct {
	Path       string `split_words:"true" default:"./data/leads.sqlite"`
	LogQueries bool   `split_words:"true" default:"false"`
}

type SQS struct {
	Endpoint string `split_words:"true"`
	QueueURL string `split_words:"true"`
	Region   string `split_words:"true" default:"us-east-1"`
}

// Enabled reports whether lead activity should be published to SQS.
func (s SQS) Enabled() bool {
	return s.QueueURL != ""
}

type ClickHouse struct {
	Host               string `split_words:"true"`
	Port               string `split_words:"true" default:"9000"`
	Database           string `split_words:"true" default:"default"`
	User               string `split_words:"true" default:""`
	Password           string `split_words:"true" default:""`
	UseTLS             bool   `split_words:"true" default:"false"`
	MaxOpenConns       int    `split_words:"true" default:"5"`
	MaxIdleConns       int    `split_words:"true" default:"2"`
	ConnMaxLifetimeSec int    `split_words:"true" default:"3600"`
}

// Enabled reports whether the activity ledger is reachable for reporting.
func (c ClickHouse) Enabled() bool {
	return c.Host != ""
}

type Consumer struct {
	BatchSizeMax    int    `split_words:"true" default:"500"`
	BatchTimeoutSec int    `split_words:"true" default:"10"`
	HealthCheckPort string `split_words:"true" default:"8081"`
}

type SLA struct {
	OverdueAfterMin int `split_words:"true" default:"15"`
}

// OverdueAfter returns the unhandled-age threshold, zero when disabled.
func (s SLA) OverdueAfter() time.Duration {
	if s.OverdueAfterMin <= 0 {
		return 0
	}
	return time.Duration(s.OverdueAfterMin) * time.Minute
}

type Telephony struct {
	AuthToken         string `split_words:"true"`
	ValidateSignature bool   `split_words:"true" default:"true"`
	PublicBaseURL     string `split_words:"true"`
}

type DashboardSource struct {
	ConfigPath string `split_words:"true"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
