package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Core
	DatabaseURL      string `env:"DATABASE_URL,required"`
	DatabaseMaxConns int32  `env:"DATABASE_MAX_CONNS" envDefault:"16"`
	DatabaseMinConns int32  `env:"DATABASE_MIN_CONNS" envDefault:"2"`
	ServiceURL       string `env:"SERVICE_API_URL" envDefault:"https://api.emkai.ru"`
	AppAPIKey        string `env:"APP_API_KEY"`
	DifyAPIKey       string `env:"DIFY_API_KEY"`

	// Server
	Port int `env:"PORT" envDefault:"8080"`

	// Quotas
	DailyMessageLimit        int `env:"DAILY_MESSAGE_LIMIT" envDefault:"50"`
	PremiumDailyMessageLimit int `env:"PREMIUM_DAILY_MESSAGE_LIMIT" envDefault:"500"`
	DailyFileUploadLimit     int `env:"DAILY_FILE_UPLOAD_LIMIT" envDefault:"5"`

	// Object storage (S3-compatible)
	S3Endpoint       string `env:"S3_ENDPOINT,required"`
	S3AccessKey      string `env:"S3_ACCESS_KEY,required"`
	S3SecretKey      string `env:"S3_SECRET_KEY,required"`
	S3UseSSL         bool   `env:"S3_USE_SSL" envDefault:"true"`
	AttachmentBucket string `env:"ATTACHMENT_BUCKET" envDefault:"chat-attachments"`
	// Buckets listed here serve attachments over stable public URLs
	// instead of signed ones.
	PublicBuckets []string `env:"PUBLIC_BUCKETS" envSeparator:","`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// UpstreamKey returns the credential for the upstream conversation API.
// APP_API_KEY takes precedence over the legacy DIFY_API_KEY name.
func (c *Config) UpstreamKey() string {
	if c.AppAPIKey != "" {
		return c.AppAPIKey
	}
	return c.DifyAPIKey
}

func (c *Config) IsPublicBucket(bucket string) bool {
	for _, b := range c.PublicBuckets {
		if b == bucket {
			return true
		}
	}
	return false
}
