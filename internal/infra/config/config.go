package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServerURL      string        `yaml:"server_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	PollInterval   time.Duration `yaml:"poll_interval"`

	MaxUploadBytesMb int64   `yaml:"max_upload_mb"`
	RateLimit        float64 `yaml:"rate_limit"`
	LogLevel         string  `yaml:"log_level"`

	// SessionTTL bounds how long projections written to Redis survive.
	SessionTTL time.Duration `yaml:"session_ttl"`

	Artifacts Artifacts `yaml:"artifacts"`

	Redis Redis `yaml:"redis"`
	MinIO MinIO `yaml:"minio"`
	NATS  NATS  `yaml:"nats"`
}

type Artifacts struct {
	BaseDir string        `yaml:"base_dir"`
	TTL     time.Duration `yaml:"ttl"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

func (r Redis) Enabled() bool { return r.Addr != "" }

type MinIO struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl"`
	Bucket          string `yaml:"bucket"`
}

func (m MinIO) Enabled() bool { return m.Endpoint != "" }

type NATS struct {
	URL           string `yaml:"url"`
	Name          string `yaml:"name"`
	MaxReconnects int    `yaml:"max_reconnects"`
	Stream        string `yaml:"stream"`
	Subject       string `yaml:"subject"`
}

func (n NATS) Enabled() bool { return n.URL != "" }

func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read file %q: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal yaml: %w", err)
	}

	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("server_url is empty")
	}
	u, err := url.Parse(cfg.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("server_url %q is not an absolute url", cfg.ServerURL)
	}
	if cfg.RequestTimeout < 0 {
		return nil, fmt.Errorf("request_timeout must not be negative, got %s", cfg.RequestTimeout)
	}
	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("rate_limit must not be negative, got %v", cfg.RateLimit)
	}
	if cfg.MinIO.Enabled() && cfg.MinIO.Bucket == "" {
		return nil, fmt.Errorf("minio.bucket is empty")
	}
	if cfg.NATS.Enabled() && cfg.NATS.Subject == "" {
		return nil, fmt.Errorf("nats.subject is empty")
	}

	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxUploadBytesMb <= 0 {
		cfg.MaxUploadBytesMb = 50
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}
	if cfg.Artifacts.BaseDir == "" {
		cfg.Artifacts.BaseDir = "./artifacts"
	}
	if cfg.Artifacts.TTL <= 0 {
		cfg.Artifacts.TTL = 7 * 24 * time.Hour
	}
	if cfg.NATS.Stream == "" {
		cfg.NATS.Stream = "JOB_EVENTS"
	}

	return &cfg, nil
}

func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadBytesMb << 20
}
