package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
		Mode string `yaml:"mode"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL         string `yaml:"ttl"`
		CatalogFile string `yaml:"catalog_file"`
	} `yaml:"quiz"`
	Session struct {
		TTL    string `yaml:"ttl"`
		Cookie string `yaml:"cookie"`
	} `yaml:"session"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
}

const (
	DefaultQuizTTL     = 10 * time.Minute
	DefaultSessionTTL  = 72 * time.Hour
	DefaultCookieName  = "quiz_session"
	DefaultPort        = "8080"
	jwtSecretEnv       = "QUIZ_JWT_SECRET"
	postgresURLEnv     = "QUIZ_POSTGRES_URL"
	defaultLogLevelStr = "info"
)

// Load reads YAML config from path. Secrets may be overridden by environment.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if v := os.Getenv(jwtSecretEnv); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv(postgresURLEnv); v != "" {
		c.Postgres.URL = v
	}
	if c.Session.Cookie == "" {
		c.Session.Cookie = DefaultCookieName
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevelStr
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
