package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	OIDC       OIDCConfig       `yaml:"oidc"`
	Session    SessionConfig    `yaml:"session"`
	TokenStore TokenStoreConfig `yaml:"token_store"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	BaseURL     string `yaml:"base_url"`
	Environment string `yaml:"environment"`
}

type OIDCConfig struct {
	Issuer            string        `yaml:"issuer"`
	ClientID          string        `yaml:"client_id"`
	ClientSecret      string        `yaml:"client_secret"`
	Scopes            []string      `yaml:"scopes"`
	RequiredRealmRole string        `yaml:"required_realm_role"`
	DiscoveryTimeout  time.Duration `yaml:"discovery_timeout"`
}

type SessionConfig struct {
	Secret         string        `yaml:"secret"`
	CookieName     string        `yaml:"cookie_name"`
	CookieDomain   string        `yaml:"cookie_domain"`
	CookieSecure   *bool         `yaml:"cookie_secure"`
	CookieSameSite string        `yaml:"cookie_same_site"`
	FlowTTL        time.Duration `yaml:"flow_ttl"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
}

type TokenStoreConfig struct {
	Type        string          `yaml:"type"`
	GracePeriod time.Duration   `yaml:"grace_period"`
	Redis       *RedisConfig    `yaml:"redis,omitempty"`
	DynamoDB    *DynamoDBConfig `yaml:"dynamodb,omitempty"`
}

type RedisConfig struct {
	Address    string `yaml:"address"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	PoolSize   int    `yaml:"pool_size"`
	MaxRetries int    `yaml:"max_retries"`
	KeyPrefix  string `yaml:"key_prefix"`
}

type DynamoDBConfig struct {
	Region    string `yaml:"region"`
	TableName string `yaml:"table_name"`
	Endpoint  string `yaml:"endpoint,omitempty"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// IsProduction reports whether cookies must be marked Secure by default.
func (s ServerConfig) IsProduction() bool {
	return strings.EqualFold(s.Environment, "production")
}

// Load reads the YAML file at path, applies environment overrides and defaults.
// An empty path configures the process from the environment alone.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load settings from environment: %w", err)
	}

	if err := cfg.setDefaults(); err != nil {
		return nil, fmt.Errorf("failed to set defaults: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() error {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Environment == "" {
		c.Server.Environment = "production"
	}

	if len(c.OIDC.Scopes) == 0 {
		c.OIDC.Scopes = []string{"openid", "email", "profile"}
	}
	if c.OIDC.DiscoveryTimeout == 0 {
		c.OIDC.DiscoveryTimeout = 10 * time.Second
	}

	if c.Session.CookieName == "" {
		c.Session.CookieName = "__session"
	}
	if c.Session.CookieSameSite == "" {
		c.Session.CookieSameSite = "lax"
	}
	if c.Session.CookieSecure == nil {
		secure := c.Server.IsProduction()
		c.Session.CookieSecure = &secure
	}
	if c.Session.FlowTTL == 0 {
		c.Session.FlowTTL = 5 * time.Minute
	}
	if c.Session.SessionTTL == 0 {
		c.Session.SessionTTL = 2 * time.Minute
	}

	if c.TokenStore.Type == "" {
		c.TokenStore.Type = "memory"
	}
	if c.TokenStore.GracePeriod == 0 {
		c.TokenStore.GracePeriod = 30 * time.Minute
	}

	if c.TokenStore.Type == "redis" && c.TokenStore.Redis != nil {
		if c.TokenStore.Redis.PoolSize == 0 {
			c.TokenStore.Redis.PoolSize = 10
		}
		if c.TokenStore.Redis.MaxRetries == 0 {
			c.TokenStore.Redis.MaxRetries = 3
		}
		if c.TokenStore.Redis.KeyPrefix == "" {
			c.TokenStore.Redis.KeyPrefix = "notes-gate"
		}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	return nil
}

func (c *Config) loadFromEnv() error {
	setString(&c.Server.BaseURL, "BASE_URL")
	setString(&c.Server.Environment, "APP_ENV")

	setString(&c.OIDC.Issuer, "OIDC_ISSUER_URL")
	setString(&c.OIDC.ClientID, "OIDC_CLIENT_ID")
	setString(&c.OIDC.ClientSecret, "OIDC_CLIENT_SECRET")
	setString(&c.OIDC.RequiredRealmRole, "OIDC_REQUIRED_REALM_ROLE")

	setString(&c.Session.Secret, "SESSION_SECRET")

	setString(&c.TokenStore.Type, "TOKEN_STORE_TYPE")

	if addr := os.Getenv("REDIS_ADDRESS"); addr != "" {
		if c.TokenStore.Redis == nil {
			c.TokenStore.Redis = &RedisConfig{}
		}
		c.TokenStore.Redis.Address = addr
	}
	if c.TokenStore.Redis != nil {
		setString(&c.TokenStore.Redis.Password, "REDIS_PASSWORD")
	}

	region, table, endpoint := os.Getenv("AWS_REGION"), os.Getenv("SESSION_TABLE_NAME"), os.Getenv("DYNAMODB_ENDPOINT")
	if region != "" || table != "" || endpoint != "" {
		if c.TokenStore.DynamoDB == nil {
			c.TokenStore.DynamoDB = &DynamoDBConfig{}
		}
		setString(&c.TokenStore.DynamoDB.Region, "AWS_REGION")
		setString(&c.TokenStore.DynamoDB.TableName, "SESSION_TABLE_NAME")
		setString(&c.TokenStore.DynamoDB.Endpoint, "DYNAMODB_ENDPOINT")
	}

	return nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}
