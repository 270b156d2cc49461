package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.validateOIDC(); err != nil {
		return fmt.Errorf("oidc config: %w", err)
	}

	if err := c.validateSession(); err != nil {
		return fmt.Errorf("session config: %w", err)
	}

	if err := c.validateTokenStore(); err != nil {
		return fmt.Errorf("token store config: %w", err)
	}

	if err := c.validateLogging(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.Server.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}

	if err := validateAbsoluteURL(c.Server.BaseURL); err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}

	return nil
}

func (c *Config) validateOIDC() error {
	if c.OIDC.Issuer == "" {
		return fmt.Errorf("issuer is required")
	}

	if err := validateAbsoluteURL(c.OIDC.Issuer); err != nil {
		return fmt.Errorf("invalid issuer URL: %w", err)
	}

	if c.OIDC.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}

	if !slices.Contains(c.OIDC.Scopes, "openid") {
		return fmt.Errorf("'openid' scope is required")
	}

	if c.OIDC.DiscoveryTimeout < 0 {
		return fmt.Errorf("discovery_timeout must be positive")
	}

	return nil
}

func (c *Config) validateSession() error {
	if c.Session.Secret == "" {
		return fmt.Errorf("secret is required")
	}

	if len(c.Session.Secret) < 16 {
		return fmt.Errorf("secret must be at least 16 characters")
	}

	sameSite := strings.ToLower(c.Session.CookieSameSite)
	if sameSite != "lax" && sameSite != "strict" && sameSite != "none" {
		return fmt.Errorf("invalid cookie_same_site: %s (must be lax, strict, or none)", c.Session.CookieSameSite)
	}

	if c.Session.FlowTTL < 30*time.Second {
		return fmt.Errorf("flow_ttl must be at least 30 seconds")
	}

	if c.Session.SessionTTL < 30*time.Second {
		return fmt.Errorf("session_ttl must be at least 30 seconds")
	}

	return nil
}

func (c *Config) validateTokenStore() error {
	if c.TokenStore.GracePeriod < time.Minute {
		return fmt.Errorf("grace_period must be at least 1 minute")
	}

	switch c.TokenStore.Type {
	case "memory":
		return nil

	case "redis":
		if c.TokenStore.Redis == nil {
			return fmt.Errorf("redis config is required when type is redis")
		}
		if c.TokenStore.Redis.Address == "" {
			return fmt.Errorf("redis address is required")
		}
		return nil

	case "dynamodb":
		if c.TokenStore.DynamoDB == nil {
			return fmt.Errorf("dynamodb config is required when type is dynamodb")
		}
		if c.TokenStore.DynamoDB.Region == "" {
			return fmt.Errorf("dynamodb region is required")
		}
		if c.TokenStore.DynamoDB.TableName == "" {
			return fmt.Errorf("dynamodb table_name is required")
		}
		if c.TokenStore.DynamoDB.Endpoint != "" {
			if err := validateAbsoluteURL(c.TokenStore.DynamoDB.Endpoint); err != nil {
				return fmt.Errorf("invalid dynamodb endpoint: %w", err)
			}
		}
		return nil

	default:
		return fmt.Errorf("invalid type: %s (must be memory, redis, or dynamodb)", c.TokenStore.Type)
	}
}

func (c *Config) validateLogging() error {
	level := strings.ToLower(c.Logging.Level)
	if level != "debug" && level != "info" && level != "warn" && level != "error" {
		return fmt.Errorf("invalid level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	format := strings.ToLower(c.Logging.Format)
	if format != "json" && format != "text" {
		return fmt.Errorf("invalid format: %s (must be json or text)", c.Logging.Format)
	}

	output := strings.ToLower(c.Logging.Output)
	if output != "stdout" && output != "stderr" {
		return fmt.Errorf("invalid output: %s (must be stdout or stderr)", c.Logging.Output)
	}

	return nil
}

func validateAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
