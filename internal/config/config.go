// Package config は環境変数からのアプリケーション設定読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// OIDC (外部IdP)
	OIDCIssuer   string
	OIDCJWKSURL  string
	OIDCAudience string
	// ローカル開発用。本番では必ずfalseにすること。
	InsecureSkipTokenExpiry bool

	// JWKS
	JWKSCacheTTL     time.Duration
	JWKSFetchTimeout time.Duration

	// Rate Limit（req/min/user）
	RateLimitGeneral    int
	RateLimitSettlement int

	// Purge
	PurgeRetentionDays int
	PurgeInterval      time.Duration

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.OIDCIssuer = os.Getenv("OIDC_ISSUER")
	if cfg.OIDCIssuer == "" {
		missing = append(missing, "OIDC_ISSUER")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.OIDCJWKSURL = getEnvString("OIDC_JWKS_URL",
		strings.TrimSuffix(cfg.OIDCIssuer, "/")+"/.well-known/jwks.json")
	cfg.OIDCAudience = getEnvString("OIDC_AUDIENCE", "")
	cfg.InsecureSkipTokenExpiry = getEnvBool("INSECURE_SKIP_TOKEN_EXPIRY", false)
	cfg.JWKSCacheTTL = getEnvDuration("JWKS_CACHE_TTL", 15*time.Minute)
	cfg.JWKSFetchTimeout = getEnvDuration("JWKS_FETCH_TIMEOUT", 10*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSettlement = getEnvInt("RATE_LIMIT_SETTLEMENT", 10)
	cfg.PurgeRetentionDays = getEnvInt("PURGE_RETENTION_DAYS", 30)
	cfg.PurgeInterval = getEnvDuration("PURGE_INTERVAL", 24*time.Hour)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
