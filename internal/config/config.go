package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName          string
	AppEnv           string
	AppPort          string
	DatabaseURL      string
	RedisURL         string
	NATSURL          string
	JWTSecret        string
	JWTRefreshSecret string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	SendgridAPIKey   string
	EmailFromName    string
	EmailFromAddress string
	LoginRateLimit   int
	LoginRateWindow  time.Duration
	SSEKeepAlive     time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CONSULT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "ConsultLink API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("jwt.access_ttl", "15m")
	v.SetDefault("jwt.refresh_ttl", "168h")
	v.SetDefault("email.from_name", "ConsultLink")
	v.SetDefault("email.from_address", "no-reply@consultlink.app")
	v.SetDefault("login.rate_limit", 10)
	v.SetDefault("login.rate_window", "1m")
	v.SetDefault("sse.keepalive", "30s")

	accessTTL, err := time.ParseDuration(v.GetString("jwt.access_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid access token ttl: %w", err)
	}

	refreshTTL, err := time.ParseDuration(v.GetString("jwt.refresh_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid refresh token ttl: %w", err)
	}

	rateWindow, err := time.ParseDuration(v.GetString("login.rate_window"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid login rate window: %w", err)
	}

	keepAlive, err := time.ParseDuration(v.GetString("sse.keepalive"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid sse keepalive: %w", err)
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		DatabaseURL:      v.GetString("database.url"),
		RedisURL:         v.GetString("redis.url"),
		NATSURL:          v.GetString("nats.url"),
		JWTSecret:        v.GetString("jwt.secret"),
		JWTRefreshSecret: v.GetString("jwt.refresh_secret"),
		AccessTokenTTL:   accessTTL,
		RefreshTokenTTL:  refreshTTL,
		SendgridAPIKey:   v.GetString("sendgrid.api_key"),
		EmailFromName:    v.GetString("email.from_name"),
		EmailFromAddress: v.GetString("email.from_address"),
		LoginRateLimit:   v.GetInt("login.rate_limit"),
		LoginRateWindow:  rateWindow,
		SSEKeepAlive:     keepAlive,
	}

	if cfg.JWTSecret == "" || cfg.JWTRefreshSecret == "" {
		return Config{}, fmt.Errorf("jwt secrets must be provided")
	}

	if cfg.LoginRateLimit <= 0 {
		cfg.LoginRateLimit = 10
	}

	return cfg, nil
}
