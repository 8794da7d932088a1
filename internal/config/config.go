package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is the full process configuration. Defaults suit a single
// classroom host; everything is overridable through CLASSD_* environment
// variables or an optional config file.
type Config struct {
	Env       string
	HTTP      HTTPConfig
	WebSocket WebSocketConfig
	Catalog   CatalogConfig
	Auth      AuthConfig
	Log       LogConfig
}

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type WebSocketConfig struct {
	PingInterval     time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	SendBuffer       int
	HandshakeTimeout time.Duration
}

type CatalogConfig struct {
	Path string
}

type AuthConfig struct {
	JWTSecret string
}

type LogConfig struct {
	Level  string
	Format string
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Env: EnvDevelopment,
		HTTP: HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		WebSocket: WebSocketConfig{
			PingInterval:     30 * time.Second,
			ReadTimeout:      60 * time.Second,
			WriteTimeout:     5 * time.Second,
			SendBuffer:       100,
			HandshakeTimeout: 10 * time.Second,
		},
		Catalog: CatalogConfig{
			Path: "./classd.db",
		},
		Auth: AuthConfig{
			JWTSecret: "",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration with precedence env > file > defaults:
// CLASSD_* environment variables win over the optional config file,
// which wins over the built-in defaults. A missing .env file is not an
// error.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	cfg := Default()

	v.SetDefault("env", cfg.Env)
	v.SetDefault("http.host", cfg.HTTP.Host)
	v.SetDefault("http.port", cfg.HTTP.Port)
	v.SetDefault("http.read_timeout", cfg.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", cfg.HTTP.WriteTimeout)
	v.SetDefault("websocket.ping_interval", cfg.WebSocket.PingInterval)
	v.SetDefault("websocket.read_timeout", cfg.WebSocket.ReadTimeout)
	v.SetDefault("websocket.write_timeout", cfg.WebSocket.WriteTimeout)
	v.SetDefault("websocket.send_buffer", cfg.WebSocket.SendBuffer)
	v.SetDefault("websocket.handshake_timeout", cfg.WebSocket.HandshakeTimeout)
	v.SetDefault("catalog.path", cfg.Catalog.Path)
	v.SetDefault("auth.jwt_secret", cfg.Auth.JWTSecret)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)

	v.SetEnvPrefix("CLASSD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg.Env = v.GetString("env")
	cfg.HTTP.Host = v.GetString("http.host")
	cfg.HTTP.Port = v.GetInt("http.port")
	cfg.HTTP.ReadTimeout = v.GetDuration("http.read_timeout")
	cfg.HTTP.WriteTimeout = v.GetDuration("http.write_timeout")
	cfg.WebSocket.PingInterval = v.GetDuration("websocket.ping_interval")
	cfg.WebSocket.ReadTimeout = v.GetDuration("websocket.read_timeout")
	cfg.WebSocket.WriteTimeout = v.GetDuration("websocket.write_timeout")
	cfg.WebSocket.SendBuffer = v.GetInt("websocket.send_buffer")
	cfg.WebSocket.HandshakeTimeout = v.GetDuration("websocket.handshake_timeout")
	cfg.Catalog.Path = v.GetString("catalog.path")
	cfg.Auth.JWTSecret = v.GetString("auth.jwt_secret")
	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.Format = v.GetString("log.format")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("WebSocket read timeout must exceed the ping interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.SendBuffer <= 0 {
		return fmt.Errorf("WebSocket send buffer must be positive")
	}
	if c.WebSocket.HandshakeTimeout <= 0 {
		return fmt.Errorf("WebSocket handshake timeout must be positive")
	}
	if c.Catalog.Path == "" {
		return fmt.Errorf("catalog path cannot be empty")
	}
	if c.Env == EnvProduction && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required in production")
	}
	return nil
}
