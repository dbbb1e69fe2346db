// Package config читает настройки сервиса из TOML-файла и окружения.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultServerAddress   = "0.0.0.0:8080"
	defaultDedupeWindow    = 10 * time.Second
	defaultReplayCacheSize = 1024
	defaultShutdownTimeout = 10 * time.Second
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
	Auction  AuctionConfig  `toml:"auction"`
}

type ServerConfig struct {
	Address         string   `toml:"address"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Conn         string `toml:"conn"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type AuctionConfig struct {
	// DedupeWindow: повтор той же ставки в этом окне поглощается
	DedupeWindow    Duration `toml:"dedupe_window"`
	ReplayCacheSize int      `toml:"replay_cache_size"`
}

// Duration читается из строки вида "10s"
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig читает файл path (может отсутствовать), затем применяет
// POSTGRES_CONN и SERVER_ADDRESS из окружения.
func LoadConfig(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		file, err := os.Open(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to open config: %w", err)
		default:
			defer file.Close()
			if err := toml.NewDecoder(file).DisallowUnknownFields().Decode(cfg); err != nil {
				return nil, fmt.Errorf("failed to decode config: %w", err)
			}
		}
	}

	if v := os.Getenv("POSTGRES_CONN"); v != "" {
		cfg.Database.Conn = v
	}
	if v := os.Getenv("SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         defaultServerAddress,
			ShutdownTimeout: Duration{defaultShutdownTimeout},
		},
		Log: LogConfig{
			Level:  slog.LevelInfo,
			Format: "text",
		},
		Auction: AuctionConfig{
			DedupeWindow:    Duration{defaultDedupeWindow},
			ReplayCacheSize: defaultReplayCacheSize,
		},
	}
}

func (c *Config) validate() error {
	if c.Database.Conn == "" {
		return errors.New("POSTGRES_CONN env variable is not set")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.Auction.DedupeWindow.Duration <= 0 {
		return fmt.Errorf("dedupe_window must be positive, got %s", c.Auction.DedupeWindow)
	}
	if c.Auction.ReplayCacheSize <= 0 {
		return fmt.Errorf("replay_cache_size must be positive, got %d", c.Auction.ReplayCacheSize)
	}
	return nil
}

// NewLogger строит slog.Logger по секции [log]
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level, AddSource: c.AddSource}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
