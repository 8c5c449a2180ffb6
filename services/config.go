package services

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server       ServerConfig      `yaml:"server"`
	Limits       LimitsConfig      `yaml:"limits"`
	Compression  CompressionConfig `yaml:"compression"`
	Metadata     MetadataLimits    `yaml:"metadata"`
	Thumbnail    ThumbnailConfig   `yaml:"thumbnail"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting"`
	Database     DatabaseConfig    `yaml:"database"`
}

// DatabaseConfig selects the postgres repository. An empty URL keeps the
// queue in memory.
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	ConnectAttempts int    `yaml:"connect_attempts"`
}

type ServerConfig struct {
	Port      int `yaml:"port"`
	BodyLimit int `yaml:"body_limit"`
}

type LimitsConfig struct {
	MaxFileSize  int64 `yaml:"max_file_size"`
	MaxBatchSize int   `yaml:"max_batch_size"`
}

type CompressionConfig struct {
	JPEGQuality int           `yaml:"jpeg_quality"`
	WebPQuality int           `yaml:"webp_quality"`
	PNGLevel    int           `yaml:"png_level"`
	TinyPNG     TinyPNGConfig `yaml:"tinypng"`
}

type TinyPNGConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// MetadataLimits bounds the length of each sanitized text field, in characters.
type MetadataLimits struct {
	TitleMax       int `yaml:"title_max"`
	DescriptionMax int `yaml:"description_max"`
	CopyrightMax   int `yaml:"copyright_max"`
	AuthorMax      int `yaml:"author_max"`
}

type ThumbnailConfig struct {
	Size    int `yaml:"size"`
	Quality int `yaml:"quality"`
}

// DefaultMetadataLimits are the product limits for text fields.
var DefaultMetadataLimits = MetadataLimits{
	TitleMax:       100,
	DescriptionMax: 500,
	CopyrightMax:   200,
	AuthorMax:      150,
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:      8080,
			BodyLimit: 6 * 1024 * 1024 * 20,
		},
		Limits: LimitsConfig{
			MaxFileSize:  5 * 1024 * 1024,
			MaxBatchSize: 20,
		},
		Compression: CompressionConfig{
			JPEGQuality: 75,
			WebPQuality: 75,
			PNGLevel:    2,
			TinyPNG: TinyPNGConfig{
				Timeout: 30 * time.Second,
			},
		},
		Metadata: DefaultMetadataLimits,
		Thumbnail: ThumbnailConfig{
			Size:    96,
			Quality: 80,
		},
		RateLimiting: RateLimitConfig{
			MaxEntries:      1000,
			CleanupInterval: 1 * time.Minute,
			EntryTTL:        30 * time.Minute,
			Capacity:        60,
			Window:          1 * time.Minute,
		},
		Database: DatabaseConfig{
			ConnectAttempts: 30,
		},
	}
}

// LoadConfig reads path over the defaults. A missing file yields the defaults.
// Environment variables override file values.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if v := os.Getenv("TINYPNG_BASE_URL"); v != "" {
		config.Compression.TinyPNG.BaseURL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		config.Database.URL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		config.Server.Port = port
	}
	return config, nil
}
