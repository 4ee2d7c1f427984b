package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Security SecurityConfig `json:"security"`
	Logging  LoggingConfig  `json:"logging"`
	Signing  SigningConfig  `json:"signing"`
	Session  SessionConfig  `json:"session"`
	Archive  ArchiveConfig  `json:"archive"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string   `json:"host"`
	Port         int      `json:"port"`
	ReadTimeout  Duration `json:"read_timeout"`
	WriteTimeout Duration `json:"write_timeout"`
	IdleTimeout  Duration `json:"idle_timeout"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret string   `json:"jwt_secret"`
	TokenTTL  Duration `json:"token_ttl"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// SigningConfig tunes previews and the signed output.
type SigningConfig struct {
	RenderScale    float64  `json:"render_scale"`
	PreviewScale   float64  `json:"preview_scale"`
	BoundsPolicy   string   `json:"bounds_policy"`
	MaxUploadBytes int64    `json:"max_upload_bytes"`
	PreviewTTL     Duration `json:"preview_ttl"`
}

// SessionConfig controls session lifetime and the signature pad.
type SessionConfig struct {
	TTL           Duration `json:"ttl"`
	SweepSchedule string   `json:"sweep_schedule"`
	PadWidth      float64  `json:"pad_width"`
	PadHeight     float64  `json:"pad_height"`
	BrushWidth    float64  `json:"brush_width"`
}

// ArchiveConfig enables copying signed documents to S3. Without static keys
// the AWS default credential chain is used.
type ArchiveConfig struct {
	Enabled         bool     `json:"enabled"`
	Bucket          string   `json:"bucket"`
	Prefix          string   `json:"prefix"`
	Region          string   `json:"region"`
	Endpoint        string   `json:"endpoint"`
	UsePathStyle    bool     `json:"use_path_style"`
	AccessKeyID     string   `json:"access_key_id"`
	SecretAccessKey string   `json:"secret_access_key"`
	LinkTTL         Duration `json:"link_ttl"`
}

// Duration reads either a Go duration string ("30m") or seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value * float64(time.Second)))
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  Duration(30 * time.Second),
			WriteTimeout: Duration(60 * time.Second),
			IdleTimeout:  Duration(120 * time.Second),
		},
		Security: SecurityConfig{
			TokenTTL: Duration(2 * time.Hour),
		},
		Logging: LoggingConfig{Level: "development"},
		Signing: SigningConfig{
			RenderScale:    3,
			PreviewScale:   1.5,
			BoundsPolicy:   "clamp",
			MaxUploadBytes: 50 << 20,
			PreviewTTL:     Duration(5 * time.Minute),
		},
		Session: SessionConfig{
			TTL:           Duration(30 * time.Minute),
			SweepSchedule: "@every 1m",
			PadWidth:      400,
			PadHeight:     200,
			BrushWidth:    2,
		},
		Archive: ArchiveConfig{
			Prefix:  "signed",
			LinkTTL: Duration(15 * time.Minute),
		},
	}
}

// LoadConfig loads configuration from .env, the config file and environment
// variables, in that order of increasing precedence. A missing file is not
// an error.
func LoadConfig(configPath string) (*Config, error) {
	// .env only fills variables that are not already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := overrideWithEnv(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func overrideWithEnv(config *Config) error {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid SERVER_PORT %q: %w", port, err)
		}
		config.Server.Port = p
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Security.JWTSecret = secret
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if scale := os.Getenv("SIGNING_RENDER_SCALE"); scale != "" {
		s, err := strconv.ParseFloat(scale, 64)
		if err != nil {
			return fmt.Errorf("invalid SIGNING_RENDER_SCALE %q: %w", scale, err)
		}
		config.Signing.RenderScale = s
	}
	if policy := os.Getenv("SIGNING_BOUNDS_POLICY"); policy != "" {
		config.Signing.BoundsPolicy = policy
	}
	if ttl := os.Getenv("SESSION_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return fmt.Errorf("invalid SESSION_TTL %q: %w", ttl, err)
		}
		config.Session.TTL = Duration(d)
	}
	if bucket := os.Getenv("ARCHIVE_BUCKET"); bucket != "" {
		config.Archive.Enabled = true
		config.Archive.Bucket = bucket
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		config.Archive.Region = region
	}
	if endpoint := os.Getenv("ARCHIVE_ENDPOINT"); endpoint != "" {
		config.Archive.Endpoint = endpoint
		config.Archive.UsePathStyle = true
	}
	if key := os.Getenv("ARCHIVE_ACCESS_KEY_ID"); key != "" {
		config.Archive.AccessKeyID = key
	}
	if secret := os.Getenv("ARCHIVE_SECRET_ACCESS_KEY"); secret != "" {
		config.Archive.SecretAccessKey = secret
	}
	return nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if len(c.Security.JWTSecret) < 16 {
		return errors.New("security.jwt_secret (JWT_SECRET) must be at least 16 characters")
	}
	switch c.Signing.BoundsPolicy {
	case "allow", "clamp", "reject":
	default:
		return fmt.Errorf("signing.bounds_policy must be allow, clamp or reject, got %q", c.Signing.BoundsPolicy)
	}
	if c.Signing.RenderScale <= 0 {
		return fmt.Errorf("signing.render_scale must be positive, got %g", c.Signing.RenderScale)
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return errors.New("archive.bucket is required when archiving is enabled")
	}
	if (c.Archive.AccessKeyID == "") != (c.Archive.SecretAccessKey == "") {
		return errors.New("archive.access_key_id and archive.secret_access_key must be set together")
	}
	return nil
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
