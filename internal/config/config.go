package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// DefaultExtractionBaseURL is where the extraction service listens when nothing else is configured.
const DefaultExtractionBaseURL = "http://localhost:8000"

// Config holds runtime configuration values for the workbench and the CLI.
type Config struct {
	AppName           string        `validate:"required"`
	AppEnv            string        `validate:"required"`
	AppPort           string        `validate:"required"`
	LogLevel          string        `validate:"required,oneof=trace debug info warn error"`
	ExtractionBaseURL string        `validate:"required,http_url"`
	UploadAccept      []string      `validate:"min=1,dive,startswith=."`
	UploadMaxMB       int           `validate:"gt=0"`
	SessionTTL        time.Duration `validate:"gt=0"`
	SubmitRateLimit   int           `validate:"gt=0"`
	NATSURL           string        `validate:"omitempty,url"`
	NATSSubject       string        `validate:"required"`
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// UploadMaxBytes is the request body limit applied to document uploads.
func (c Config) UploadMaxBytes() int {
	return c.UploadMaxMB * 1024 * 1024
}

// ZerologLevel maps the configured level name onto zerolog.
func (c Config) ZerologLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// AcceptsExtension reports whether ext is one of the configured document extensions.
func (c Config) AcceptsExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimSpace(ext))
	for _, allowed := range c.UploadAccept {
		if allowed == ext {
			return true
		}
	}
	return false
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("TESTGEN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Test Case Workbench")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "3000")
	v.SetDefault("log.level", "info")
	v.SetDefault("extraction.base_url", DefaultExtractionBaseURL)
	v.SetDefault("upload.accept", ".pdf")
	v.SetDefault("upload.max_mb", 20)
	v.SetDefault("session.ttl", "30m")
	v.SetDefault("submit.rate_limit", 10)
	v.SetDefault("nats.subject", "testgen.submissions.resolved")

	ttl, err := time.ParseDuration(v.GetString("session.ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid session ttl: %w", err)
	}

	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            v.GetString("app.env"),
		AppPort:           v.GetString("app.port"),
		LogLevel:          strings.ToLower(v.GetString("log.level")),
		ExtractionBaseURL: strings.TrimSpace(v.GetString("extraction.base_url")),
		UploadAccept:      parseExtensions(v.GetString("upload.accept")),
		UploadMaxMB:       v.GetInt("upload.max_mb"),
		SessionTTL:        ttl,
		SubmitRateLimit:   v.GetInt("submit.rate_limit"),
		NATSURL:           strings.TrimSpace(v.GetString("nats.url")),
		NATSSubject:       v.GetString("nats.subject"),
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func parseExtensions(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		ext := strings.ToLower(strings.TrimSpace(part))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		result = append(result, ext)
	}
	return result
}
