// Package config loads run configuration from a YAML file, an optional .env
// file and the environment, in increasing order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/mail"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shpitdev/ar-inbox-triage/internal/logging"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModel          = "gemini-2.5-flash"
	DefaultCompanyAddress = "info@transformance.com"
	DefaultWorkers        = 5
	DefaultMaxRetries     = 3
	DefaultRequestTimeout = 60 * time.Second
	DefaultExchange       = "ar.events"
)

var ErrMissingAPIKey = errors.New("GEMINI_API_KEY is required")

type Gemini struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float32 `yaml:"temperature"`
}

type Pipeline struct {
	Workers        int           `yaml:"workers"`
	MaxRetries     int           `yaml:"max_retries"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
}

type AMQP struct {
	// URL enables AMQP filing when set; otherwise handlers only log.
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type Config struct {
	CompanyAddress string         `yaml:"company_address"`
	Gemini         Gemini         `yaml:"gemini"`
	Pipeline       Pipeline       `yaml:"pipeline"`
	AMQP           AMQP           `yaml:"amqp"`
	Log            logging.Config `yaml:"log"`
	MetricsAddr    string         `yaml:"metrics_addr"`
}

func Default() Config {
	return Config{
		CompanyAddress: DefaultCompanyAddress,
		Gemini:         Gemini{Model: DefaultModel},
		Pipeline: Pipeline{
			Workers:        DefaultWorkers,
			MaxRetries:     DefaultMaxRetries,
			RequestTimeout: DefaultRequestTimeout,
		},
		AMQP: AMQP{Exchange: DefaultExchange},
		Log:  logging.Config{Level: "info", Format: "json"},
	}
}

// Load builds a Config from defaults, then path (if non-empty), then envFile
// (missing files are ignored), then the process environment. It does not
// validate; call Validate once flags have been applied.
func Load(path, envFile string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := decodeYAML(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if strings.TrimSpace(envFile) != "" {
		// Variables already set in the environment win over the file.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config) error {
	envString("GEMINI_API_KEY", &cfg.Gemini.APIKey)
	envString("GEMINI_MODEL", &cfg.Gemini.Model)
	envString("GEMINI_BASE_URL", &cfg.Gemini.BaseURL)
	envString("COMPANY_ADDRESS", &cfg.CompanyAddress)
	envString("AMQP_URL", &cfg.AMQP.URL)
	envString("AMQP_EXCHANGE", &cfg.AMQP.Exchange)
	envString("LOG_LEVEL", &cfg.Log.Level)
	envString("LOG_FORMAT", &cfg.Log.Format)
	envString("LOG_FILE", &cfg.Log.File)
	envString("METRICS_ADDR", &cfg.MetricsAddr)

	var err error
	if cfg.Pipeline.Workers, err = envInt("WORKERS", cfg.Pipeline.Workers); err != nil {
		return err
	}
	if cfg.Pipeline.MaxRetries, err = envInt("MAX_RETRIES", cfg.Pipeline.MaxRetries); err != nil {
		return err
	}
	if cfg.Pipeline.RequestTimeout, err = envDuration("REQUEST_TIMEOUT", cfg.Pipeline.RequestTimeout); err != nil {
		return err
	}
	if cfg.Pipeline.RateLimitRPS, err = envFloat("RATE_LIMIT_RPS", cfg.Pipeline.RateLimitRPS); err != nil {
		return err
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Gemini.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if strings.TrimSpace(c.Gemini.Model) == "" {
		return errors.New("gemini model is required")
	}
	if _, err := mail.ParseAddress(c.CompanyAddress); err != nil {
		return fmt.Errorf("invalid company address %q: %w", c.CompanyAddress, err)
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("workers must be >= 1 (got %d)", c.Pipeline.Workers)
	}
	if c.Pipeline.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0 (got %d)", c.Pipeline.MaxRetries)
	}
	if c.Pipeline.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be > 0 (got %s)", c.Pipeline.RequestTimeout)
	}
	if c.Pipeline.RateLimitRPS < 0 {
		return fmt.Errorf("rate limit must be >= 0 (got %g)", c.Pipeline.RateLimitRPS)
	}
	if c.AMQP.URL != "" && strings.TrimSpace(c.AMQP.Exchange) == "" {
		return errors.New("amqp exchange is required when amqp url is set")
	}
	return nil
}

func envString(varName string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(varName)); v != "" {
		*dst = v
	}
}

func envInt(varName string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envFloat(varName string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envDuration(varName string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}
