package config

import (
	"fmt"
	"net/url"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// DefaultEndpoint is the TrainingPeaks API host used when none is configured.
const DefaultEndpoint = "https://tpapi.trainingpeaks.com"

// Config represents the application configuration
type Config struct {
	Source       Source   `yaml:"source"`
	Upload       Upload   `yaml:"upload"`
	Pipeline     Pipeline `yaml:"pipeline"`
	LogLevel     string   `yaml:"log_level"`
	ShowProgress bool     `yaml:"show_progress"`
	MetricsAddr  string   `yaml:"metrics_addr"`
}

// Source describes where FIT files are read from
type Source struct {
	Dir string `yaml:"dir"`
}

// Upload represents the remote workout upload endpoint configuration
type Upload struct {
	Endpoint  string        `yaml:"endpoint"`
	Token     string        `yaml:"token"`
	AthleteID uint64        `yaml:"athlete_id"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Pipeline represents the classify/upload pipeline configuration
type Pipeline struct {
	Parallelism   int    `yaml:"parallelism"`
	DecodeWorkers int    `yaml:"decode_workers"`
	Extension     string `yaml:"extension"`
}

// Default returns the configuration used before any file or flag is applied.
func Default() *Config {
	return &Config{
		LogLevel:     "info",
		ShowProgress: true,
		Upload: Upload{
			Endpoint: DefaultEndpoint,
		},
		Pipeline: Pipeline{
			Parallelism:   8,
			DecodeWorkers: runtime.NumCPU(),
			Extension:     ".fit",
		},
	}
}

// Load loads configuration from file and command line flags
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	cfg := Default()

	// Load from YAML file if provided
	if configFile != "" {
		if err := loadFromFile(cfg, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with command line flags
	if err := loadFromFlags(cfg, flags); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	cfg.Pipeline.Extension = normalizeExtension(cfg.Pipeline.Extension)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func loadFromFlags(cfg *Config, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}

	var err error
	if flags.Changed("fit-file-dir-path") {
		if cfg.Source.Dir, err = flags.GetString("fit-file-dir-path"); err != nil {
			return err
		}
	}

	if flags.Changed("endpoint") {
		if cfg.Upload.Endpoint, err = flags.GetString("endpoint"); err != nil {
			return err
		}
	}
	if flags.Changed("auth-bearer-token") {
		if cfg.Upload.Token, err = flags.GetString("auth-bearer-token"); err != nil {
			return err
		}
	}
	if flags.Changed("athlete-id") {
		if cfg.Upload.AthleteID, err = flags.GetUint64("athlete-id"); err != nil {
			return err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Upload.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return err
		}
	}

	if flags.Changed("parallelism") {
		if cfg.Pipeline.Parallelism, err = flags.GetInt("parallelism"); err != nil {
			return err
		}
	}
	if flags.Changed("decode-workers") {
		if cfg.Pipeline.DecodeWorkers, err = flags.GetInt("decode-workers"); err != nil {
			return err
		}
	}
	if flags.Changed("extension") {
		if cfg.Pipeline.Extension, err = flags.GetString("extension"); err != nil {
			return err
		}
	}

	if flags.Changed("log-level") {
		if cfg.LogLevel, err = flags.GetString("log-level"); err != nil {
			return err
		}
	}
	if flags.Changed("show-progress") {
		if cfg.ShowProgress, err = flags.GetBool("show-progress"); err != nil {
			return err
		}
	}
	if flags.Changed("metrics-addr") {
		if cfg.MetricsAddr, err = flags.GetString("metrics-addr"); err != nil {
			return err
		}
	}

	return nil
}

// normalizeExtension lowercases ext and makes sure it carries a leading dot.
func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func (c *Config) validate() error {
	if c.Source.Dir == "" {
		return fmt.Errorf("FIT file directory is required")
	}

	if c.Upload.Token == "" {
		return fmt.Errorf("auth bearer token is required")
	}
	if c.Upload.AthleteID == 0 {
		return fmt.Errorf("athlete id is required")
	}
	u, err := url.Parse(c.Upload.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("endpoint must be an absolute http(s) URL, got %q", c.Upload.Endpoint)
	}
	if c.Upload.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}

	if c.Pipeline.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Pipeline.DecodeWorkers <= 0 {
		return fmt.Errorf("decode workers must be positive")
	}
	if c.Pipeline.Extension == "" {
		return fmt.Errorf("extension cannot be empty")
	}

	return nil
}
