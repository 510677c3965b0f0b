package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

type Format string

const (
	FormatAuto  Format = ""
	FormatText  Format = "text"
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

const (
	RenderHTTP    = "http"
	RenderBrowser = "browser"
)

// Source describes one public proxy list.
type Source struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url"`

	Format    Format `json:"format,omitempty"`
	Protocol  string `json:"protocol,omitempty"`   // declared protocol family, if the list carries only one
	Separator string `json:"separator,omitempty"`  // text lists only, defaults to ":"
	ListField string `json:"list_field,omitempty"` // json lists only

	FollowRedirects *bool  `json:"follow_redirects,omitempty"`
	Decompress      *bool  `json:"decompress,omitempty"`
	Render          string `json:"render,omitempty"`
}

// Identifier is what the hint rules scan when a line carries no hint itself.
func (s Source) Identifier() string {
	return strings.TrimSpace(s.Name + " " + s.URL)
}

func (s Source) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.URL
}

func (s Source) ShouldFollowRedirects() bool {
	return s.FollowRedirects == nil || *s.FollowRedirects
}

func (s Source) ShouldDecompress() bool {
	return s.Decompress == nil || *s.Decompress
}

func (s Source) UsesBrowser() bool {
	return strings.EqualFold(s.Render, RenderBrowser)
}

type Config struct {
	Sources []Source `json:"sources"`

	Scraper struct {
		Timeout       uint32   `json:"timeout"`
		Concurrency   int      `json:"concurrency"`
		MaxBodyBytes  int64    `json:"max_body_bytes"`
		RespectRobots bool     `json:"respect_robots"`
		UserAgents    []string `json:"user_agents"`
	} `json:"scraper"`

	Checker struct {
		Threads            uint32   `json:"threads"`
		Retries            uint32   `json:"retries"`
		Timeout            uint32   `json:"timeout"`
		RetryBackoff       uint32   `json:"retry_backoff"`
		BatchSize          uint32   `json:"batch_size"`
		ProbeTargets       []string `json:"probe_targets"`
		IpLookup           string   `json:"ip_lookup"`
		ProxyHeader        []string `json:"proxy_header"`
		TransparentMarkers []string `json:"transparent_markers"`
	} `json:"checker"`

	Scheduler struct {
		CycleTimer Timer  `json:"cycle_timer"`
		LockKey    string `json:"lock_key"`
	} `json:"scheduler"`

	Output struct {
		Directory      string `json:"directory"`
		RedisURL       string `json:"redis_url"`
		RedisKeyPrefix string `json:"redis_key_prefix"`
		DatabaseDriver string `json:"database_driver"`
		DatabaseDSN    string `json:"database_dsn"`
	} `json:"output"`

	GeoLite struct {
		CountryDatabase string `json:"country_database"`
	} `json:"geolite"`

	Metrics struct {
		Address string `json:"address"`
	} `json:"metrics"`

	Logging struct {
		Level     string `json:"level"`
		File      string `json:"file"`
		MaxSizeKB int64  `json:"max_size_kb"`
		MaxRolls  int    `json:"max_rolls"`
	} `json:"logging"`

	WebsiteBlacklist []string `json:"website_blacklist"`
}

const DefaultSettingsPath = "data/settings.json"

//go:embed default_settings.json
var defaultConfig []byte

// Default returns the embedded default configuration.
func Default() Config {
	var cfg Config
	if err := json.Unmarshal(defaultConfig, &cfg); err != nil {
		panic(fmt.Errorf("config: embedded defaults are invalid: %w", err))
	}
	return cfg
}

// Load reads the settings file at path. A missing file is created from the
// embedded defaults first.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultSettingsPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}

		log.Warn("Settings file not found, creating with default configuration", "path", path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return Config{}, fmt.Errorf("config: create settings dir: %w", err)
		}
		if err := os.WriteFile(path, defaultConfig, 0o644); err != nil {
			return Config{}, fmt.Errorf("config: write default settings: %w", err)
		}
		data = defaultConfig
	}

	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	log.Debug("Settings file loaded successfully", "path", path, "sources", len(cfg.Sources))
	return cfg, nil
}

func (cfg Config) Validate() error {
	var errs []error

	if cfg.Checker.Threads == 0 {
		errs = append(errs, errors.New("checker.threads must be greater than 0"))
	}
	if cfg.Checker.Timeout == 0 {
		errs = append(errs, errors.New("checker.timeout must be greater than 0"))
	}
	if cfg.Checker.Retries == 0 {
		errs = append(errs, errors.New("checker.retries must be greater than 0"))
	}
	if len(cfg.Checker.ProbeTargets) == 0 {
		errs = append(errs, errors.New("checker.probe_targets must not be empty"))
	}
	if cfg.Scraper.Timeout == 0 {
		errs = append(errs, errors.New("scraper.timeout must be greater than 0"))
	}

	for i, source := range cfg.Sources {
		if strings.TrimSpace(source.URL) == "" {
			errs = append(errs, fmt.Errorf("sources[%d]: url is empty", i))
		}
		switch source.Format {
		case FormatAuto, FormatText, FormatTable, FormatJSON:
		default:
			errs = append(errs, fmt.Errorf("sources[%d]: unknown format %q", i, source.Format))
		}
		if source.Render != "" && source.Render != RenderHTTP && source.Render != RenderBrowser {
			errs = append(errs, fmt.Errorf("sources[%d]: unknown render mode %q", i, source.Render))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config: invalid settings: %w", errors.Join(errs...))
}
