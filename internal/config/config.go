package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const FileName = "flightscout.yml"

// Config models flightscout.yml.
type Config struct {
	API struct {
		BaseURL string        `yaml:"base_url" json:"base_url"`
		Timeout time.Duration `yaml:"timeout" json:"timeout"`
	} `yaml:"api" json:"api"`
	Airports struct {
		Origins      []string `yaml:"origins" json:"origins"`
		Destinations []string `yaml:"destinations" json:"destinations"`
	} `yaml:"airports" json:"airports"`
	Dates struct {
		MinStayDays int `yaml:"min_stay_days" json:"min_stay_days"`
	} `yaml:"dates" json:"dates"`
	Prompt struct {
		MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
	} `yaml:"prompt" json:"prompt"`
	Output struct {
		Dir string `yaml:"dir" json:"dir"`
	} `yaml:"output" json:"output"`
	History struct {
		Enabled bool `yaml:"enabled" json:"enabled"`
	} `yaml:"history" json:"history"`
	Server struct {
		CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`
	} `yaml:"server" json:"server"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with flightscout config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("config.api.base_url is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config.api.base_url must be an absolute http(s) url")
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("config.api.timeout cannot be negative")
	}
	if err := validateCodes("origins", c.Airports.Origins); err != nil {
		return err
	}
	if err := validateCodes("destinations", c.Airports.Destinations); err != nil {
		return err
	}
	if c.Dates.MinStayDays < 0 {
		return fmt.Errorf("config.dates.min_stay_days cannot be negative")
	}
	if c.Prompt.MaxAttempts < 0 {
		return fmt.Errorf("config.prompt.max_attempts cannot be negative")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("config.output.dir is required")
	}
	for _, origin := range c.Server.CORSOrigins {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" || u.Path != "" || u.RawQuery != "" {
			return fmt.Errorf("config.server.cors_origins has invalid origin %q", origin)
		}
	}
	return nil
}

func validateCodes(field string, codes []string) error {
	if len(codes) == 0 {
		return fmt.Errorf("config.airports.%s is required", field)
	}
	for _, code := range codes {
		if len(code) != 3 {
			return fmt.Errorf("config.airports.%s has invalid airport code %q", field, code)
		}
		for _, r := range code {
			if r < 'A' || r > 'Z' {
				return fmt.Errorf("config.airports.%s has invalid airport code %q", field, code)
			}
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(defaultTemplate), &cfg); err != nil {
		panic(fmt.Sprintf("default config: %v", err))
	}
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys missing
// from data keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `api:
  base_url: http://homeworktask.infare.lt
  # 0s waits for the search api indefinitely
  timeout: 0s

airports:
  origins: [MAD, JFK, CPH]
  destinations: [AUH, FUE, MAD]

dates:
  min_stay_days: 2

prompt:
  # 0 re-prompts forever
  max_attempts: 5

output:
  dir: Output

history:
  enabled: true

server:
  # browser origins allowed to call the HTTP API, e.g. http://localhost:5173
  cors_origins: []
`
