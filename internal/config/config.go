package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the workspace.
const FileName = "piedmont.yml"

// Config models piedmont.yml.
type Config struct {
	Shop struct {
		Name string `yaml:"name" json:"name"`
	} `yaml:"shop" json:"shop"`
	Schedule struct {
		Timezone     string            `yaml:"timezone" json:"timezone"`
		DayStart     string            `yaml:"day_start" json:"day_start"`
		Palette      []string          `yaml:"palette" json:"palette"`
		StatusColors map[string]string `yaml:"status_colors" json:"status_colors"`
	} `yaml:"schedule" json:"schedule"`
	Server struct {
		Addr         string `yaml:"addr" json:"addr"`
		BasePath     string `yaml:"base_path" json:"base_path"`
		JWTSecretEnv string `yaml:"jwt_secret_env" json:"jwt_secret_env"`
	} `yaml:"server" json:"server"`

	loc *time.Location
}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Validate ensures the config meets required structure and resolves the
// schedule time zone.
func (c *Config) Validate() error {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return fmt.Errorf("config.schedule.timezone %q invalid: %w", c.Schedule.Timezone, err)
	}
	c.loc = loc
	if _, _, err := c.dayStart(); err != nil {
		return err
	}
	if len(c.Schedule.Palette) == 0 {
		return fmt.Errorf("config.schedule.palette is required")
	}
	for _, col := range c.Schedule.Palette {
		if !hexColor.MatchString(col) {
			return fmt.Errorf("palette colour %q must be #rrggbb", col)
		}
	}
	for status, col := range c.Schedule.StatusColors {
		switch status {
		case "in_progress", "hold", "done":
		default:
			return fmt.Errorf("config.schedule.status_colors has unknown status %s", status)
		}
		if !hexColor.MatchString(col) {
			return fmt.Errorf("status colour for %s must be #rrggbb", status)
		}
	}
	return nil
}

func (c *Config) dayStart() (int, int, error) {
	t, err := time.Parse("15:04", c.Schedule.DayStart)
	if err != nil {
		return 0, 0, fmt.Errorf("config.schedule.day_start must be HH:MM: %w", err)
	}
	return t.Hour(), t.Minute(), nil
}

// Location is the shop time zone used for anchors, dates and wire timestamps.
func (c *Config) Location() *time.Location {
	if c.loc == nil {
		if loc, err := time.LoadLocation(c.Schedule.Timezone); err == nil {
			c.loc = loc
		} else {
			c.loc = time.UTC
		}
	}
	return c.loc
}

// AtDayStart combines a YYYY-MM-DD date with the configured start of day.
func (c *Config) AtDayStart(date string) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", date, c.Location())
	if err != nil {
		return time.Time{}, err
	}
	h, m, err := c.dayStart()
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, 0, 0, c.Location()), nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// GenerateDefault returns default config YAML.
func GenerateDefault(shopName string) string {
	return fmt.Sprintf(defaultTemplate, shopName)
}

// Load reads config from the workspace, falling back to defaults when the
// file does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(GenerateDefault("Piedmont"))).Decode(&cfg)
	_ = cfg.Validate()
	return &cfg
}

// FromYAML parses config over the defaults and validates it.
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

const defaultTemplate = `shop:
  name: %s

schedule:
  timezone: UTC
  day_start: "08:00"
  palette:
    - "#4e79a7"
    - "#59a14f"
    - "#9c755f"
    - "#76b7b2"
    - "#edc948"
    - "#b07aa1"
    - "#ff9da7"
    - "#bab0ac"
  status_colors:
    in_progress: "#f28e2b"
    hold: "#e15759"
    done: "#2ca02c"

server:
  addr: 127.0.0.1:8080
  base_path: /api
  jwt_secret_env: PIEDMONT_JWT_SECRET
`
