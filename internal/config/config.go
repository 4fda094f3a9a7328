package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds server and solver defaults. Values load from an optional YAML
// file, then environment variables override individual fields.
type Config struct {
	Server struct {
		Port         string  `yaml:"port"`
		RateRPS      float64 `yaml:"rateRps"`
		RateBurst    int     `yaml:"rateBurst"`
		AllowOrigins string  `yaml:"allowOrigins"`
	} `yaml:"server"`

	Solver struct {
		SATimeMs  int     `yaml:"saTimeMs"`
		InitTemp  float64 `yaml:"initTemp"`
		Cooling   float64 `yaml:"cooling"`
		FairZones int     `yaml:"fairZones"`
	} `yaml:"solver"`

	Webhooks struct {
		MaxAttempts int `yaml:"maxAttempts"`
	} `yaml:"webhooks"`
}

// Default returns the built-in configuration.
func Default() Config {
	var c Config
	c.Server.Port = "8080"
	c.Server.RateRPS = 50
	c.Server.RateBurst = 100
	c.Solver.SATimeMs = 2000
	c.Solver.InitTemp = 1.0
	c.Solver.Cooling = 0.995
	c.Solver.FairZones = 4
	c.Webhooks.MaxAttempts = 8
	return c
}

// Load reads CONFIG_FILE (if set and present) over the defaults, then applies
// environment overrides. A missing file path from CONFIG_FILE is an error; a
// missing default config.yaml is not.
func Load() (Config, error) {
	c := Default()
	path := os.Getenv("CONFIG_FILE")
	explicit := path != ""
	if path == "" {
		path = "config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if explicit {
			return c, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyEnv(&c)
	return c, nil
}

func applyEnv(c *Config) {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("ALLOW_ORIGINS"); v != "" {
		c.Server.AllowOrigins = v
	}
	envFloat("RATE_RPS", &c.Server.RateRPS)
	envInt("RATE_BURST", &c.Server.RateBurst)
	envInt("SA_TIME_MS", &c.Solver.SATimeMs)
	envFloat("SA_INIT_TEMP", &c.Solver.InitTemp)
	envFloat("SA_COOLING", &c.Solver.Cooling)
	envInt("FAIR_ZONES", &c.Solver.FairZones)
	envInt("WEBHOOK_MAX_ATTEMPTS", &c.Webhooks.MaxAttempts)
}

func envInt(k string, dst *int) {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(k string, dst *float64) {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
