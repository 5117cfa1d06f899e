package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Hub struct {
		URL string `yaml:"url"`
	} `yaml:"hub"`
	API struct {
		BaseURL string `yaml:"baseUrl"`
	} `yaml:"api"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Rounds struct {
		Multiplayer string `yaml:"multiplayer"`
		Solo        string `yaml:"solo"`
	} `yaml:"rounds"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// Round durations observed in production: multiplayer rounds are host-paced
// at 25s, solo pacing is 15s. Config may override both.
const (
	DefaultMultiplayerRound = 25 * time.Second
	DefaultSoloRound        = 15 * time.Second
)
