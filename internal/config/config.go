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
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Auth struct {
		VerifyURL string `yaml:"verify_url"`
		Timeout   string `yaml:"timeout"`
		// Tokens maps static bearer tokens to identities for dev setups
		// without an identity service.
		Tokens map[string]struct {
			UserID      string `yaml:"user_id"`
			DisplayName string `yaml:"display_name"`
		} `yaml:"tokens"`
	} `yaml:"auth"`
	Generator struct {
		BaseURL  string `yaml:"base_url"`
		APIKey   string `yaml:"api_key"`
		Model    string `yaml:"model"`
		Timeout  string `yaml:"timeout"`
		Attempts int    `yaml:"attempts"`
	} `yaml:"generator"`
	Game struct {
		QuestionCap int    `yaml:"question_cap"`
		QuestionTTL string `yaml:"question_ttl"`
		FinishedTTL string `yaml:"finished_ttl"`
		Composition struct {
			Easy   int `yaml:"easy"`
			Medium int `yaml:"medium"`
			Hard   int `yaml:"hard"`
		} `yaml:"composition"`
		Heuristics struct {
			DuplicateOverlap  float64 `yaml:"duplicate_overlap"`
			EasyMaxComplexity int     `yaml:"easy_max_complexity"`
			HardMinComplexity int     `yaml:"hard_min_complexity"`
		} `yaml:"heuristics"`
	} `yaml:"game"`
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

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
