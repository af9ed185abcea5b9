package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServiceConfig is the configuration for the `serve` subcommand (spec.md §4.E,
// §5, §6): job directories, concurrency caps, timeouts, Basic-auth
// credentials, and provider tokens. Distinct from Config (the repo-report
// feature's shape) because the two commands address unrelated concerns.
type ServiceConfig struct {
	ListenAddr string `yaml:"listen_addr"`

	JobsDir string `yaml:"jobs_dir"`
	LogsDir string `yaml:"logs_dir"`

	MaxConcurrentJobs      int           `yaml:"max_concurrent_jobs"`
	MaxConcurrentProcesses int           `yaml:"max_concurrent_processes"`
	WorkerTimeout          time.Duration `yaml:"worker_timeout"`
	StaleThreshold         time.Duration `yaml:"stale_threshold"`
	CleanupAge             time.Duration `yaml:"cleanup_age"`

	CacheMaxSize int           `yaml:"cache_max_size"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`

	CategoriesPath string `yaml:"categories_path"`
	WorkerBinary   string `yaml:"worker_binary"`

	Users map[string]string `yaml:"users"` // username -> password, Basic-auth (§6)

	Providers map[string]ServiceProviderConfig `yaml:"providers"`
}

// ServiceProviderConfig carries the token used for group enumeration
// (GitHub organizations, GitLab groups) by provider name.
type ServiceProviderConfig struct {
	Token   string `yaml:"token"`
	BaseURL string `yaml:"base_url"`
}

// DefaultServiceConfig mirrors the source's module-level defaults
// (MAX_CONCURRENT_PROCESSES=5, worker timeout 3600s, stale threshold 120s,
// cleanup age 24h).
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ListenAddr:             ":8080",
		JobsDir:                "tmp/scan_jobs",
		LogsDir:                "tmp/scan_logs",
		MaxConcurrentJobs:      20,
		MaxConcurrentProcesses: 5,
		WorkerTimeout:          3600 * time.Second,
		StaleThreshold:         120 * time.Second,
		CleanupAge:             24 * time.Hour,
		CacheMaxSize:           128,
		CacheTTL:               time.Hour,
		CategoriesPath:         "configs/categories.yaml",
		WorkerBinary:           "devdashboard-worker",
	}
}

// LoadServiceConfig reads a YAML service config file, applying
// DefaultServiceConfig for anything the file leaves zero-valued.
func LoadServiceConfig(filename string) (*ServiceConfig, error) {
	cfg := DefaultServiceConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read service config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse service config file: %w", err)
	}

	if len(cfg.Users) == 0 {
		return nil, fmt.Errorf("service config: at least one entry under 'users' is required")
	}

	return &cfg, nil
}
