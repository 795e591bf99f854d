// Package config loads and validates the pipeline configuration from
// caravel.toml plus environment variables. Registry credentials come
// only from the environment; they never live in the config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/caravel-cd/caravel/internal/image"
)

type Config struct {
	DataDir string `mapstructure:"data_dir"`

	Image   ImageConfig   `mapstructure:"image"`
	Cluster ClusterConfig `mapstructure:"cluster"`
	Cleanup CleanupConfig `mapstructure:"cleanup"`
	Logging LoggingConfig `mapstructure:"logging"`

	// Populated from the environment, never from the file.
	Registry RegistryCredentials `mapstructure:"-"`
}

type ImageConfig struct {
	ContextDir string `mapstructure:"context_dir"`
	Dockerfile string `mapstructure:"dockerfile"`
	Repository string `mapstructure:"repository"`
}

type ClusterConfig struct {
	Namespace      string        `mapstructure:"namespace"`
	Workload       string        `mapstructure:"workload"`
	Container      string        `mapstructure:"container"`
	Manifest       string        `mapstructure:"manifest"`
	Kubectl        string        `mapstructure:"kubectl"`
	RolloutTimeout time.Duration `mapstructure:"rollout_timeout"`
}

type CleanupConfig struct {
	BuildCache bool `mapstructure:"build_cache"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	ToFile     bool   `mapstructure:"to_file"`
	Dir        string `mapstructure:"dir"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age"`
}

type RegistryCredentials struct {
	Username string
	Password string
}

func Load() (*Config, error) {
	viper.SetDefault("data_dir", defaultDataDir())
	viper.SetDefault("image.dockerfile", "Dockerfile")
	viper.SetDefault("cluster.kubectl", "kubectl")
	viper.SetDefault("cluster.rollout_timeout", "5m")
	viper.SetDefault("cleanup.build_cache", false)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file", "caravel.log")
	viper.SetDefault("logging.max_size", 10)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 30)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.Registry.Username = os.Getenv("CARAVEL_REGISTRY_USERNAME")
	cfg.Registry.Password = os.Getenv("CARAVEL_REGISTRY_PASSWORD")

	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = filepath.Join(cfg.DataDir, "logs")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Image.ContextDir == "" {
		return fmt.Errorf("image.context_dir is required")
	}
	if c.Image.Repository == "" {
		return fmt.Errorf("image.repository is required")
	}
	repo, err := image.ParseRepository(c.Image.Repository)
	if err != nil {
		return err
	}
	c.Image.Repository = repo

	if c.Cluster.Manifest == "" {
		return fmt.Errorf("cluster.manifest is required")
	}
	if c.Cluster.RolloutTimeout <= 0 {
		return fmt.Errorf("cluster.rollout_timeout must be positive")
	}
	return nil
}

// defaultDataDir returns a platform-appropriate default data
// directory, preferring the user's home for rootless use.
func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local/share/caravel")
	}
	return "./data"
}
