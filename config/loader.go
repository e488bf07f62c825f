package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of the environment variables read by Load.
const EnvPrefix = "FLOWSIM"

// Paths tells Load where to look for files. Empty paths are skipped.
type Paths struct {
	// Main is a YAML, TOML, or JSON configuration file.
	Main string

	// DotEnv is a file of KEY=VALUE lines loaded into the environment.
	// Variables already set are not overridden.
	DotEnv string
}

// Load builds the configuration in priority order:
// 1. Default values
// 2. Configuration file
// 3. Environment variables (FLOWSIM_ prefix, also from the .env file)
func Load(paths Paths) (*Config, error) {
	if err := loadDotEnv(paths.DotEnv); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if paths.Main != "" {
		v.SetConfigFile(paths.Main)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w",
				paths.Main, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}

	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}

	return nil
}

// DefaultPaths returns the main file given on the command line and .env in
// the working directory.
func DefaultPaths(main string) Paths {
	paths := Paths{Main: main}

	if _, err := os.Stat(".env"); err == nil {
		paths.DotEnv = ".env"
	}

	return paths
}
