// Package config loads pgweave CLI configuration from .pgweave.yaml,
// PGWEAVE_* environment variables and .env files.
package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// AppFs is the filesystem the CLI reads and writes through. Tests swap
// in an in-memory filesystem.
var AppFs = afero.NewOsFs()

// Config holds the resolved CLI configuration.
type Config struct {
	DatabaseURL string
	Schema      string
	OutputPath  string
	Package     string
}

// Load resolves configuration in ascending priority: defaults,
// .pgweave.yaml (searched in ., $HOME and $HOME/.config/pgweave),
// PGWEAVE_* environment variables, then .env and .env.local for the
// database URL.
func Load() (*Config, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetFs(AppFs)
	v.SetConfigName(".pgweave")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(home)
	v.AddConfigPath(filepath.Join(home, ".config", "pgweave"))

	v.SetEnvPrefix("PGWEAVE")
	v.AutomaticEnv()

	v.SetDefault("schema", "public")
	v.SetDefault("output_path", "vocab/vocab.go")
	v.SetDefault("package", "vocab")

	// A missing config file is fine, defaults apply.
	_ = v.ReadInConfig()

	if _, err := AppFs.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}
	if _, err := AppFs.Stat(".env.local"); err == nil {
		_ = godotenv.Overload(".env.local")
	}

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		url = v.GetString("database_url")
	}

	return &Config{
		DatabaseURL: url,
		Schema:      v.GetString("schema"),
		OutputPath:  v.GetString("output_path"),
		Package:     v.GetString("package"),
	}, nil
}

// Save writes the generation settings to
// $HOME/.config/pgweave/.pgweave.yaml. The database URL is left to
// .env so credentials stay out of the config file.
func Save(cfg *Config) error {
	home, err := homedir.Dir()
	if err != nil {
		return err
	}

	v := viper.New()
	v.SetFs(AppFs)
	v.SetConfigType("yaml")
	v.Set("schema", cfg.Schema)
	v.Set("output_path", cfg.OutputPath)
	v.Set("package", cfg.Package)

	dir := filepath.Join(home, ".config", "pgweave")
	if err := AppFs.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return v.WriteConfigAs(filepath.Join(dir, ".pgweave.yaml"))
}
