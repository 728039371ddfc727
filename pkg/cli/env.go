package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/haivivi/oggvoice/pkg/storage"
)

// Env holds settings read from OGGVOICE_* environment variables. They take
// precedence over the config file and are never saved to it.
type Env struct {
	ConfigPath  string `env:"OGGVOICE_CONFIG"`
	Profile     string `env:"OGGVOICE_PROFILE"`
	CatalogDir  string `env:"OGGVOICE_CATALOG_DIR"`
	S3Region    string `env:"OGGVOICE_S3_REGION"`
	S3Endpoint  string `env:"OGGVOICE_S3_ENDPOINT"`
	S3Prefix    string `env:"OGGVOICE_S3_PREFIX"`
	S3PathStyle bool   `env:"OGGVOICE_S3_PATH_STYLE"`
}

// LoadDotEnv loads KEY=value lines from each existing file into the
// process environment. Variables that are already set are kept. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", filepath.Base(p), err)
		}
	}
	return nil
}

// LoadEnv reads the OGGVOICE_* variables.
func LoadEnv(ctx context.Context) (*Env, error) {
	var e Env
	if err := envconfig.Process(ctx, &e); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return &e, nil
}

// S3Config returns base with the S3 variables that are set applied.
func (e *Env) S3Config(base storage.S3Config) storage.S3Config {
	if e.S3Region != "" {
		base.Region = e.S3Region
	}
	if e.S3Endpoint != "" {
		base.Endpoint = e.S3Endpoint
	}
	if e.S3Prefix != "" {
		base.Prefix = e.S3Prefix
	}
	if e.S3PathStyle {
		base.PathStyle = true
	}
	return base
}
