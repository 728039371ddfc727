package cli

import (
	"os"
	"path/filepath"
)

// Paths provides access to the oggvoice directory structure
type Paths struct {
	// HomeDir is the user's home directory
	HomeDir string
}

// NewPaths creates a Paths rooted at the user's home directory
func NewPaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{HomeDir: home}, nil
}

// BaseDir returns the base directory (~/.oggvoice)
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// ConfigFile returns the config file path (~/.oggvoice/config.yaml)
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.BaseDir(), DefaultConfigFile)
}

// CatalogDir returns the recordings catalog directory (~/.oggvoice/catalog)
func (p *Paths) CatalogDir() string {
	return filepath.Join(p.BaseDir(), "catalog")
}

// EnsureCatalogDir creates the catalog directory if it doesn't exist
func (p *Paths) EnsureCatalogDir() error {
	return os.MkdirAll(p.CatalogDir(), 0o755)
}
