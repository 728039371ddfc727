package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/goccy/go-yaml"

	"github.com/haivivi/oggvoice/pkg/audio/opusenc"
	"github.com/haivivi/oggvoice/pkg/storage"
)

const (
	// DefaultBaseDir is the base configuration directory name
	DefaultBaseDir = ".oggvoice"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.yaml"
	// DefaultProfile is the name of the built-in profile
	DefaultProfile = "default"
)

// Config represents the oggvoice configuration file
type Config struct {
	// CurrentProfile is the name of the profile used when --profile is not given
	CurrentProfile string `yaml:"current_profile,omitempty"`

	// Profiles is a map of profile name to encoding profile
	Profiles map[string]*Profile `yaml:"profiles,omitempty"`

	// S3 configures the client used for s3:// locations
	S3 storage.S3Config `yaml:"s3,omitempty"`

	// CatalogDir overrides the catalog database directory
	CatalogDir string `yaml:"catalog_dir,omitempty"`

	// configPath is the path to the config file
	configPath string
}

// Profile is a named set of encoding parameters
type Profile struct {
	// Name is the profile name
	Name string `yaml:"name"`

	// Encoder holds the Opus encoder settings
	Encoder opusenc.Config `yaml:"encoder"`

	// Normalize scales input to 0 dBFS peak before encoding
	Normalize bool `yaml:"normalize,omitempty"`

	// Vendor overrides the OpusTags vendor string
	Vendor string `yaml:"vendor,omitempty"`
}

// BuiltinProfile returns the profile used when no profile is configured.
func BuiltinProfile() *Profile {
	return &Profile{Name: DefaultProfile, Encoder: opusenc.DefaultConfig()}
}

// LoadConfig loads the configuration from path, or from
// ~/.oggvoice/config.yaml when path is empty. A missing file yields an empty
// configuration that is not written until Save.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		paths, err := NewPaths()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = paths.ConfigFile()
	}

	cfg := &Config{
		Profiles:   make(map[string]*Profile),
		configPath: path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]*Profile)
	}
	for name, p := range cfg.Profiles {
		p.Name = name
	}
	cfg.configPath = path

	return cfg, nil
}

// Save writes the configuration to disk, creating its directory
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(c.Dir(), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(c.configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Path returns the config file path
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the config directory path
func (c *Config) Dir() string {
	return filepath.Dir(c.configPath)
}

// AddProfile validates and stores a profile, replacing one with the same
// name
func (c *Config) AddProfile(name string, p *Profile) error {
	if name == "" {
		return fmt.Errorf("profile name is required")
	}
	if _, err := opusenc.NewFromConfig(p.Encoder); err != nil {
		return fmt.Errorf("profile %q: %w", name, err)
	}
	p.Name = name
	c.Profiles[name] = p
	return c.Save()
}

// DeleteProfile removes a profile
func (c *Config) DeleteProfile(name string) error {
	if _, ok := c.Profiles[name]; !ok {
		return fmt.Errorf("profile %q not found", name)
	}
	delete(c.Profiles, name)
	if c.CurrentProfile == name {
		c.CurrentProfile = ""
	}
	return c.Save()
}

// UseProfile sets the current profile
func (c *Config) UseProfile(name string) error {
	if _, ok := c.Profiles[name]; !ok {
		return fmt.Errorf("profile %q not found", name)
	}
	c.CurrentProfile = name
	return c.Save()
}

// GetProfile returns a specific profile
func (c *Config) GetProfile(name string) (*Profile, error) {
	p, ok := c.Profiles[name]
	if !ok {
		if name == DefaultProfile {
			return BuiltinProfile(), nil
		}
		return nil, fmt.Errorf("profile %q not found", name)
	}
	return p, nil
}

// ResolveProfile returns the named profile, the current profile if name is
// empty, or the built-in profile if neither is set
func (c *Config) ResolveProfile(name string) (*Profile, error) {
	if name == "" {
		name = c.CurrentProfile
	}
	if name == "" {
		return BuiltinProfile(), nil
	}
	return c.GetProfile(name)
}

// ListProfiles returns all profile names in order
func (c *Config) ListProfiles() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
