package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewPaths(t *testing.T) {
	paths, err := NewPaths()
	if err != nil {
		t.Fatalf("NewPaths error: %v", err)
	}
	if paths.HomeDir == "" {
		t.Error("HomeDir should not be empty")
	}
}

func TestPaths(t *testing.T) {
	home := t.TempDir()
	paths := &Paths{HomeDir: home}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"BaseDir", paths.BaseDir(), filepath.Join(home, ".oggvoice")},
		{"ConfigFile", paths.ConfigFile(), filepath.Join(home, ".oggvoice", "config.yaml")},
		{"CatalogDir", paths.CatalogDir(), filepath.Join(home, ".oggvoice", "catalog")},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s() = %q, want %q", tt.name, tt.got, tt.want)
		}
	}

	if err := paths.EnsureCatalogDir(); err != nil {
		t.Fatalf("EnsureCatalogDir error: %v", err)
	}
	if info, err := os.Stat(paths.CatalogDir()); err != nil || !info.IsDir() {
		t.Errorf("catalog dir not created: %v", err)
	}
}
