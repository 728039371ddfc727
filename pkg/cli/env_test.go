package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/haivivi/oggvoice/pkg/storage"
)

func TestLoadEnv(t *testing.T) {
	t.Setenv("OGGVOICE_PROFILE", "voice")
	t.Setenv("OGGVOICE_CATALOG_DIR", "/tmp/catalog")
	t.Setenv("OGGVOICE_S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("OGGVOICE_S3_PATH_STYLE", "true")

	e, err := LoadEnv(context.Background())
	if err != nil {
		t.Fatalf("LoadEnv error: %v", err)
	}
	if e.Profile != "voice" || e.CatalogDir != "/tmp/catalog" {
		t.Errorf("env = %+v", e)
	}

	base := storage.S3Config{Region: "eu-west-1", Endpoint: "https://s3.example.com", Prefix: "voice"}
	want := storage.S3Config{Region: "eu-west-1", Endpoint: "http://localhost:9000", PathStyle: true, Prefix: "voice"}
	if diff := cmp.Diff(want, e.S3Config(base)); diff != "" {
		t.Errorf("S3Config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadEnvInvalid(t *testing.T) {
	t.Setenv("OGGVOICE_S3_PATH_STYLE", "sometimes")
	if _, err := LoadEnv(context.Background()); err == nil {
		t.Error("LoadEnv accepted a non-boolean path style")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "OGGVOICE_TEST_DOTENV=from-file\nOGGVOICE_TEST_KEEP=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OGGVOICE_TEST_KEEP", "from-env")
	t.Setenv("OGGVOICE_TEST_DOTENV", "")
	os.Unsetenv("OGGVOICE_TEST_DOTENV")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv error: %v", err)
	}
	if got := os.Getenv("OGGVOICE_TEST_DOTENV"); got != "from-file" {
		t.Errorf("OGGVOICE_TEST_DOTENV = %q", got)
	}
	if got := os.Getenv("OGGVOICE_TEST_KEEP"); got != "from-env" {
		t.Errorf("OGGVOICE_TEST_KEEP = %q, existing variables must win", got)
	}
}
