package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Root string `yaml:"root"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("SLIPBOX_TEST_ROOT", "/srv/box")
	p := writeConfig(t, "root: ${SLIPBOX_TEST_ROOT}\n")

	cfg := sample{Port: 8080}
	if err := Load(p, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Root != "/srv/box" {
		t.Errorf("root = %q", cfg.Root)
	}
	if cfg.Port != 8080 {
		t.Errorf("port = %d, want default 8080", cfg.Port)
	}
}

func TestLoad_ValidationFails(t *testing.T) {
	p := writeConfig(t, "port: 0\n")
	cfg := sample{Port: 1}
	err := Load(p, &cfg)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg := sample{Port: 1}
	err := Load(filepath.Join(t.TempDir(), "absent.yaml"), &cfg)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
}

func TestLoadOptional_MissingFileKeepsDefaults(t *testing.T) {
	cfg := sample{Root: ".", Port: 1}
	if err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"), &cfg); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if cfg.Root != "." {
		t.Errorf("root = %q", cfg.Root)
	}

	bad := sample{}
	if err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"), &bad); err == nil {
		t.Fatal("defaults should still be validated")
	}
}
