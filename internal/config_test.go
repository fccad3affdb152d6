package internal

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should pass: %v", err)
	}
	layout := cfg.Workspace.Layout()
	if layout.Manifest != "documents.tex" || layout.Extension != ".tex" {
		t.Errorf("layout = %+v", layout)
	}
}

func TestWorkspaceConfig_AbsoluteNotesDir(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Workspace.NotesDir = "/abs/notes"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("absolute notes dir should fail validation")
	}
	if !strings.Contains(err.Error(), "relative") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestWorkspaceConfig_ExtensionNeedsDot(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Workspace.Extension = "tex"
	if err := cfg.Validate(); err == nil {
		t.Fatal("extension without dot should fail validation")
	}
}

func TestWorkspaceConfig_NotesPath(t *testing.T) {
	cfg := WorkspaceConfig{Root: "box", NotesDir: "notes"}
	if got, want := cfg.NotesPath(), filepath.Join("box", "notes"); got != want {
		t.Errorf("NotesPath() = %q, want %q", got, want)
	}
}

func TestWatchConfig_NegativeRejected(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Watch.Debounce = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative debounce should fail validation")
	}
	cfg.Watch.Debounce = 0
	cfg.Watch.MinInterval = 3 * time.Second
	opts := cfg.Watch.Options()
	if opts.MinInterval != 3*time.Second || opts.Debounce != 0 {
		t.Errorf("options = %+v", opts)
	}
}
