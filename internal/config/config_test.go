package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if cfg.API.Timeout != "15s" {
		t.Errorf("API.Timeout = %q, want %q", cfg.API.Timeout, "15s")
	}
	if cfg.Storage.Backend != "file" {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, "file")
	}
	if !strings.HasSuffix(cfg.Storage.Path, "state.json") {
		t.Errorf("Storage.Path = %q, want a state.json path", cfg.Storage.Path)
	}
	if cfg.Verification.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.Verification.MaxAttempts)
	}
	if cfg.Verification.SignalStatus != 428 {
		t.Errorf("SignalStatus = %d, want 428", cfg.Verification.SignalStatus)
	}
	if len(cfg.Auth.ExemptRoutes) != 2 {
		t.Errorf("Auth.ExemptRoutes = %v, want login and register", cfg.Auth.ExemptRoutes)
	}
	if len(cfg.Verification.ExemptRoutes) != 3 {
		t.Errorf("Verification.ExemptRoutes = %v, want the three verification routes", cfg.Verification.ExemptRoutes)
	}
	if cfg.Events.Backend != "gochannel" {
		t.Errorf("Events.Backend = %q, want %q", cfg.Events.Backend, "gochannel")
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "warn")
	}
}

func TestConfig_SetDefaults_SQLitePath(t *testing.T) {
	t.Parallel()

	cfg := Config{Storage: StorageConfig{Backend: "sqlite"}}
	cfg.SetDefaults()

	if !strings.HasSuffix(cfg.Storage.Path, "state.db") {
		t.Errorf("Storage.Path = %q, want a state.db path", cfg.Storage.Path)
	}
}

func TestConfig_SetDefaults_MemoryHasNoPath(t *testing.T) {
	t.Parallel()

	cfg := Config{Storage: StorageConfig{Backend: "memory"}}
	cfg.SetDefaults()

	if cfg.Storage.Path != "" {
		t.Errorf("Storage.Path = %q, want empty for memory backend", cfg.Storage.Path)
	}
}

func TestConfig_SetDefaults_PreservesExistingValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		API:          APIConfig{Timeout: "3s", UserAgent: "custom"},
		Auth:         AuthConfig{ExemptRoutes: []string{}},
		Verification: VerificationConfig{MaxAttempts: 5, SignalStatus: 403, SignalHeader: "X-Human"},
		LogLevel:     "error",
	}
	cfg.SetDefaults()

	if cfg.API.Timeout != "3s" {
		t.Errorf("API.Timeout = %q, want %q", cfg.API.Timeout, "3s")
	}
	if cfg.API.UserAgent != "custom" {
		t.Errorf("API.UserAgent = %q, want %q", cfg.API.UserAgent, "custom")
	}
	if len(cfg.Auth.ExemptRoutes) != 0 {
		t.Errorf("explicit empty Auth.ExemptRoutes replaced by %v", cfg.Auth.ExemptRoutes)
	}
	if cfg.Verification.MaxAttempts != 5 || cfg.Verification.SignalStatus != 403 || cfg.Verification.SignalHeader != "X-Human" {
		t.Errorf("Verification overwritten: %+v", cfg.Verification)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "error")
	}
}

func TestConfig_SetDevDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{DevMode: true}
	cfg.SetDefaults()
	cfg.SetDevDefaults()

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q in dev mode", cfg.LogLevel, "debug")
	}
}

func TestConfig_APITimeout(t *testing.T) {
	t.Parallel()

	cfg := Config{API: APIConfig{Timeout: "2m"}}
	if got := cfg.APITimeout(); got != 2*time.Minute {
		t.Errorf("APITimeout() = %v, want 2m", got)
	}

	cfg.API.Timeout = "garbage"
	if got := cfg.APITimeout(); got != 15*time.Second {
		t.Errorf("APITimeout() fallback = %v, want 15s", got)
	}
}

func TestConfig_Dump(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	out, err := cfg.Dump()
	if err != nil {
		t.Fatalf("Dump() error: %v", err)
	}
	if !strings.Contains(string(out), "base_url: http://localhost:8000/api") {
		t.Errorf("Dump() missing base_url:\n%s", out)
	}
	if !strings.Contains(string(out), "max_attempts: 3") {
		t.Errorf("Dump() missing max_attempts:\n%s", out)
	}
}

func TestFindConfigFileInPaths_EmptyDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths(empty dir) = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_MatchesYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "reelgate.yaml")
	_ = os.WriteFile(cfgPath, []byte("api:\n  base_url: http://localhost\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_MatchesYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "reelgate.yml")
	_ = os.WriteFile(cfgPath, []byte("api:\n  base_url: http://localhost\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_IgnoresNoExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "reelgate"), []byte("\x7fELF binary"), 0755)

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths matched binary = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_SearchOrder(t *testing.T) {
	t.Parallel()
	first := t.TempDir()
	second := t.TempDir()
	want := filepath.Join(second, "reelgate.yaml")
	_ = os.WriteFile(want, []byte("dev_mode: true\n"), 0644)

	got := findConfigFileInPaths([]string{first, second})
	if got != want {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, want)
	}
}
