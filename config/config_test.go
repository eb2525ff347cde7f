package config

import (
	"os"
	"path/filepath"
	"testing"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	return cfg
}

func TestLoadFrom_MissingFile(t *testing.T) {
	cfg := testConfig(t)

	if got := cfg.GetCLIPath(); got != DefaultCLIPath {
		t.Errorf("GetCLIPath = %q, want %q", got, DefaultCLIPath)
	}
	if got := cfg.GetPermissionMode(); got != DefaultPermissionMode {
		t.Errorf("GetPermissionMode = %q, want %q", got, DefaultPermissionMode)
	}
	if got := cfg.GetBridgePort(); got != DefaultBridgePort {
		t.Errorf("GetBridgePort = %d, want %d", got, DefaultBridgePort)
	}
	if got := cfg.GetKillTimeoutSec(); got != DefaultKillTimeoutSec {
		t.Errorf("GetKillTimeoutSec = %d, want %d", got, DefaultKillTimeoutSec)
	}
	if paths := cfg.GetProjectPaths(); paths == nil || len(paths) != 0 {
		t.Errorf("GetProjectPaths = %v, want empty non-nil slice", paths)
	}
}

func TestSaveAndReload(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	cfg.SetCLIPath("/usr/local/bin/claude")
	cfg.SetModel("sonnet")
	cfg.SetPermissionMode("acceptEdits")
	cfg.SetBridgePort(9000)
	cfg.SetDebug(true)
	cfg.AddProjectPath(tmpDir)

	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	if got := reloaded.GetCLIPath(); got != "/usr/local/bin/claude" {
		t.Errorf("CLIPath = %q after reload", got)
	}
	if got := reloaded.GetModel(); got != "sonnet" {
		t.Errorf("Model = %q after reload", got)
	}
	if got := reloaded.GetPermissionMode(); got != "acceptEdits" {
		t.Errorf("PermissionMode = %q after reload", got)
	}
	if got := reloaded.GetBridgePort(); got != 9000 {
		t.Errorf("BridgePort = %d after reload", got)
	}
	if !reloaded.GetDebug() {
		t.Error("Debug should survive reload")
	}
	paths := reloaded.GetProjectPaths()
	if len(paths) != 1 || !SamePath(paths[0], tmpDir) {
		t.Errorf("ProjectPaths = %v after reload, want [%s]", paths, tmpDir)
	}
}

func TestLoadFrom_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(path, []byte("cli_path: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFrom(path); err == nil {
		t.Error("LoadFrom should fail on invalid YAML")
	}
}

func TestValidate_PermissionMode(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(path, []byte("permission_mode: yolo\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFrom(path); err == nil {
		t.Error("LoadFrom should reject unknown permission_mode")
	}

	for _, mode := range ValidPermissionModes {
		cfg := testConfig(t)
		cfg.SetPermissionMode(mode)
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate rejected valid mode %q: %v", mode, err)
		}
	}
}

func TestValidate_BridgePort(t *testing.T) {
	cfg := testConfig(t)
	cfg.SetBridgePort(70000)
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should reject port > 65535")
	}

	cfg.SetBridgePort(8080)
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate rejected valid port: %v", err)
	}
}

func TestAddProjectPath(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()

	if !cfg.AddProjectPath(dir) {
		t.Error("first AddProjectPath should return true")
	}
	if cfg.AddProjectPath(dir) {
		t.Error("duplicate AddProjectPath should return false")
	}
	if got := len(cfg.GetProjectPaths()); got != 1 {
		t.Errorf("len(ProjectPaths) = %d, want 1", got)
	}
}

func TestRemoveProjectPath(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	cfg.AddProjectPath(dir)

	if !cfg.RemoveProjectPath(dir) {
		t.Error("RemoveProjectPath should return true for existing path")
	}
	if cfg.RemoveProjectPath(dir) {
		t.Error("RemoveProjectPath should return false for missing path")
	}
	if got := len(cfg.GetProjectPaths()); got != 0 {
		t.Errorf("len(ProjectPaths) = %d, want 0", got)
	}
}

func TestGetProjectPaths_ReturnsCopy(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	cfg.AddProjectPath(dir)

	paths := cfg.GetProjectPaths()
	paths[0] = "/mutated"

	if got := cfg.GetProjectPaths()[0]; got == "/mutated" {
		t.Error("GetProjectPaths should return a copy, not the backing slice")
	}
}

func TestSamePath(t *testing.T) {
	dir := t.TempDir()

	if !SamePath(dir, dir) {
		t.Error("identical strings should match")
	}
	if SamePath(dir, filepath.Join(dir, "sub")) {
		t.Error("different entries should not match")
	}
	if SamePath("/nonexistent/a", "/nonexistent/b") {
		t.Error("unreadable distinct paths should not match")
	}

	// Symlinked paths refer to the same entry
	link := filepath.Join(t.TempDir(), "link")
	if err := os.Symlink(dir, link); err != nil {
		t.Skipf("symlink not supported: %v", err)
	}
	if !SamePath(dir, link) {
		t.Error("symlink to same dir should match")
	}
}
