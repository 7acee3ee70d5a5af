package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OBJSTORE_CONFIG", "")
	t.Setenv("STORAGE_BACKEND", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIAddr != ":8080" {
		t.Errorf("APIAddr = %q, want %q", cfg.APIAddr, ":8080")
	}
	if cfg.Storage.Backend != StorageBackendMemory {
		t.Errorf("Backend = %q, want %q", cfg.Storage.Backend, StorageBackendMemory)
	}
	if cfg.DefaultBranch != "master" {
		t.Errorf("DefaultBranch = %q, want %q", cfg.DefaultBranch, "master")
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "objstore.toml")
	data := `
api_addr = ":9090"
log_level = "debug"
shutdown_timeout = "10s"

[storage]
backend = "keydb"
autosave = true

[storage.keydb]
addr = "keydb:6379"
db = 2
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("OBJSTORE_CONFIG", path)
	t.Setenv("KEYDB_DB", "5")
	t.Setenv("API_ADDR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIAddr != ":9090" {
		t.Errorf("APIAddr = %q, want %q", cfg.APIAddr, ":9090")
	}
	if cfg.ShutdownTimeout.Duration != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
	if cfg.Storage.Backend != StorageBackendKeyDB || !cfg.Storage.AutoSave {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Storage.KeyDB.Addr != "keydb:6379" {
		t.Errorf("KeyDB.Addr = %q", cfg.Storage.KeyDB.Addr)
	}
	if cfg.Storage.KeyDB.Database != 5 {
		t.Errorf("KeyDB.Database = %d, want 5 (env override)", cfg.Storage.KeyDB.Database)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel = %v", cfg.SlogLevel())
	}
}

func TestLoadFileMissingIsNotAnError(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.APIAddr != Defaults().APIAddr {
		t.Errorf("APIAddr = %q", cfg.APIAddr)
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	t.Setenv("OBJSTORE_CONFIG", "")
	t.Setenv("STORAGE_BACKEND", "floppy")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
