package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewSettingsStore(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "sftpane-settings-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	store, err := NewSettingsStore(tempDir)
	if err != nil {
		t.Fatalf("NewSettingsStore failed: %v", err)
	}

	settings := store.Get()
	if settings.Concurrency != DefaultConcurrency {
		t.Errorf("Expected concurrency %d, got %d", DefaultConcurrency, settings.Concurrency)
	}
	if settings.ChunkSize != DefaultChunkSize {
		t.Errorf("Expected chunk size %d, got %d", DefaultChunkSize, settings.ChunkSize)
	}
	if settings.ShowHidden {
		t.Error("Expected hidden files to be hidden by default")
	}
	if settings.DefaultPort != 22 {
		t.Errorf("Expected default port 22, got %d", settings.DefaultPort)
	}

	if _, err := os.Stat(filepath.Join(tempDir, "settings.json")); os.IsNotExist(err) {
		t.Error("settings.json was not created")
	}
}

func TestSetShowHiddenPersists(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "sftpane-hidden-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tempDir)

	store, err := NewSettingsStore(tempDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SetShowHidden(true); err != nil {
		t.Fatalf("SetShowHidden failed: %v", err)
	}
	if !store.Get().ShowHidden {
		t.Error("ShowHidden not updated in memory")
	}

	newStore, err := NewSettingsStore(tempDir)
	if err != nil {
		t.Fatal(err)
	}
	if !newStore.Get().ShowHidden {
		t.Error("ShowHidden not persisted to disk")
	}
}

func TestUpdateValidates(t *testing.T) {
	store, err := NewSettingsStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	settings := store.Get()
	settings.Concurrency = 0
	if err := store.Update(settings); err == nil {
		t.Error("Expected Update to reject zero concurrency")
	}

	settings = store.Get()
	settings.Concurrency = 8
	settings.ChunkSize = 256 << 10
	if err := store.Update(settings); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got := store.Get(); got.Concurrency != 8 || got.ChunkSize != 256<<10 {
		t.Errorf("Update not applied: %+v", got)
	}

	if err := store.SetConcurrency(100); err == nil {
		t.Error("Expected SetConcurrency to reject out of range value")
	}
}

func TestLoadKeepsDefaultsForMissingFields(t *testing.T) {
	tempDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tempDir, "settings.json"), []byte(`{"showHidden": true}`), 0600); err != nil {
		t.Fatal(err)
	}

	store, err := NewSettingsStore(tempDir)
	if err != nil {
		t.Fatal(err)
	}
	settings := store.Get()
	if !settings.ShowHidden {
		t.Error("ShowHidden from file was ignored")
	}
	if settings.Concurrency != DefaultConcurrency || settings.ChunkSize != DefaultChunkSize {
		t.Errorf("missing fields did not fall back to defaults: %+v", settings)
	}
}

func TestLoadResetsInvalidValues(t *testing.T) {
	tempDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tempDir, "settings.json"), []byte(`{"concurrency": -3, "chunkSize": 1}`), 0600); err != nil {
		t.Fatal(err)
	}

	store, err := NewSettingsStore(tempDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Get().Validate(); err != nil {
		t.Errorf("loaded settings are invalid: %v", err)
	}
}

func TestReset(t *testing.T) {
	store, err := NewSettingsStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SetConcurrency(2); err != nil {
		t.Fatal(err)
	}
	if err := store.Reset(); err != nil {
		t.Fatal(err)
	}
	if store.Get().Concurrency != DefaultConcurrency {
		t.Error("Reset did not restore defaults")
	}
}
