package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/quocson95/sftpane/pkg/storage"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootRequiresDestination(t *testing.T) {
	if _, err := execute(t, "--config-dir", t.TempDir()); err == nil {
		t.Fatal("expected an error without a destination")
	}
}

func TestHostsCommand(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "hosts", "--config-dir", dir)
	if err != nil {
		t.Fatalf("hosts failed: %v", err)
	}
	if !strings.Contains(out, "No hosts remembered yet.") {
		t.Errorf("unexpected output %q", out)
	}

	store, err := storage.NewHostStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Remember(storage.HostProfile{Host: "files.example.com", Port: 2222, Username: "deploy", LastRemoteDir: "/var/www"}); err != nil {
		t.Fatal(err)
	}

	out, err = execute(t, "hosts", "--config-dir", dir)
	if err != nil {
		t.Fatalf("hosts failed: %v", err)
	}
	for _, want := range []string{"files.example.com", "2222", "deploy", "/var/www"} {
		if !strings.Contains(out, want) {
			t.Errorf("output is missing %q:\n%s", want, out)
		}
	}

	if _, err := execute(t, "hosts", "forget", "FILES.example.com", "--config-dir", dir); err != nil {
		t.Fatalf("forget failed: %v", err)
	}
	if _, err := execute(t, "hosts", "forget", "files.example.com", "--config-dir", dir); err == nil {
		t.Error("forgetting twice should fail")
	}
}

func TestFirstValues(t *testing.T) {
	if got := firstPositive(0, -1, 2222, 22); got != 2222 {
		t.Errorf("firstPositive = %d", got)
	}
	if got := firstPositive(0, 0); got != 0 {
		t.Errorf("firstPositive of nothing = %d", got)
	}
	if got := firstNonEmpty("", "deploy", "root"); got != "deploy" {
		t.Errorf("firstNonEmpty = %q", got)
	}
}

func TestSettingsCommand(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "settings", "--config-dir", dir)
	if err != nil {
		t.Fatalf("settings failed: %v", err)
	}
	for _, want := range []string{"concurrency", "1.0 MiB", "(local user)", "Stored in " + dir} {
		if !strings.Contains(out, want) {
			t.Errorf("output is missing %q:\n%s", want, out)
		}
	}

	if _, err := execute(t, "settings", "set", "chunk-size", "256KiB", "--config-dir", dir); err != nil {
		t.Fatalf("set chunk-size failed: %v", err)
	}
	if _, err := execute(t, "settings", "set", "show-hidden", "true", "--config-dir", dir); err != nil {
		t.Fatalf("set show-hidden failed: %v", err)
	}
	store, err := storage.NewSettingsStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if s := store.Get(); s.ChunkSize != 256<<10 || !s.ShowHidden {
		t.Errorf("settings not saved: %+v", s)
	}

	if _, err := execute(t, "settings", "set", "concurrency", "0", "--config-dir", dir); err == nil {
		t.Error("expected an out-of-range concurrency to be rejected")
	}
	if _, err := execute(t, "settings", "set", "colour", "blue", "--config-dir", dir); err == nil {
		t.Error("expected an unknown setting to be rejected")
	}

	if _, err := execute(t, "settings", "reset", "--config-dir", dir); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	store, err = storage.NewSettingsStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if s := store.Get(); s.ChunkSize != storage.DefaultChunkSize || s.ShowHidden {
		t.Errorf("settings not reset: %+v", s)
	}
}

func TestConcurrencyFlagIsRemembered(t *testing.T) {
	dir := t.TempDir()

	// The port makes the destination invalid, so run stops before dialing.
	if _, err := execute(t, "--config-dir", dir, "--concurrency", "6", "files.example.com:0"); err == nil {
		t.Fatal("expected the invalid destination to fail")
	}
	store, err := storage.NewSettingsStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got := store.Get().Concurrency; got != 6 {
		t.Errorf("concurrency = %d, want 6", got)
	}

	_, err = execute(t, "--config-dir", dir, "--concurrency", "99", "files.example.com")
	if err == nil || !strings.Contains(err.Error(), "--concurrency") {
		t.Errorf("expected --concurrency to be rejected, got %v", err)
	}
}
