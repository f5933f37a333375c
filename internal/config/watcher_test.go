package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTestConfig(t *testing.T, path, logLevel string) {
	t.Helper()
	content := `
server:
  log_level: ` + logLevel + `
roles:
  engineer:
    name: engineer
    kg:
      path: /tmp/kg
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeTestConfig(t, path, "info")

	reloaded := make(chan struct{}, 1)
	w, err := NewWatcher(path, func(old, new *Config) {
		reloaded <- struct{}{}
	}, WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if w.Current().Server.LogLevel != LogInfo {
		t.Fatalf("got initial log level %q", w.Current().Server.LogLevel)
	}

	time.Sleep(30 * time.Millisecond) // ensure mtime resolution advances
	writeTestConfig(t, path, "debug")

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	if w.Current().Server.LogLevel != LogDebug {
		t.Fatalf("got reloaded log level %q", w.Current().Server.LogLevel)
	}
}

func TestWatcherIgnoresInvalidReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeTestConfig(t, path, "info")

	w, err := NewWatcher(path, nil, WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	time.Sleep(30 * time.Millisecond)
	if err := os.WriteFile(path, []byte("server:\n  log_level: not-a-level\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	if w.Current().Server.LogLevel != LogInfo {
		t.Fatalf("want watcher to keep last valid config, got %q", w.Current().Server.LogLevel)
	}
}
