package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.RingSize != 10*1024*1024 {
		t.Errorf("RingSize = %d, want 10MiB", cfg.RingSize)
	}
	if cfg.GzipThreshold != 4096 {
		t.Errorf("GzipThreshold = %d, want 4096", cfg.GzipThreshold)
	}
	if cfg.ResumeWindow != 100*time.Millisecond {
		t.Errorf("ResumeWindow = %v, want 100ms", cfg.ResumeWindow)
	}
	if cfg.IdleTimeout != 60*time.Second {
		t.Errorf("IdleTimeout = %v, want 60s", cfg.IdleTimeout)
	}
	if cfg.FlushInterval != 5*time.Second {
		t.Errorf("FlushInterval = %v, want 5s", cfg.FlushInterval)
	}
	if cfg.MetricsInterval != 3*time.Second {
		t.Errorf("MetricsInterval = %v, want 3s", cfg.MetricsInterval)
	}
	if cfg.DrainDelay != time.Second {
		t.Errorf("DrainDelay = %v, want 1s", cfg.DrainDelay)
	}
	if cfg.ClientQueueSize != 256 {
		t.Errorf("ClientQueueSize = %d, want 256", cfg.ClientQueueSize)
	}
}

func TestPaths(t *testing.T) {
	home := t.TempDir()
	cfg, err := Load(home)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DataDir != filepath.Join(home, ".relay-tty") {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if got := cfg.SocketPath("abc"); got != filepath.Join(home, ".relay-tty", "sockets", "abc.sock") {
		t.Errorf("SocketPath = %q", got)
	}
	if got := cfg.SessionPath("abc"); got != filepath.Join(home, ".relay-tty", "sessions", "abc.json") {
		t.Errorf("SessionPath = %q", got)
	}
}

func TestYAMLOverrides(t *testing.T) {
	home := t.TempDir()
	dataDir := filepath.Join(home, ".relay-tty")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	overrides := "ringSize: 4096\nidleTimeoutMs: 250\nresumeWindowMs: 50\n"
	if err := os.WriteFile(filepath.Join(dataDir, HostConfigFile), []byte(overrides), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(home)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RingSize != 4096 {
		t.Errorf("RingSize = %d, want 4096", cfg.RingSize)
	}
	if cfg.IdleTimeout != 250*time.Millisecond {
		t.Errorf("IdleTimeout = %v, want 250ms", cfg.IdleTimeout)
	}
	if cfg.ResumeWindow != 50*time.Millisecond {
		t.Errorf("ResumeWindow = %v, want 50ms", cfg.ResumeWindow)
	}
	// Untouched values stay at their defaults.
	if cfg.GzipThreshold != 4096 {
		t.Errorf("GzipThreshold = %d, want default 4096", cfg.GzipThreshold)
	}
}

func TestMalformedYAMLIsAnError(t *testing.T) {
	home := t.TempDir()
	dataDir := filepath.Join(home, ".relay-tty")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, HostConfigFile), []byte("ringSize: ["), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load(home); err == nil {
		t.Error("Load accepted a malformed host.yaml")
	}
}

func TestEnsureDirs(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}

	for _, dir := range []string{cfg.DataDir, cfg.SocketsDir(), cfg.SessionsDir()} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("missing directory %s: %v", dir, err)
		}
	}
}
