// Package config defines the host's data-directory layout and runtime
// tunables. Every tunable has a compiled-in default; an optional
// $HOME/.relay-tty/host.yaml can override individual values, which also
// lets tests compress the protocol's timers.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// HostConfigFile is the optional overrides file inside the data directory.
const HostConfigFile = "host.yaml"

// Config carries the resolved paths and tunables for one host process.
type Config struct {
	// DataDir is the root of all session state, normally $HOME/.relay-tty.
	DataDir string

	RingSize        int
	GzipThreshold   int
	ClientQueueSize int

	ResumeWindow      time.Duration
	IdleTimeout       time.Duration
	IdleCheckInterval time.Duration
	FlushInterval     time.Duration
	MetricsInterval   time.Duration
	DrainDelay        time.Duration
}

// fileOverrides is the YAML shape of host.yaml. Durations are plain
// millisecond counts so the file needs no custom parsing.
type fileOverrides struct {
	RingSize        *int `yaml:"ringSize"`
	GzipThreshold   *int `yaml:"gzipThreshold"`
	ClientQueueSize *int `yaml:"clientQueueSize"`

	ResumeWindowMs      *int `yaml:"resumeWindowMs"`
	IdleTimeoutMs       *int `yaml:"idleTimeoutMs"`
	IdleCheckIntervalMs *int `yaml:"idleCheckIntervalMs"`
	FlushIntervalMs     *int `yaml:"flushIntervalMs"`
	MetricsIntervalMs   *int `yaml:"metricsIntervalMs"`
	DrainDelayMs        *int `yaml:"drainDelayMs"`
}

// Default returns the stock tunables rooted at the given data directory.
func Default(dataDir string) *Config {
	return &Config{
		DataDir:           dataDir,
		RingSize:          10 * 1024 * 1024,
		GzipThreshold:     4096,
		ClientQueueSize:   256,
		ResumeWindow:      100 * time.Millisecond,
		IdleTimeout:       60 * time.Second,
		IdleCheckInterval: 5 * time.Second,
		FlushInterval:     5 * time.Second,
		MetricsInterval:   3 * time.Second,
		DrainDelay:        time.Second,
	}
}

// Load resolves the configuration for the given home directory, applying
// host.yaml overrides when the file exists. A malformed file is an error;
// a missing one is not.
func Load(home string) (*Config, error) {
	cfg := Default(filepath.Join(home, ".relay-tty"))

	data, err := os.ReadFile(filepath.Join(cfg.DataDir, HostConfigFile))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", HostConfigFile, err)
	}

	var ov fileOverrides
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", HostConfigFile, err)
	}
	cfg.apply(&ov)
	return cfg, nil
}

func (c *Config) apply(ov *fileOverrides) {
	setInt := func(dst *int, src *int) {
		if src != nil && *src > 0 {
			*dst = *src
		}
	}
	setDur := func(dst *time.Duration, src *int) {
		if src != nil && *src > 0 {
			*dst = time.Duration(*src) * time.Millisecond
		}
	}
	setInt(&c.RingSize, ov.RingSize)
	setInt(&c.GzipThreshold, ov.GzipThreshold)
	setInt(&c.ClientQueueSize, ov.ClientQueueSize)
	setDur(&c.ResumeWindow, ov.ResumeWindowMs)
	setDur(&c.IdleTimeout, ov.IdleTimeoutMs)
	setDur(&c.IdleCheckInterval, ov.IdleCheckIntervalMs)
	setDur(&c.FlushInterval, ov.FlushIntervalMs)
	setDur(&c.MetricsInterval, ov.MetricsIntervalMs)
	setDur(&c.DrainDelay, ov.DrainDelayMs)
}

// SocketsDir is where session sockets live.
func (c *Config) SocketsDir() string { return filepath.Join(c.DataDir, "sockets") }

// SessionsDir is where session metadata documents live.
func (c *Config) SessionsDir() string { return filepath.Join(c.DataDir, "sessions") }

// SocketPath returns the socket path for a session id.
func (c *Config) SocketPath(id string) string {
	return filepath.Join(c.SocketsDir(), id+".sock")
}

// SessionPath returns the metadata path for a session id.
func (c *Config) SessionPath(id string) string {
	return filepath.Join(c.SessionsDir(), id+".json")
}

// EnsureDirs creates the data directory tree.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.SocketsDir(), c.SessionsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	return nil
}
