package main

import (
	"slices"
	"strings"
	"testing"
)

func TestParseDim(t *testing.T) {
	tests := []struct {
		in       string
		fallback uint16
		want     uint16
	}{
		{"120", 80, 120},
		{"80", 80, 80},
		{"0", 80, 80},
		{"-5", 80, 80},
		{"not-a-number", 24, 24},
		{"65536", 24, 24},
	}
	for _, tt := range tests {
		if got := parseDim(tt.in, tt.fallback); got != tt.want {
			t.Errorf("parseDim(%q, %d) = %d, want %d", tt.in, tt.fallback, got, tt.want)
		}
	}
}

func TestDisplayOverrides(t *testing.T) {
	t.Setenv("RELAY_ORIG_COMMAND", "my-original-cmd")
	t.Setenv("RELAY_ORIG_ARGS", `["--flag","value"]`)

	cmd, args := displayOverrides("/bin/zsh", []string{"-l", "-c", "my-original-cmd --flag value"})
	if cmd != "my-original-cmd" {
		t.Errorf("command = %q, want my-original-cmd", cmd)
	}
	if !slices.Equal(args, []string{"--flag", "value"}) {
		t.Errorf("args = %q, want [--flag value]", args)
	}
}

func TestDisplayOverridesAbsent(t *testing.T) {
	t.Setenv("RELAY_ORIG_COMMAND", "")
	t.Setenv("RELAY_ORIG_ARGS", "")

	cmd, args := displayOverrides("vim", []string{"file.txt"})
	if cmd != "vim" || !slices.Equal(args, []string{"file.txt"}) {
		t.Errorf("got (%q, %q), want the argv values back", cmd, args)
	}
}

func TestDisplayOverridesMalformedArgs(t *testing.T) {
	t.Setenv("RELAY_ORIG_ARGS", "not json at all")

	_, args := displayOverrides("vim", []string{"file.txt"})
	if !slices.Equal(args, []string{"file.txt"}) {
		t.Errorf("args = %q, want fallback to argv tail", args)
	}
}

func TestChildEnv(t *testing.T) {
	in := []string{
		"HOME=/home/u",
		"RELAY_ORIG_COMMAND=zsh",
		"RELAY_ORIG_ARGS=[]",
		"TERM=screen",
		"PATH=/usr/bin",
	}
	out := childEnv(in)

	for _, kv := range out {
		if strings.HasPrefix(kv, "RELAY_ORIG_") {
			t.Errorf("passthrough variable leaked to child: %q", kv)
		}
	}
	if !slices.Contains(out, "TERM=xterm-256color") {
		t.Errorf("TERM not pinned: %q", out)
	}
	if !slices.Contains(out, "HOME=/home/u") || !slices.Contains(out, "PATH=/usr/bin") {
		t.Errorf("unrelated variables dropped: %q", out)
	}
	if slices.Contains(out, "TERM=screen") {
		t.Errorf("stale TERM kept: %q", out)
	}
}
