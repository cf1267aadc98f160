package term

import (
	"bytes"
	"testing"
)

func TestStripQueries(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"dsr", "before\x1b[6nafter", "beforeafter"},
		{"dsr question mark", "before\x1b[?6nafter", "beforeafter"},
		{"da1", "before\x1b[cafter", "beforeafter"},
		{"da1 zero param", "before\x1b[0cafter", "beforeafter"},
		{"da2", "before\x1b[>cafter", "beforeafter"},
		{"da3", "before\x1b[=cafter", "beforeafter"},
		{"multiple queries", "start\x1b[6n\x1b[cmiddle\x1b[>c\x1b[=cend", "startmiddleend"},
		{"sgr preserved", "before\x1b[1mafter", "before\x1b[1mafter"},
		{"cursor movement preserved", "\x1b[H\x1b[2J", "\x1b[H\x1b[2J"},
		{"cursor position report preserved", "\x1b[12;40R", "\x1b[12;40R"},
		{"plain text", "plain text with no escapes", "plain text with no escapes"},
		{"empty", "", ""},
		{"bare esc at end", "text\x1b", "text\x1b"},
		{"incomplete csi at end", "text\x1b[", "text\x1b["},
		{"incomplete csi params at end", "text\x1b[38;5", "text\x1b[38;5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripQueries([]byte(tt.input))
			if !bytes.Equal(got, []byte(tt.want)) {
				t.Errorf("StripQueries(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseTitle(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      string
		wantFound bool
	}{
		{"osc0 bel", "\x1b]0;my-title\x07rest of data", "my-title", true},
		{"osc2 st", "\x1b]2;another title\x1b\\rest", "another title", true},
		{"embedded", "some output\x1b]0;new-title\x07more output", "new-title", true},
		{"first of several", "\x1b]0;one\x07\x1b]2;two\x07", "one", true},
		{"empty title", "\x1b]0;\x07", "", true},
		{"osc7 ignored", "\x1b]7;file:///tmp\x07", "", false},
		{"plain text", "plain text with no OSC", "", false},
		{"unterminated", "\x1b]0;never ends", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := ParseTitle([]byte(tt.input))
			if found != tt.wantFound || got != tt.want {
				t.Errorf("ParseTitle(%q) = (%q, %v), want (%q, %v)",
					tt.input, got, found, tt.want, tt.wantFound)
			}
		})
	}
}

func TestExtractNotificationsBel(t *testing.T) {
	cleaned, notifs := ExtractNotifications([]byte("before\x1b]9;hello notification\x07after"))
	if len(notifs) != 1 || notifs[0] != "hello notification" {
		t.Fatalf("notifications = %q, want [hello notification]", notifs)
	}
	if !bytes.Equal(cleaned, []byte("beforeafter")) {
		t.Errorf("cleaned = %q, want %q", cleaned, "beforeafter")
	}
}

func TestExtractNotificationsST(t *testing.T) {
	cleaned, notifs := ExtractNotifications([]byte("before\x1b]9;notify me\x1b\\after"))
	if len(notifs) != 1 || notifs[0] != "notify me" {
		t.Fatalf("notifications = %q, want [notify me]", notifs)
	}
	if !bytes.Equal(cleaned, []byte("beforeafter")) {
		t.Errorf("cleaned = %q, want %q", cleaned, "beforeafter")
	}
}

func TestExtractNotificationsMultiple(t *testing.T) {
	cleaned, notifs := ExtractNotifications([]byte("\x1b]9;first\x07middle\x1b]9;second\x07end"))
	if len(notifs) != 2 || notifs[0] != "first" || notifs[1] != "second" {
		t.Fatalf("notifications = %q, want [first second]", notifs)
	}
	if !bytes.Equal(cleaned, []byte("middleend")) {
		t.Errorf("cleaned = %q, want %q", cleaned, "middleend")
	}
}

func TestExtractNotificationsNone(t *testing.T) {
	cleaned, notifs := ExtractNotifications([]byte("plain text"))
	if len(notifs) != 0 {
		t.Fatalf("notifications = %q, want none", notifs)
	}
	if !bytes.Equal(cleaned, []byte("plain text")) {
		t.Errorf("cleaned = %q, want %q", cleaned, "plain text")
	}
}

func TestExtractNotificationsUnterminated(t *testing.T) {
	input := []byte("data\x1b]9;unterminated")
	cleaned, notifs := ExtractNotifications(input)
	if len(notifs) != 0 {
		t.Fatalf("notifications = %q, want none", notifs)
	}
	if !bytes.Equal(cleaned, input) {
		t.Errorf("cleaned = %q, want the input preserved", cleaned)
	}
}

func TestExtractLeavesTitleSequences(t *testing.T) {
	input := []byte("\x1b]0;a-title\x07output")
	cleaned, notifs := ExtractNotifications(input)
	if len(notifs) != 0 {
		t.Fatalf("notifications = %q, want none", notifs)
	}
	if !bytes.Equal(cleaned, input) {
		t.Errorf("cleaned = %q, want title sequence untouched", cleaned)
	}
}
