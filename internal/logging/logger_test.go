package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want LogLevel
	}{
		{"silent", LogLevelSilent},
		{"error", LogLevelError},
		{"info", LogLevelInfo},
		{"verbose", LogLevelVerbose},
		{"debug", LogLevelDebug},
		{"", LogLevelInfo},
		{"bogus", LogLevelInfo},
	}
	for _, c := range cases {
		if got := ParseLevel(c.in); got != c.want {
			t.Errorf("ParseLevel(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldsim.log")
	l, err := NewLogger(LogLevelDebug, path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	l.Info("hello %d", 42)
	l.LogHex("frame", []byte{0xC0, 0x00, 0x02})
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, "INFO: hello 42") {
		t.Errorf("log file missing info line:\n%s", s)
	}
	if !strings.Contains(s, "frame: c0 00 02") {
		t.Errorf("log file missing hex dump:\n%s", s)
	}
}

func TestLevelGate(t *testing.T) {
	l, err := NewLogger(LogLevelError, "")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer l.Close()

	if l.GetLevel() != LogLevelError {
		t.Errorf("GetLevel = %d, want %d", l.GetLevel(), LogLevelError)
	}
	l.SetLevel(LogLevelVerbose)
	if l.GetLevel() != LogLevelVerbose {
		t.Errorf("GetLevel = %d, want %d", l.GetLevel(), LogLevelVerbose)
	}
}
