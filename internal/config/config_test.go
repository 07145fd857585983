package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCreateDefaultIsValid(t *testing.T) {
	cfg := CreateDefault()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.FINS.Port != 9600 {
		t.Errorf("FINS port = %d, want 9600", cfg.FINS.Port)
	}
	if cfg.Melsec.Devices["D"].Points() != 4096 {
		t.Errorf("D points = %d, want 4096", cfg.Melsec.Devices["D"].Points())
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Melsec.Port != 5007 {
		t.Errorf("Melsec port = %d, want 5007", cfg.Melsec.Port)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldsim.yaml")
	doc := `
fins:
  listen_ip: 127.0.0.1
  port: 19600
melsec:
  port: 15007
  devices:
    D: {range: [0, 999]}
    M: {range: [0, 255]}
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FINS.Port != 19600 {
		t.Errorf("FINS port = %d, want 19600", cfg.FINS.Port)
	}
	if cfg.FINS.ListenIP != "127.0.0.1" {
		t.Errorf("FINS listen IP = %s, want 127.0.0.1", cfg.FINS.ListenIP)
	}
	// Defaults not named in the file must survive the merge.
	if cfg.FINS.Areas.Data != 4096 {
		t.Errorf("FINS data area = %d, want default 4096", cfg.FINS.Areas.Data)
	}
	if cfg.Melsec.Devices["D"].Points() != 1000 {
		t.Errorf("D points = %d, want 1000", cfg.Melsec.Devices["D"].Points())
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level = %s, want debug", cfg.Logging.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad fins port", func(c *Config) { c.FINS.Port = 0 }},
		{"bad melsec port", func(c *Config) { c.Melsec.Port = 70000 }},
		{"zero area", func(c *Config) { c.FINS.Areas.Data = 0 }},
		{"no devices", func(c *Config) { c.Melsec.Devices = nil }},
		{"inverted range", func(c *Config) { c.Melsec.Devices = map[string]DeviceRange{"D": {Range: [2]int{10, 5}}} }},
		{"negative timeout", func(c *Config) { c.Melsec.ReadTimeoutMs = -1 }},
		{"sim without tick", func(c *Config) { c.FINS.Sim = SimConfig{Enable: true, TickMs: 0} }},
	}
	for _, tc := range cases {
		cfg := CreateDefault()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("fins: [not a map"), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
