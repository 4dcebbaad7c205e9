package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.ServerPort != 8080 || c.PreviewRows != 20 || c.HistogramBins != 20 || c.DurationBins != 10 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.Addr() != "127.0.0.1:8080" {
		t.Fatalf("addr: %s", c.Addr())
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestSaveLoadRoundTripAndEnvOverride(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	c.ServerPort = 9090
	c.LogFormat = "json"
	if err := Save(c, ""); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, ".mortaudit", "config.yaml")); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	got, err := Load("")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.ServerPort != 9090 || got.LogFormat != "json" {
		t.Fatalf("round trip lost values: %+v", got)
	}

	t.Setenv("MORTAUDIT_SERVER_PORT", "7070")
	got, err = Load("")
	if err != nil {
		t.Fatalf("reload with env: %v", err)
	}
	if got.ServerPort != 7070 {
		t.Fatalf("env should override file, got %d", got.ServerPort)
	}
}

func TestLoadExplicitFileAndMalformed(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	p := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(p, []byte("server_port: 6000\nmax_rows: 10\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.ServerPort != 6000 || c.MaxRows != 10 {
		t.Fatalf("unexpected: %+v", c)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("server_port: [oops\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Fatalf("expected error for malformed config")
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	c.LogFormat = "xml"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected log_format error")
	}
	c.LogFormat = "console"
	c.ServerPort = 0
	if err := c.Validate(); err == nil {
		t.Fatalf("expected port error")
	}
	c.ServerPort = 8080
	c.DurationBins = 0
	if err := c.Validate(); err == nil {
		t.Fatalf("expected duration_bins error")
	}
}
