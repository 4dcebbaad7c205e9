package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/mortality-audit/internal/config"
)

func TestNewJSONWritesToOutputPath(t *testing.T) {
	out := filepath.Join(t.TempDir(), "app.log")
	log, err := New(config.LogConfig{Level: "info", Format: "json", OutputPath: out})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	log.Info("dataset stored")
	log.Debug("hidden")
	_ = log.Sync()

	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, `"msg":"dataset stored"`) {
		t.Fatalf("expected json entry, got %q", s)
	}
	if strings.Contains(s, "hidden") {
		t.Fatalf("debug entry should be filtered at info level")
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(config.LogConfig{Level: "loud", Format: "console"}); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}
