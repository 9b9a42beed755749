package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `source: otlp-file
otlp_dir: /var/traces
poll_interval_ms: 250
webui_port: 9000
verbose: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadConfigFromFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFromFile failed: %v", err)
	}

	if cfg.Source != "otlp-file" {
		t.Errorf("Source = %q, expected otlp-file", cfg.Source)
	}
	if cfg.OTLPDir != "/var/traces" {
		t.Errorf("OTLPDir = %q, expected /var/traces", cfg.OTLPDir)
	}
	if cfg.PollIntervalMs != 250 {
		t.Errorf("PollIntervalMs = %d, expected 250", cfg.PollIntervalMs)
	}
	if cfg.WebUIPort != 9000 {
		t.Errorf("WebUIPort = %d, expected 9000", cfg.WebUIPort)
	}
	if !cfg.Verbose {
		t.Error("Verbose should be true")
	}
}

func TestLoadConfigFromFileMissing(t *testing.T) {
	if _, err := LoadConfigFromFile("/does/not/exist.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadConfigFromFileInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("source: [unclosed"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	if _, err := LoadConfigFromFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestMergeConfigs(t *testing.T) {
	base := DefaultConfig()
	overlay := &Config{
		Source:  "otlp-file",
		OTLPDir: "/traces",
		Verbose: true,
	}

	merged := MergeConfigs(base, overlay)

	if merged.Source != "otlp-file" {
		t.Errorf("overlay source should win, got %q", merged.Source)
	}
	if merged.OTLPDir != "/traces" {
		t.Errorf("overlay otlp_dir should win, got %q", merged.OTLPDir)
	}
	if !merged.Verbose {
		t.Error("overlay verbose should win")
	}
	// Untouched fields keep the base values.
	if merged.PollIntervalMs != base.PollIntervalMs {
		t.Errorf("PollIntervalMs = %d, expected base %d", merged.PollIntervalMs, base.PollIntervalMs)
	}
	if merged.WebUIPort != base.WebUIPort {
		t.Errorf("WebUIPort = %d, expected base %d", merged.WebUIPort, base.WebUIPort)
	}
}

func TestMergeConfigsNil(t *testing.T) {
	base := DefaultConfig()
	if got := MergeConfigs(base, nil); got != base {
		t.Error("nil overlay should return base unchanged")
	}
	if got := MergeConfigs(nil, &Config{Source: "demo"}); got.Source != "demo" {
		t.Error("nil base should still take overlay values")
	}
}

func TestLoadEffectiveConfigExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "explicit.yaml")
	if err := os.WriteFile(path, []byte("poll_interval_ms: 50\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadEffectiveConfig(path)
	if err != nil {
		t.Fatalf("LoadEffectiveConfig failed: %v", err)
	}

	if cfg.PollIntervalMs != 50 {
		t.Errorf("PollIntervalMs = %d, expected 50 from explicit file", cfg.PollIntervalMs)
	}
	// Defaults fill the gaps.
	if cfg.Source != "demo" {
		t.Errorf("Source = %q, expected default demo", cfg.Source)
	}
}

func TestLoadEffectiveConfigExplicitPathMissing(t *testing.T) {
	if _, err := LoadEffectiveConfig("/does/not/exist.yaml"); err == nil {
		t.Error("explicit missing config file should fail")
	}
}
