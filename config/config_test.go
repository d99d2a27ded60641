package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyEnvFileOverlaysRecognizedKeys(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "pna.env")
	content := "PNA_IFACE=eth1\nPNA_CONNECTIONS=64\nPNA_DEBUG=true\n"
	if err := os.WriteFile(envPath, []byte(content), 0600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg := Default()
	if err := applyEnvFile(&cfg, envPath); err != nil {
		t.Fatalf("applyEnvFile: %v", err)
	}
	if cfg.Iface != "eth1" {
		t.Fatalf("iface = %q, want eth1", cfg.Iface)
	}
	if cfg.Connections != 64 {
		t.Fatalf("connections = %d, want 64", cfg.Connections)
	}
	if !cfg.Debug {
		t.Fatalf("debug = false, want true")
	}
}

func TestThresholdsExtractsConfiguredCaps(t *testing.T) {
	cfg := Default()
	cfg.Connections = 10
	cfg.Bytes = 1 << 20
	th := cfg.Thresholds()
	if th.Connections != 10 || th.Bytes != 1<<20 {
		t.Fatalf("thresholds = %+v", th)
	}
}
