package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_MissingDefaultFileFallsBack(t *testing.T) {
	t.Chdir(t.TempDir())
	cfgPath = "config.yaml"

	cfg := loadConfig(rootCmd)
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want default 8080", cfg.Server.Port)
	}
}

func TestLoadConfig_ExplicitFlag(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "agent.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9100\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { cfgPath = "config.yaml" })

	if err := rootCmd.ParseFlags([]string{"--config", path}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if !rootCmd.Flags().Changed("config") {
		t.Fatal("config flag not marked as changed")
	}

	cfg := loadConfig(rootCmd)
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, want 9100", cfg.Server.Port)
	}
}
