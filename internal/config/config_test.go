package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 11880 {
		t.Errorf("expected default LX200 port 11880, got %d", cfg.Server.Port)
	}
	if !cfg.Alt.Enabled || !cfg.Az.Enabled {
		t.Error("expected both axes enabled by default")
	}
	if cfg.Alt.Implementation != "fake" {
		t.Errorf("expected fake alt backend, got %s", cfg.Alt.Implementation)
	}
	if cfg.Camera.Enabled {
		t.Error("expected camera disabled by default")
	}
	if cfg.Mode() != "MOTORS_ONLY" {
		t.Errorf("expected default mode MOTORS_ONLY, got %s", cfg.Mode())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to validate, got: %v", err)
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.json")
	if err != nil {
		t.Fatalf("expected no error for non-existent file, got: %v", err)
	}
	if cfg.Server.Port != 11880 {
		t.Error("did not get default config for non-existent file")
	}
}

func TestLoadValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.json")

	testConfig := DefaultConfig()
	testConfig.Server.Port = 12000
	testConfig.Observer.Latitude = 35.5
	testConfig.Observer.Longitude = -80.8

	data, err := json.MarshalIndent(testConfig, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal test config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Server.Port != 12000 {
		t.Errorf("expected port 12000, got %d", cfg.Server.Port)
	}
	if cfg.Observer.Latitude != 35.5 {
		t.Errorf("expected latitude 35.5, got %f", cfg.Observer.Latitude)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.json")

	if err := os.WriteFile(configPath, []byte("{ invalid json }"), 0644); err != nil {
		t.Fatalf("failed to write invalid config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("expected error for invalid JSON, got nil")
	}
}

func TestLoadRejectsInvalidAxis(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad-axis.json")

	cfg := DefaultConfig()
	cfg.Alt.MaxVelocity = 0
	data, _ := json.Marshal(cfg)
	os.WriteFile(configPath, data, 0644)

	_, err := Load(configPath)
	if err == nil {
		t.Error("expected validation error for zero max_velocity")
	}
}

func TestSaveConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "saved-config.json")

	cfg := DefaultConfig()
	cfg.Server.Port = 9999

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("config file was not created")
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Server.Port != 9999 {
		t.Errorf("expected port 9999, got %d", loaded.Server.Port)
	}
}

func TestSaveConfigCreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "dir", "config.json")

	cfg := DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("failed to save config with nested directory: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	os.Setenv("MOUNTD_PORT", "7777")
	os.Setenv("MOUNTD_STORE_PASSWORD", "env-password")
	os.Setenv("MOUNTD_JWT_SECRET", "env-secret")
	defer func() {
		os.Unsetenv("MOUNTD_PORT")
		os.Unsetenv("MOUNTD_STORE_PASSWORD")
		os.Unsetenv("MOUNTD_JWT_SECRET")
	}()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")
	data, _ := json.Marshal(DefaultConfig())
	os.WriteFile(configPath, data, 0644)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Port != 7777 {
		t.Errorf("expected port 7777 from env, got %d", cfg.Server.Port)
	}
	if cfg.Store.Password != "env-password" {
		t.Errorf("expected env-password from env, got %s", cfg.Store.Password)
	}
	if cfg.Admin.JWTSecret != "env-secret" {
		t.Errorf("expected env-secret from env, got %s", cfg.Admin.JWTSecret)
	}
}

func TestModeDegradesByCapability(t *testing.T) {
	tests := []struct {
		name         string
		altEnabled   bool
		azEnabled    bool
		cameraEnable bool
		want         string
	}{
		{"both motors and camera", true, true, true, "CAMERA_AND_MOTORS"},
		{"motors only", true, true, false, "MOTORS_ONLY"},
		{"camera only", false, false, true, "CAMERA_ONLY"},
		{"neither", false, false, false, "NONE"},
		{"one axis missing counts as no motors", true, false, true, "CAMERA_ONLY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Alt.Enabled = tt.altEnabled
			cfg.Az.Enabled = tt.azEnabled
			cfg.Camera.Enabled = tt.cameraEnable
			if got := cfg.Mode(); got != tt.want {
				t.Errorf("Mode() = %s, want %s", got, tt.want)
			}
		})
	}
}
