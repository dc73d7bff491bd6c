// Package config loads, validates, and saves the mount daemon's JSON
// configuration, following pkg/config/config.go's Load/Save shape:
// os.Stat to fall back to defaults when the file is absent,
// json.Unmarshal, environment-variable overrides applied after parse,
// Save round-trips via json.MarshalIndent.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the complete mount daemon configuration.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Alt      AxisConfig     `json:"alt"`
	Az       AxisConfig     `json:"az"`
	Camera   CameraConfig   `json:"camera"`
	Observer ObserverConfig `json:"observer"`
	Store    StoreConfig    `json:"store"`
	Admin    AdminConfig    `json:"admin"`
}

// ServerConfig contains the LX200 ASCII TCP listener settings.
type ServerConfig struct {
	// Host is the bind address (default: "0.0.0.0").
	Host string `json:"host"`

	// Port is the LX200 TCP port (default: 11880).
	Port int `json:"port"`
}

// AxisConfig describes one stepper axis (alt or az).
type AxisConfig struct {
	// Implementation names the registered motor.Backend tag, e.g.
	// "phidgets" or "fake".
	Implementation string `json:"implementation"`

	// Port is the hardware hub/serial port identifier.
	Port string `json:"port"`

	// ConversionFactor is degrees per step (gear-reduction factor).
	ConversionFactor float64 `json:"conversion_factor"`

	// MaxVelocity is the maximum angular velocity in degrees/sec.
	MaxVelocity float64 `json:"max_velocity"`

	// MaxAcceleration is the maximum angular acceleration in degrees/sec².
	MaxAcceleration float64 `json:"max_acceleration"`

	// Enabled determines whether this axis is configured at all. An
	// absent/disabled axis degrades the controller mode.
	Enabled bool `json:"enabled"`
}

// CameraConfig describes the plate-solving camera, if any.
type CameraConfig struct {
	// Implementation names the registered camera.Camera tag.
	Implementation string `json:"implementation"`

	// Port is the hardware hub/serial port identifier.
	Port string `json:"port"`

	// FocalLengthMM is the optical focal length in millimeters, used by
	// the plate solver to establish field-of-view scale.
	FocalLengthMM float64 `json:"focal_length_mm"`

	// Enabled determines whether the camera/plate-solve loop runs at all.
	Enabled bool `json:"enabled"`
}

// ObserverConfig contains the observer's geographic location, used by
// the skymath collaborator for AltAz⇄RaDec conversion.
type ObserverConfig struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation"`
}

// StoreConfig contains optional Postgres persistence settings for
// alignment history and session events.
type StoreConfig struct {
	Enabled      bool   `json:"enabled"`
	Host         string `json:"host"`
	Port         int    `json:"port"`
	Database     string `json:"database"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	SSLMode      string `json:"ssl_mode"`
	MaxOpenConns int    `json:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns"`
}

// AdminConfig contains optional HTTP admin/status API settings.
type AdminConfig struct {
	Enabled       bool   `json:"enabled"`
	Host          string `json:"host"`
	Port          int    `json:"port"`
	JWTSecret     string `json:"jwt_secret"`
	TokenDuration string `json:"token_duration"`
}

// Load reads configuration from a JSON file. If the file doesn't
// exist, returns a default configuration.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration to a JSON file, creating missing
// parent directories.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a configuration wired to the emulated "fake"
// backends, suitable for the bundled demo/emulation mode.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 11880,
		},
		Alt: AxisConfig{
			Implementation:   "fake",
			ConversionFactor: 0.001,
			MaxVelocity:      1440.0,
			MaxAcceleration:  720.0,
			Enabled:          true,
		},
		Az: AxisConfig{
			Implementation:   "fake",
			ConversionFactor: 0.001,
			MaxVelocity:      1440.0,
			MaxAcceleration:  720.0,
			Enabled:          true,
		},
		Camera: CameraConfig{
			Implementation: "fake",
			FocalLengthMM:  250.0,
			Enabled:        false,
		},
		Observer: ObserverConfig{
			Latitude:  0.0,
			Longitude: 0.0,
			Elevation: 0.0,
		},
		Store: StoreConfig{
			Enabled:      false,
			Port:         5432,
			SSLMode:      "disable",
			MaxOpenConns: 10,
			MaxIdleConns: 2,
		},
		Admin: AdminConfig{
			Enabled:       false,
			Host:          "0.0.0.0",
			Port:          8081,
			TokenDuration: "24h",
		},
	}
}

// Validate checks the configuration for structural errors a malformed
// or hand-edited JSON file could introduce.
func (c *Config) Validate() error {
	if c.Alt.Enabled {
		if err := c.Alt.validate("alt"); err != nil {
			return err
		}
	}
	if c.Az.Enabled {
		if err := c.Az.validate("az"); err != nil {
			return err
		}
	}
	if c.Camera.Enabled && c.Camera.Implementation == "" {
		return fmt.Errorf("camera: enabled but no implementation configured")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server: port %d out of range", c.Server.Port)
	}
	if c.Observer.Latitude < -90 || c.Observer.Latitude > 90 {
		return fmt.Errorf("observer: latitude %f out of range", c.Observer.Latitude)
	}
	if c.Observer.Longitude < -180 || c.Observer.Longitude > 180 {
		return fmt.Errorf("observer: longitude %f out of range", c.Observer.Longitude)
	}
	return nil
}

func (a AxisConfig) validate(name string) error {
	if a.Implementation == "" {
		return fmt.Errorf("%s: enabled but no implementation configured", name)
	}
	if a.ConversionFactor == 0 {
		return fmt.Errorf("%s: conversion_factor must be non-zero", name)
	}
	if a.MaxVelocity <= 0 {
		return fmt.Errorf("%s: max_velocity must be positive", name)
	}
	if a.MaxAcceleration <= 0 {
		return fmt.Errorf("%s: max_acceleration must be positive", name)
	}
	return nil
}

// Mode reports the controller mode this configuration implies, before
// any runtime hardware-failure degradation.
func (c *Config) Mode() string {
	motors := c.Alt.Enabled && c.Az.Enabled
	camera := c.Camera.Enabled
	switch {
	case motors && camera:
		return "CAMERA_AND_MOTORS"
	case motors:
		return "MOTORS_ONLY"
	case camera:
		return "CAMERA_ONLY"
	default:
		return "NONE"
	}
}

// applyEnvironmentOverrides applies environment variable overrides,
// keeping secrets like the store password and JWT secret out of config
// files on disk.
func (c *Config) applyEnvironmentOverrides() {
	if port := os.Getenv("MOUNTD_PORT"); port != "" {
		var p int
		if _, err := fmt.Sscanf(port, "%d", &p); err == nil {
			c.Server.Port = p
		}
	}
	if password := os.Getenv("MOUNTD_STORE_PASSWORD"); password != "" {
		c.Store.Password = password
	}
	if secret := os.Getenv("MOUNTD_JWT_SECRET"); secret != "" {
		c.Admin.JWTSecret = secret
	}
}
