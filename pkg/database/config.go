package database

import (
	"fmt"
	"os"
	"strconv"
)

// LoadConfigFromEnv loads database configuration from environment variables
// with validation and production-ready defaults.
func LoadConfigFromEnv() (Config, error) {
	port, err := strconv.Atoi(getEnvOrDefault("PULSE_DB_PORT", "5432"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid PULSE_DB_PORT: %w", err)
	}

	maxConns, _ := strconv.Atoi(getEnvOrDefault("PULSE_DB_MAX_CONNS", "25"))
	minConns, _ := strconv.Atoi(getEnvOrDefault("PULSE_DB_MIN_CONNS", "2"))

	cfg := Config{
		Host:     getEnvOrDefault("PULSE_DB_HOST", "localhost"),
		Port:     port,
		User:     getEnvOrDefault("PULSE_DB_USER", "pulse"),
		Password: os.Getenv("PULSE_DB_PASSWORD"),
		Database: getEnvOrDefault("PULSE_DB_NAME", "pulse"),
		SSLMode:  getEnvOrDefault("PULSE_DB_SSLMODE", "disable"),
		MaxConns: int32(maxConns),
		MinConns: int32(minConns),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Password == "" {
		return fmt.Errorf("PULSE_DB_PASSWORD is required")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("PULSE_DB_MIN_CONNS (%d) cannot exceed PULSE_DB_MAX_CONNS (%d)", c.MinConns, c.MaxConns)
	}
	if c.MaxConns < 1 {
		return fmt.Errorf("PULSE_DB_MAX_CONNS must be at least 1")
	}
	if c.MinConns < 0 {
		return fmt.Errorf("PULSE_DB_MIN_CONNS cannot be negative")
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
