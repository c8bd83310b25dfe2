package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"teeout/internal/core/domain"
)

// JSONProvider implements the ports.ConfigProvider interface for JSON files.
// Environment variables override values read from the file.
type JSONProvider struct {
	filePath string
}

// NewJSONProvider creates a new JSONProvider.
func NewJSONProvider(filePath string) *JSONProvider {
	return &JSONProvider{filePath: filePath}
}

// Defaults returns the configuration used when no file is present.
func Defaults() *domain.OutputConfig {
	return &domain.OutputConfig{
		LogLevel:  "INFO",
		HTTPHost:  "127.0.0.1",
		OutputDir: ".",
	}
}

// LoadConfig reads and parses the teeout.json file, then applies environment
// overrides. A missing file is not an error.
func (p *JSONProvider) LoadConfig(_ context.Context) (*domain.OutputConfig, error) {
	config := Defaults()

	jsonFile, err := os.Open(p.filePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to open %s: %w", p.filePath, err)
	default:
		defer jsonFile.Close()

		byteValue, err := io.ReadAll(jsonFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p.filePath, err)
		}
		if err := json.Unmarshal(byteValue, config); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", p.filePath, err)
		}
	}

	if err := applyEnv(config); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig writes the configuration to the teeout.json file.
func (p *JSONProvider) SaveConfig(_ context.Context, config *domain.OutputConfig) error {
	byteValue, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(p.filePath, byteValue, 0644); err != nil {
		return fmt.Errorf("failed to write to %s: %w", p.filePath, err)
	}
	return nil
}

func applyEnv(config *domain.OutputConfig) error {
	config.StdoutFile = getEnv("TEEOUT_STDOUT_FILE", config.StdoutFile)
	config.StderrFile = getEnv("TEEOUT_STDERR_FILE", config.StderrFile)
	config.LogLevel = getEnv("TEEOUT_LOG_LEVEL", config.LogLevel)
	config.HTTPHost = getEnv("TEEOUT_HTTP_HOST", config.HTTPHost)
	config.OutputDir = getEnv("TEEOUT_OUTPUT_DIR", config.OutputDir)

	var err error
	if config.Rank, err = getEnvInt("TEEOUT_RANK", config.Rank); err != nil {
		return err
	}
	if config.HTTPPort, err = getEnvInt("TEEOUT_HTTP_PORT", config.HTTPPort); err != nil {
		return err
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}
