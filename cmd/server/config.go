// config/config.go - Configuration loading and management.
//
// This file handles loading configuration from a JSON file and environment variables.
// It defines the Config struct and functions to load and validate configuration.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const ServerVersion = "0.2.0" // Define software version

// Config holds the application configuration.
type Config struct {
	LogFilePath      string   `json:"log_file_path"`
	APIServerAddress string   `json:"api_listener"`
	ManifestPath     string   `json:"manifest_path"`
	BinariesPath     string   `json:"binaries_path"`
	TLSEnabled       bool     `json:"tls_enabled"`
	TLSCertPath      string   `json:"tls_cert_path"`
	TLSKeyPath       string   `json:"tls_key_path"`
	TLSClientCAPath  string   `json:"tls_client_ca_path"` // Optional, enables client certificate verification
	DeviceTokens     []string `json:"device_tokens"`      // Optional, enables bearer token auth on update routes
	StrictArtifacts  bool     `json:"strict_artifacts"`   // Refuse to start when a manifest artifact is missing
	ShutdownDelay    int      `json:"shutdown_delay_seconds"`
	ConfigFileUsed   string   `json:"-"` // Not from config file, but tracked for info
}

// Default configuration values if not provided in file or env vars.
const (
	defaultLogFilePath      = "fwupdate.log"
	defaultAPIServerAddress = ":443"
	defaultManifestPath     = "binaries/manifest.json"
	defaultBinariesPath     = "binaries"
	defaultTLSCertPath      = "certs/certificate.crt"
	defaultTLSKeyPath       = "certs/privateKey.key"
	defaultShutdownDelay    = 5
	configFileName          = "fwupdate.config.json"
)

// LoadConfig loads the configuration from a JSON file and environment variables.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	configFilePath := getConfigFilePath()

	if err := loadConfigFile(cfg, configFilePath); err != nil {
		if !os.IsNotExist(err) { // Ignore file not found error, use defaults or env vars
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		fmt.Println("Configuration file not found, using default values and environment variables.")
	} else {
		cfg.ConfigFileUsed = configFilePath
		fmt.Printf("Configuration loaded from file: %s\n", configFilePath)
	}

	applyEnvironmentVariables(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a Config struct with default values.
func DefaultConfig() *Config {
	return &Config{
		LogFilePath:      defaultLogFilePath,
		APIServerAddress: defaultAPIServerAddress,
		ManifestPath:     defaultManifestPath,
		BinariesPath:     defaultBinariesPath,
		TLSEnabled:       true,
		TLSCertPath:      defaultTLSCertPath,
		TLSKeyPath:       defaultTLSKeyPath,
		ShutdownDelay:    defaultShutdownDelay,
	}
}

// getConfigFilePath determines the configuration file path.
// It checks for environment variable FWUPD_CONFIG_PATH first, then defaults to configFileName.
func getConfigFilePath() string {
	if envPath := os.Getenv("FWUPD_CONFIG_PATH"); envPath != "" {
		return envPath
	}
	return configFileName
}

// loadConfigFile loads configuration from the JSON file.
func loadConfigFile(cfg *Config, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("failed to decode config file: %w", err)
	}
	return nil
}

// applyEnvironmentVariables overrides configuration with environment variables.
func applyEnvironmentVariables(cfg *Config) {
	setIfEnvExists(&cfg.LogFilePath, "FWUPD_LOG_FILE_PATH")
	setIfEnvExists(&cfg.APIServerAddress, "FWUPD_API_ADDRESS")
	setIfEnvExists(&cfg.ManifestPath, "FWUPD_MANIFEST_PATH")
	setIfEnvExists(&cfg.BinariesPath, "FWUPD_BINARIES_PATH")
	setIfEnvExists(&cfg.TLSCertPath, "FWUPD_TLS_CERT_PATH")
	setIfEnvExists(&cfg.TLSKeyPath, "FWUPD_TLS_KEY_PATH")
	setIfEnvExists(&cfg.TLSClientCAPath, "FWUPD_TLS_CLIENT_CA_PATH")
	setBoolIfEnvExists(&cfg.TLSEnabled, "FWUPD_TLS_ENABLED")
	setBoolIfEnvExists(&cfg.StrictArtifacts, "FWUPD_STRICT_ARTIFACTS")

	if val := os.Getenv("FWUPD_DEVICE_TOKENS"); val != "" {
		cfg.DeviceTokens = splitList(val)
	}
	if val := os.Getenv("FWUPD_SHUTDOWN_DELAY"); val != "" {
		if delay, err := strconv.Atoi(val); err == nil {
			cfg.ShutdownDelay = delay
		} else {
			fmt.Printf("Warning: Invalid value for FWUPD_SHUTDOWN_DELAY, using default. Error: %v\n", err)
		}
	}
}

// setIfEnvExists sets the config value from environment variable if it exists.
func setIfEnvExists(configValue *string, envName string) {
	if val := os.Getenv(envName); val != "" {
		*configValue = val
	}
}

func setBoolIfEnvExists(configValue *bool, envName string) {
	val := os.Getenv(envName)
	if val == "" {
		return
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		fmt.Printf("Warning: Invalid value for %s, keeping %t. Error: %v\n", envName, *configValue, err)
		return
	}
	*configValue = parsed
}

func splitList(val string) []string {
	var items []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// validateConfig performs basic validation of the configuration.
func validateConfig(cfg *Config) error {
	if cfg.APIServerAddress == "" {
		return fmt.Errorf("API listener address cannot be empty")
	}
	if cfg.ManifestPath == "" {
		return fmt.Errorf("manifest path cannot be empty")
	}
	if cfg.BinariesPath == "" {
		return fmt.Errorf("binaries path cannot be empty")
	}
	if cfg.TLSEnabled && (cfg.TLSCertPath == "" || cfg.TLSKeyPath == "") {
		return fmt.Errorf("TLS certificate and key paths are required when TLS is enabled")
	}
	if !cfg.TLSEnabled && cfg.TLSClientCAPath != "" {
		return fmt.Errorf("client CA requires TLS to be enabled")
	}
	for _, token := range cfg.DeviceTokens {
		if strings.TrimSpace(token) == "" {
			return fmt.Errorf("device tokens cannot be empty")
		}
	}
	if cfg.ShutdownDelay < 0 {
		return fmt.Errorf("shutdown delay must be non-negative")
	}
	return nil
}

// SetupLogger initializes the logger and log file.
func SetupLogger(logFilePath string) (*log.Logger, *os.File, error) {
	logDir := filepath.Dir(logFilePath)
	if _, err := os.Stat(logDir); os.IsNotExist(err) {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	logFile, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := log.New(logFile, "FW Update: ", log.Ldate|log.Ltime|log.Lshortfile)
	logger.Println("Logger initialized.")

	return logger, logFile, nil
}
