package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port               string `yaml:"port"`
		LogLevel           string `yaml:"log_level"`
		ShutdownTimeoutSec int    `yaml:"shutdown_timeout_sec"`
	} `yaml:"server"`
	Relay struct {
		NATSURL string `yaml:"nats_url"`
	} `yaml:"relay"`
}

func defaultConfig() *Config {
	var config Config
	config.Server.Port = "8080"
	config.Server.LogLevel = "info"
	config.Server.ShutdownTimeoutSec = 10
	return &config
}

// loadConfig reads the optional YAML config, then applies environment
// overrides. A missing file is fine; a malformed one is not.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config.Server.Port = getEnv("PORT", config.Server.Port)
	config.Server.LogLevel = getEnv("LOG_LEVEL", config.Server.LogLevel)
	config.Server.ShutdownTimeoutSec = getEnvAsInt("SHUTDOWN_TIMEOUT_SEC", config.Server.ShutdownTimeoutSec)
	config.Relay.NATSURL = getEnv("NATS_URL", config.Relay.NATSURL)

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
