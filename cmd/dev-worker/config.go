package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultListenAddr = "127.0.0.1:8787"

// ServerConfig описывает настройки локального воркера для ручной проверки клиента.
type ServerConfig struct {
	ListenAddr      string `yaml:"listen_addr"`
	UserLogin       string `yaml:"user_login"`
	UserDisplayName string `yaml:"user_display_name"`
	UserTwitchID    string `yaml:"user_twitch_id"`
	EnableUnvote    bool   `yaml:"enable_unvote"`
	AllowRevote     bool   `yaml:"allow_revote"`
	DenyLogin       bool   `yaml:"deny_login"`
	BallotFile      string `yaml:"ballot_file"`
	LogLevel        string `yaml:"log_level"`
}

// LoadServerConfig читает YAML; отсутствующий файл даёт конфигурацию по умолчанию.
func LoadServerConfig(configPath string) (*ServerConfig, error) {
	config := &ServerConfig{}
	file, err := os.Open(configPath)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	default:
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(config); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
	}
	if strings.TrimSpace(config.ListenAddr) == "" {
		config.ListenAddr = defaultListenAddr
	}
	if strings.TrimSpace(config.UserLogin) == "" {
		config.UserLogin = "viewer"
	}
	if strings.TrimSpace(config.UserDisplayName) == "" {
		config.UserDisplayName = config.UserLogin
	}
	return config, nil
}
