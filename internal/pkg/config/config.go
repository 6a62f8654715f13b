// Package config предоставляет управление конфигурацией приложения
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// DefaultPath - файл конфигурации, который читается, если путь не указан.
const DefaultPath = "config.yml"

// Server содержит конфигурацию сервера
type Server struct {
	Host            string        `json:"host" yaml:"host"`
	Port            int           `json:"port" yaml:"port"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Discord содержит адреса и параметры запросов к API виджета
type Discord struct {
	APIBaseURL     string        `json:"api_base_url" yaml:"api_base_url"`
	WidgetPageURL  string        `json:"widget_page_url" yaml:"widget_page_url"`
	UserAgent      string        `json:"user_agent" yaml:"user_agent"`
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"` // 0 - без ограничений
}

// Fetch содержит конфигурацию фоновых загрузок
type Fetch struct {
	PoolSize      int           `json:"pool_size" yaml:"pool_size"`
	TaskTimeout   time.Duration `json:"task_timeout" yaml:"task_timeout"` // 0 - без ограничений
	TaskTTL       time.Duration `json:"task_ttl" yaml:"task_ttl"`
	IdleWidgetTTL time.Duration `json:"idle_widget_ttl" yaml:"idle_widget_ttl"`
}

// Logging содержит конфигурацию логирования
type Logging struct {
	Level       string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format      string `json:"format" yaml:"format"` // text, json
	MaskInvites bool   `json:"mask_invites" yaml:"mask_invites"`
}

// Config содержит конфигурацию приложения
type Config struct {
	Server  Server  `json:"server" yaml:"server"`
	Discord Discord `json:"discord" yaml:"discord"`
	Fetch   Fetch   `json:"fetch" yaml:"fetch"`
	Logging Logging `json:"logging" yaml:"logging"`
}

func defaultConfig() *Config {
	return &Config{
		Server: Server{
			Host:            DefaultServerHost,
			Port:            DefaultServerPort,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Discord: Discord{
			APIBaseURL:     DefaultAPIBaseURL,
			WidgetPageURL:  DefaultWidgetPageURL,
			UserAgent:      DefaultUserAgent,
			RequestTimeout: DefaultRequestTimeout,
		},
		Fetch: Fetch{
			PoolSize:      DefaultPoolSize,
			TaskTimeout:   DefaultTaskTimeout,
			TaskTTL:       DefaultTaskTTL,
			IdleWidgetTTL: DefaultIdleWidgetTTL,
		},
		Logging: Logging{
			Level:       DefaultLogLevel,
			Format:      DefaultLogFormat,
			MaskInvites: DefaultMaskInvites,
		},
	}
}

// LoadConfig загружает конфигурацию: значения по умолчанию, затем YAML файл,
// затем переменные окружения (в том числе из .env). Пустой path означает DefaultPath.
func LoadConfig(path string) (*Config, error) {
	// Отсутствие .env файла не ошибка
	_ = godotenv.Load()

	if path == "" {
		path = DefaultPath
	}

	cfg := defaultConfig()
	if err := loadFromYAML(path, cfg); err != nil {
		return nil, err
	}
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию из env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// loadFromYAML накладывает YAML-файл поверх cfg. Отсутствующий файл пропускается.
func loadFromYAML(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("не удалось прочитать файл конфигурации %s: %w", filename, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("не удалось разобрать YAML конфигурацию: %w", err)
	}

	return nil
}

// loadFromEnv переопределяет значения из переменных окружения
func loadFromEnv(cfg *Config) error {
	cfg.Discord.APIBaseURL = getEnv("DISCORD_API_BASE_URL", cfg.Discord.APIBaseURL)
	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	if portStr := getEnv("SERVER_PORT", ""); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("недопустимый SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}

	return nil
}

// Address возвращает адрес сервера в формате "host:port"
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate проверяет, являются ли значения конфигурации допустимыми
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port должен быть действительным номером порта (1-65535)")
	}

	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout должно быть положительным")
	}

	for name, raw := range map[string]string{
		"discord.api_base_url":    c.Discord.APIBaseURL,
		"discord.widget_page_url": c.Discord.WidgetPageURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("%s должен быть абсолютным http(s) адресом", name)
		}
	}

	if c.Discord.RequestTimeout < 0 {
		return fmt.Errorf("discord.request_timeout должно быть неотрицательным (0 для отсутствия ограничений)")
	}

	if c.Fetch.PoolSize <= 0 {
		return fmt.Errorf("fetch.pool_size должно быть положительным")
	}

	if c.Fetch.TaskTimeout < 0 {
		return fmt.Errorf("fetch.task_timeout должно быть неотрицательным (0 для отсутствия ограничений)")
	}

	if c.Fetch.TaskTTL <= 0 {
		return fmt.Errorf("fetch.task_ttl должно быть положительным")
	}

	if c.Fetch.IdleWidgetTTL <= 0 {
		return fmt.Errorf("fetch.idle_widget_ttl должно быть положительным")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// all good
	default:
		return fmt.Errorf("logging.level должен быть одним из: debug, info, warn, error")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format должен быть одним из: text, json")
	}

	return nil
}

// getEnv извлекает значение переменной окружения или возвращает значение по умолчанию, если она не установлена
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
