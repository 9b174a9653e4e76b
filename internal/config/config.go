package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/listkeeper/listsync/internal/validation"
)

const (
	// DefaultBindAddr - адрес сервера по умолчанию
	DefaultBindAddr = "127.0.0.1:9527"
	// DefaultMaxSnapshotNum - лимит снапшотов на аккаунт по умолчанию
	DefaultMaxSnapshotNum = 10
	// AddMusicLocationTop - новые песни при merge вставляются в начало списка
	AddMusicLocationTop = "top"
	// AddMusicLocationBottom - новые песни при merge вставляются в конец списка
	AddMusicLocationBottom = "bottom"
)

// User представляет один аккаунт сервера и его настройки
type User struct {
	Name             string `yaml:"name"`             // Name имя аккаунта (и первый сегмент пути при multiUserPath)
	Password         string `yaml:"password"`         // Password код подключения для pairing новых устройств
	MaxSnapshotNum   int    `yaml:"maxSnapshotNum"`   // MaxSnapshotNum лимит снапшотов (0 - дефолт)
	AddMusicLocation string `yaml:"addMusicLocation"` // AddMusicLocation top|bottom, позиция вставки при merge
}

// Config представляет конфигурацию сервера синхронизации
type Config struct {
	BindAddr      string `yaml:"bindAddr"`      // BindAddr адрес прослушивания HTTP/WebSocket
	ServerName    string `yaml:"serverName"`    // ServerName имя сервера, отдается устройствам при pairing
	DataDir       string `yaml:"dataDir"`       // DataDir каталог с базами данных
	MultiUserPath bool   `yaml:"multiUserPath"` // MultiUserPath маршрутизация по имени аккаунта в пути
	Users         []User `yaml:"users"`         // Users список аккаунтов
}

// Load читает и валидирует конфигурацию из YAML файла
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults заполняет незаданные поля значениями по умолчанию
func (c *Config) applyDefaults() {
	if c.BindAddr == "" {
		c.BindAddr = DefaultBindAddr
	}
	if c.ServerName == "" {
		c.ServerName = "listsync"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	for i := range c.Users {
		if c.Users[i].MaxSnapshotNum == 0 {
			c.Users[i].MaxSnapshotNum = DefaultMaxSnapshotNum
		}
		if c.Users[i].AddMusicLocation == "" {
			c.Users[i].AddMusicLocation = AddMusicLocationTop
		}
	}
}

// Validate проверяет согласованность конфигурации
func (c *Config) Validate() error {
	if len(c.Users) == 0 {
		return fmt.Errorf("at least one user must be configured")
	}

	seen := make(map[string]struct{}, len(c.Users))
	for _, u := range c.Users {
		if err := validation.ValidateAccountName(u.Name); err != nil {
			return fmt.Errorf("invalid user name %q: %w", u.Name, err)
		}
		if err := validation.ValidateConnectionCode(u.Password); err != nil {
			return fmt.Errorf("user %q: %w", u.Name, err)
		}
		if _, ok := seen[u.Name]; ok {
			return fmt.Errorf("duplicate user name %q", u.Name)
		}
		seen[u.Name] = struct{}{}

		switch u.AddMusicLocation {
		case AddMusicLocationTop, AddMusicLocationBottom:
		default:
			return fmt.Errorf("user %q: addMusicLocation must be %q or %q",
				u.Name, AddMusicLocationTop, AddMusicLocationBottom)
		}
	}

	return nil
}

// User возвращает конфигурацию аккаунта по имени
func (c *Config) User(name string) (*User, bool) {
	for i := range c.Users {
		if c.Users[i].Name == name {
			return &c.Users[i], true
		}
	}
	return nil, false
}
