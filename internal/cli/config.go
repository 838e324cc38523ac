package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

var configLocations = []string{"empire.yaml", "empire.yml", ".empire.yaml", ".empire.yml"}

// EmpireConfig represents the empire.yaml configuration structure
type EmpireConfig struct {
	Version string `yaml:"version"`

	Database struct {
		Driver           string        `yaml:"driver"`
		URL              string        `yaml:"url"`
		MaxConnections   int           `yaml:"max_connections"`
		MaxIdle          int           `yaml:"max_idle"`
		ConnMaxLifetime  time.Duration `yaml:"conn_max_lifetime"`
		StatementTimeout time.Duration `yaml:"statement_timeout"`
	} `yaml:"database"`

	Server struct {
		Addr            string        `yaml:"addr"`
		IdentityHeader  string        `yaml:"identity_header"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Goals struct {
		Cap           int  `yaml:"cap"`
		Transactional bool `yaml:"transactional"`
	} `yaml:"goals"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// DefaultConfig returns a config with every default applied.
func DefaultConfig() *EmpireConfig {
	config := &EmpireConfig{Version: "1"}
	applyDefaults(config)
	return config
}

func applyDefaults(config *EmpireConfig) {
	if config.Database.Driver == "" {
		config.Database.Driver = "postgres"
	}
	if config.Database.MaxConnections == 0 {
		config.Database.MaxConnections = 25
	}
	if config.Database.MaxIdle == 0 {
		config.Database.MaxIdle = 5
	}
	if config.Database.ConnMaxLifetime == 0 {
		config.Database.ConnMaxLifetime = 10 * time.Minute
	}
	if config.Database.StatementTimeout == 0 {
		config.Database.StatementTimeout = 30 * time.Second
	}
	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	if config.Server.IdentityHeader == "" {
		config.Server.IdentityHeader = "X-User-Id"
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 15 * time.Second
	}
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = 15 * time.Second
	}
	if config.Server.ShutdownTimeout == 0 {
		config.Server.ShutdownTimeout = 10 * time.Second
	}
	if config.Goals.Cap == 0 {
		config.Goals.Cap = 10
	}
	if config.Log.Format == "" {
		config.Log.Format = "console"
	}
}

// LoadEmpireConfig reads path, or the first default location that exists.
// With no file found it returns the defaults. EMPIRE_DATABASE_URL overrides
// the database URL either way.
func LoadEmpireConfig(path string) (*EmpireConfig, error) {
	if path == "" {
		path = GetConfigPath()
	}

	config := &EmpireConfig{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if url := os.Getenv("EMPIRE_DATABASE_URL"); url != "" {
		config.Database.URL = url
	}
	applyDefaults(config)
	return config, nil
}

func GetConfigPath() string {
	if path := os.Getenv("EMPIRE_CONFIG"); path != "" {
		return path
	}

	for _, loc := range configLocations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

func SaveEmpireConfig(config *EmpireConfig, path string) error {
	if path == "" {
		path = "empire.yaml"
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
