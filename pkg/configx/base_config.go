package configx

import (
	"time"
)

// Config - config interface.
type Config interface {
	GetServiceName() string
	GetVersion() string
	GetEnvironment() string
	GetServerConfig() *ServerConfig
	GetLoggingConfig() *LoggingConfig
	GetDatabaseConfig() *DatabaseConfig
	IsLocalEnvironment() bool
}

// BaseConfig - app config struct.
// This struct represents the base configuration for the application and is expected to be in the following YAML format:
/*
name: "txscope"
environment: "development"
version: "1.0"
logging:
  level: "debug"
server:
  port: "8080"
  concurrency: 10
  disableStartupMsg: false
database:
  host: localhost
  port: 5432
  name: main-db
  user: postgres
  password: password
  connection-limit: 10
  idle-timeout: 60s
  queue-limit: 0
  wait-for-connections: true
  pool-wait-timeout: 500ms
  connect-timeout: 500ms
  storage-key: datasource1
*/
type BaseConfig struct {
	Name        string          `mapstructure:"name" validate:"required"`
	Environment string          `mapstructure:"environment"`
	Version     string          `mapstructure:"version"`
	Logging     *LoggingConfig  `mapstructure:"logging"`
	Server      *ServerConfig   `mapstructure:"server"`
	Database    *DatabaseConfig `mapstructure:"database" validate:"required"`
}

type ServerConfig struct {
	Port                  string `mapstructure:"port"`
	Concurrency           int    `mapstructure:"concurrency"`
	DisableStartupMessage bool   `mapstructure:"disableStartupMsg"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error"`
}

// DatabaseConfig - connection pool and transaction client settings.
type DatabaseConfig struct {
	Host                string        `mapstructure:"host" validate:"required"`
	Port                int32         `mapstructure:"port" validate:"gte=0,lte=65535"`
	Name                string        `mapstructure:"name" validate:"required"`
	User                string        `mapstructure:"user" validate:"required"`
	Password            string        `mapstructure:"password" validate:"required"`
	VpcDirectConnection bool          `mapstructure:"vpc-direct-connection"`
	ConnectionLimit     int32         `mapstructure:"connection-limit" validate:"gte=0"`
	IdleTimeout         time.Duration `mapstructure:"idle-timeout" validate:"gte=0"`
	QueueLimit          int           `mapstructure:"queue-limit" validate:"gte=0"`
	WaitForConnections  bool          `mapstructure:"wait-for-connections"`
	PoolWaitTimeout     time.Duration `mapstructure:"pool-wait-timeout"`
	ConnectTimeout      time.Duration `mapstructure:"connect-timeout" validate:"gte=0"`
	StorageKey          string        `mapstructure:"storage-key" validate:"omitempty,storagekey"`
}

func (cfg BaseConfig) GetServiceName() string {
	return cfg.Name
}

func (cfg BaseConfig) GetVersion() string {
	return cfg.Version
}

func (cfg BaseConfig) GetEnvironment() string {
	return cfg.Environment
}

func (cfg BaseConfig) IsLocalEnvironment() bool {
	return checkIfLocalEnv(cfg.Environment)
}

func (cfg BaseConfig) GetServerConfig() *ServerConfig {
	return cfg.Server
}

func (cfg BaseConfig) GetLoggingConfig() *LoggingConfig {
	return cfg.Logging
}

func (cfg BaseConfig) GetDatabaseConfig() *DatabaseConfig {
	return cfg.Database
}
