package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	AI         AIConfig         `mapstructure:"ai"`
	Compliance ComplianceConfig `mapstructure:"compliance"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// ServerConfig 控制管理接口监听参数。
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// GatewayConfig 描述 MT5 订单网关连接信息。
type GatewayConfig struct {
	MT5URL  string        `mapstructure:"mt5_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AIConfig 描述可选的大模型辅助解析参数。
type AIConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ComplianceConfig 控制合规判定参数。
type ComplianceConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// IngestConfig 控制信号接入行为。
type IngestConfig struct {
	AutoQueue bool `mapstructure:"auto_queue"`
}

// QueueConfig 控制执行队列与工作协程。
type QueueConfig struct {
	Workers int `mapstructure:"workers"`
	Buffer  int `mapstructure:"buffer"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		err = multierr.Append(err, errors.New("server.port 必须位于(0,65535]"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		err = multierr.Append(err, errors.New("server.shutdown_timeout 必须大于0"))
	}
	if c.Gateway.Timeout <= 0 {
		err = multierr.Append(err, errors.New("gateway.timeout 必须大于0"))
	}
	if c.AI.Enabled {
		if c.AI.APIKey == "" {
			err = multierr.Append(err, errors.New("启用辅助解析时 ai.api_key 不能为空"))
		}
		if c.AI.Model == "" {
			err = multierr.Append(err, errors.New("启用辅助解析时 ai.model 不能为空"))
		}
		if c.AI.Timeout <= 0 {
			err = multierr.Append(err, errors.New("ai.timeout 必须大于0"))
		}
	}
	if c.Compliance.Timezone == "" {
		err = multierr.Append(err, errors.New("compliance.timezone 不能为空"))
	}
	if c.Queue.Workers <= 0 {
		err = multierr.Append(err, errors.New("queue.workers 必须大于0"))
	}
	if c.Queue.Buffer <= 0 {
		err = multierr.Append(err, errors.New("queue.buffer 必须大于0"))
	}
	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
