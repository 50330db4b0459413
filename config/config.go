package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// StaticDirEnv 静态资源目录的环境变量名（前端打包产物所在目录）
const StaticDirEnv = "STATIC_TARGET"

var (
	ErrStaticDirRequired = errors.New("static directory is required (set " + StaticDirEnv + ")")
	ErrInvalidPort       = errors.New("server port must be between 1 and 65535")
	ErrUnknownDriver     = errors.New("storage driver must be sqlite or postgres")
	ErrInvalidRateLimit  = errors.New("rate limits must be positive when rate limiting is enabled")
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Static    StaticConfig    `mapstructure:"static"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	CORSEnabled     bool          `mapstructure:"cors_enabled"`
	RedactErrors    bool          `mapstructure:"redact_errors"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// TrustedProxies 为空时 ClientIP 只取连接的远端地址，忽略 X-Forwarded-For
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// Addr 返回监听地址
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type StaticConfig struct {
	Dir string `mapstructure:"dir"`
}

type StorageConfig struct {
	Driver       string `mapstructure:"driver"` // sqlite | postgres
	DSN          string `mapstructure:"dsn"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	LogLevel     string `mapstructure:"log_level"` // silent | error | warn | info
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"` // json | console
	Output   string `mapstructure:"output"` // stdout | file
	FilePath string `mapstructure:"file_path"`
}

type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type RateLimitConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	CreatePerMinute int  `mapstructure:"create_per_minute"`
	ListPerMinute   int  `mapstructure:"list_per_minute"`
	FailOpen        bool `mapstructure:"fail_open"` // Redis 不可用时放行
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors_enabled", true)
	v.SetDefault("server.redact_errors", false)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("static.dir", "")

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", ":memory:")
	v.SetDefault("storage.max_idle_conns", 2)
	v.SetDefault("storage.max_open_conns", 10)
	v.SetDefault("storage.log_level", "warn")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file_path", "")

	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.create_per_minute", 60)
	v.SetDefault("ratelimit.list_per_minute", 600)
	v.SetDefault("ratelimit.fail_open", true)
}

// LoadConfig 读取配置：.env -> 默认值 -> 配置文件（可选）-> 环境变量
func LoadConfig(path string) (*Config, error) {
	// .env 不存在是正常情况，已存在的环境变量不会被覆盖
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("static.dir", StaticDirEnv); err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", StaticDirEnv, err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate 检查启动前必须满足的配置
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Static.Dir) == "" {
		return ErrStaticDirRequired
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: got %d", ErrInvalidPort, c.Server.Port)
	}
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: got %q", ErrUnknownDriver, c.Storage.Driver)
	}
	if c.RateLimit.Enabled && (c.RateLimit.CreatePerMinute <= 0 || c.RateLimit.ListPerMinute <= 0) {
		return fmt.Errorf("%w: create_per_minute=%d list_per_minute=%d",
			ErrInvalidRateLimit, c.RateLimit.CreatePerMinute, c.RateLimit.ListPerMinute)
	}
	return nil
}
