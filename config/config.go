package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrInvalidConfig 启动期配置缺失或非法，进程不应开始服务
var ErrInvalidConfig = errors.New("invalid configuration")

// Config 应用配置
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// BotConfig 传输凭证、运营者与准入群组
type BotConfig struct {
	Token       string        `mapstructure:"token" validate:"required"`
	OperatorID  int64         `mapstructure:"operator_id" validate:"required"`
	GateChat    string        `mapstructure:"gate_chat" validate:"required"`
	PollTimeout time.Duration `mapstructure:"poll_timeout" validate:"gte=0"`
	APIEndpoint string        `mapstructure:"api_endpoint"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=sqlite postgres"`
	DSN    string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

// DirectoryConfig 用户目录存储后端
type DirectoryConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=sql redis"`
}

// RelayConfig 转发引擎参数
type RelayConfig struct {
	CallTimeout         time.Duration `mapstructure:"call_timeout" validate:"gt=0"`
	CorrelationBackend  string        `mapstructure:"correlation_backend" validate:"oneof=memory redis"`
	CorrelationCapacity int           `mapstructure:"correlation_capacity" validate:"gt=0"`
	CorrelationTTL      time.Duration `mapstructure:"correlation_ttl" validate:"gte=0"`
	MaxInFlight         int           `mapstructure:"max_in_flight" validate:"gt=0"`
	DrainTimeout        time.Duration `mapstructure:"drain_timeout" validate:"gte=0"`
}

// BroadcastConfig 群发并发度与平台发送配额（条/秒）
type BroadcastConfig struct {
	Workers int     `mapstructure:"workers" validate:"gt=0"`
	Rate    float64 `mapstructure:"rate" validate:"gte=0"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

// HTTPConfig 状态接口，Addr 为空则不启动
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

type TracingConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// envAliases 兼容旧版部署使用的变量名
var envAliases = map[string][]string{
	"bot.operator_id":       {"ADMIN_ID"},
	"bot.gate_chat":         {"FORCE_CHANNEL"},
	"tracing.otlp_endpoint": {"OTEL_EXPORTER_OTLP_ENDPOINT"},
}

// defaults 同时充当已知 key 的清单
var defaults = map[string]any{
	"bot.token":                  "",
	"bot.operator_id":            0,
	"bot.gate_chat":              "",
	"bot.poll_timeout":           60 * time.Second,
	"bot.api_endpoint":           "",
	"database.driver":            "sqlite",
	"database.dsn":               "",
	"redis.addr":                 "localhost:6379",
	"redis.password":             "",
	"redis.db":                   0,
	"directory.backend":          "sql",
	"relay.call_timeout":         10 * time.Second,
	"relay.correlation_backend":  "memory",
	"relay.correlation_capacity": 100000,
	"relay.correlation_ttl":      30 * 24 * time.Hour,
	"relay.max_in_flight":        64,
	"relay.drain_timeout":        30 * time.Second,
	"broadcast.workers":          8,
	"broadcast.rate":             25.0,
	"log.level":                  "info",
	"log.development":            false,
	"http.addr":                  "",
	"sentry.dsn":                 "",
	"sentry.environment":         "production",
	"tracing.otlp_endpoint":      "",
}

var envReplacer = strings.NewReplacer(".", "_")

func envName(key string) string { return strings.ToUpper(envReplacer.Replace(key)) }

// Load 读取 CONFIG_FILE 指定的文件（缺省尝试 ./.env），再叠加环境变量
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		if _, err := os.Stat(".env"); err == nil {
			path = ".env"
		}
	}
	return LoadFile(path)
}

// LoadFile 同 Load，但显式指定配置文件；path 为空时只读环境变量。
// 环境变量优先于文件。
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	if path != "" {
		v.SetConfigFile(path)
		if strings.HasSuffix(path, ".env") {
			v.SetConfigType("env")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidConfig, path, err)
		}
		// .env 里是扁平的 BOT_TOKEN=... 形式，映射回分层 key
		flat := flatIndex()
		for _, key := range v.AllKeys() {
			if nested, ok := flat[strings.ToUpper(key)]; ok {
				v.SetDefault(nested, v.Get(key))
			}
		}
	}

	for key := range defaults {
		names := append([]string{key, envName(key)}, envAliases[key]...)
		if err := v.BindEnv(names...); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func flatIndex() map[string]string {
	idx := make(map[string]string, len(defaults))
	for key := range defaults {
		idx[envName(key)] = key
		for _, alias := range envAliases[key] {
			idx[alias] = key
		}
	}
	return idx
}

// Validate 校验必填项与取值范围
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s(%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Directory.Backend == "sql" && c.Database.DSN == "" {
		return fmt.Errorf("%w: database.dsn is required for the sql directory", ErrInvalidConfig)
	}
	needsRedis := c.Directory.Backend == "redis" || c.Relay.CorrelationBackend == "redis"
	if needsRedis && c.Redis.Addr == "" {
		return fmt.Errorf("%w: redis.addr is required for redis backends", ErrInvalidConfig)
	}
	return nil
}
