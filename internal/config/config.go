// Package config 负责集中式配置加载：YAML 文件 + SQLRET_ 前缀环境变量 + 代码内默认值
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 SQLRET_SERVER_PORT 覆盖 server.port
const EnvPrefix = "SQLRET"

type ServerConfig struct {
	Port          int           `mapstructure:"port" validate:"min=1,max=65535"`
	LogLevel      string        `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	SessionSecret string        `mapstructure:"session_secret"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
	SecureCookie  bool          `mapstructure:"secure_cookie"`
	CORSOrigins   []string      `mapstructure:"cors_origins"`
}

type SessionConfig struct {
	MaxSessions int           `mapstructure:"max_sessions" validate:"min=1"`
	IdleTTL     time.Duration `mapstructure:"idle_ttl" validate:"gt=0"`
	CookieName  string        `mapstructure:"cookie_name" validate:"required"`
}

type DatabaseConfig struct {
	SSLMode         string        `mapstructure:"sslmode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout" validate:"gt=0"`
}

type LLMConfig struct {
	Provider      string              `mapstructure:"provider" validate:"oneof=googleai openai"`
	Model         string              `mapstructure:"model" validate:"required"`
	AllowedModels map[string][]string `mapstructure:"allowed_models"`
	Temperature   float64             `mapstructure:"temperature" validate:"gte=0,lte=2"`
	TopK          int                 `mapstructure:"top_k" validate:"min=1"`
	InvokeTimeout time.Duration       `mapstructure:"invoke_timeout" validate:"gte=0"`
	IgnoreTables  []string            `mapstructure:"ignore_tables"`
}

type LimitsConfig struct {
	QueryRate        float64       `mapstructure:"query_rate" validate:"gt=0"`
	QueryBurst       int           `mapstructure:"query_burst" validate:"min=1"`
	SetupMaxFailures int           `mapstructure:"setup_max_failures" validate:"min=1"`
	SetupWindow      time.Duration `mapstructure:"setup_window" validate:"gt=0"`
	SetupLockout     time.Duration `mapstructure:"setup_lockout" validate:"gt=0"`
}

type ObservabilityConfig struct {
	PprofAddr      string `mapstructure:"pprof_addr"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
}

// Config 是应用的完整配置
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Session       SessionConfig       `mapstructure:"session"`
	Database      DatabaseConfig      `mapstructure:"database"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Limits        LimitsConfig        `mapstructure:"limits"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// setDefaults 注册所有默认值。未注册默认值的键不会被环境变量覆盖。
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8501)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.session_secret", "")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.secure_cookie", false)
	v.SetDefault("server.cors_origins", []string{"http://localhost:8501"})

	v.SetDefault("session.max_sessions", 256)
	v.SetDefault("session.idle_ttl", "30m")
	v.SetDefault("session.cookie_name", "sqlret_session")

	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.connect_timeout", "10s")

	v.SetDefault("llm.provider", "googleai")
	v.SetDefault("llm.model", "gemini-1.5-flash")
	v.SetDefault("llm.allowed_models", map[string][]string{
		"googleai": {"gemini-1.5-flash", "gemini-1.5-pro", "gemini-2.0-flash"},
		"openai":   {"gpt-4o-mini", "gpt-4o"},
	})
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.top_k", 100)
	v.SetDefault("llm.invoke_timeout", "90s")
	v.SetDefault("llm.ignore_tables", []string{})

	v.SetDefault("limits.query_rate", 0.5)
	v.SetDefault("limits.query_burst", 3)
	v.SetDefault("limits.setup_max_failures", 5)
	v.SetDefault("limits.setup_window", "10m")
	v.SetDefault("limits.setup_lockout", "15m")

	v.SetDefault("observability.pprof_addr", "")
	v.SetDefault("observability.metrics_enabled", true)
}

// Load 读取配置。path 为空时只使用默认值与环境变量；
// path 指向的文件不存在时返回错误。
func Load(path string) (*Config, *viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("读取配置文件 '%s' 失败: %w", path, err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

// Watch 监听配置文件变化，每次变化后重新解析并校验，通过校验才回调 onChange。
// 目前只有日志级别支持热更新，其余字段需要重启生效。
func Watch(v *viper.Viper, onChange func(*Config)) {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			slog.Warn("配置文件变更后校验失败，保持原配置", "file", e.Name, "error", err)
			return
		}
		slog.Info("检测到配置文件变更", "file", e.Name, "op", e.Op.String())
		onChange(cfg)
	})
	v.WatchConfig()
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置到结构体失败: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 执行结构体标签校验以及跨字段校验
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	models, ok := cfg.LLM.AllowedModels[cfg.LLM.Provider]
	if !ok {
		return fmt.Errorf("配置校验失败: llm.allowed_models 缺少提供方 '%s'", cfg.LLM.Provider)
	}
	for _, m := range models {
		if m == cfg.LLM.Model {
			return nil
		}
	}
	return errors.New("配置校验失败: llm.model 不在 llm.allowed_models 中")
}
