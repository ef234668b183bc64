package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	AI        AIConfig        `mapstructure:"ai"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Image     ImageConfig     `mapstructure:"image"`
	Log       LogConfig       `mapstructure:"log"`
	LogLevel  string          `mapstructure:"log_level"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
}

// AIConfig AI 供應商設定
type AIConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Provider     string        `mapstructure:"provider"` // gemini | openrouter
	Model        string        `mapstructure:"model"`
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	Temperature  float64       `mapstructure:"temperature"`
	Timeout      time.Duration `mapstructure:"timeout"`
	AnalysisMode string        `mapstructure:"analysis_mode"` // basic | advanced
	MaxInFlight  int           `mapstructure:"max_in_flight"`
}

// StorageConfig 圖片儲存設定
type StorageConfig struct {
	Backend             string   `mapstructure:"backend"` // gcs | s3 | http
	Bucket              string   `mapstructure:"bucket"`
	Endpoint            string   `mapstructure:"endpoint"`
	Region              string   `mapstructure:"region"`
	AccessKey           string   `mapstructure:"access_key"`
	SecretKey           string   `mapstructure:"secret_key"`
	PublicBaseURL       string   `mapstructure:"public_base_url"`
	AllowedHosts        []string `mapstructure:"allowed_hosts"`
	CredentialsFile     string   `mapstructure:"credentials_file"`
	DeleteAfterAnalysis bool     `mapstructure:"delete_after_analysis"`
}

// DatabaseConfig 掃描紀錄儲存設定
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres | sqlite | memory
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// RedisConfig Redis 設定
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// AuthConfig 身分驗證設定
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
	Required  bool   `mapstructure:"required"`
}

// MetricsConfig 指標與成本設定
type MetricsConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	CostPer1KTokens   float64       `mapstructure:"cost_per_1k_tokens"`
	CostThresholdEUR  float64       `mapstructure:"cost_threshold_eur"`
	LatencyBudget     time.Duration `mapstructure:"latency_budget"`
	FunctionName      string        `mapstructure:"function_name"`
	PrometheusEnabled bool          `mapstructure:"prometheus_enabled"`
}

// ImageConfig 圖片配置
type ImageConfig struct {
	MaxSizeBytes int64 `mapstructure:"max_size_bytes"`
}

// LogConfig 日誌輸出設定
type LogConfig struct {
	File string `mapstructure:"file"`
	Mode string `mapstructure:"mode"`
}

// LoadConfig 載入設定
func LoadConfig() (*Config, error) {
	// .env 不存在時直接使用環境變數
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvs(v)

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// logger 尚未初始化，改用 fmt.Println
	fmt.Println("Loading configuration",
		"ai_provider:", v.GetString("ai.provider"),
		"ai_model:", v.GetString("ai.model"),
		"ai_api_key:", maskAPIKey(v.GetString("ai.api_key")),
	)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func bindEnvs(v *viper.Viper) {
	_ = v.BindEnv("ai.api_key", "GEMINI_API_KEY", "OPENROUTER_API_KEY", "AI_API_KEY")
	_ = v.BindEnv("ai.provider", "AI_PROVIDER")
	_ = v.BindEnv("ai.model", "AI_MODEL")
	_ = v.BindEnv("ai.analysis_mode", "ANALYSIS_MODE")
	_ = v.BindEnv("storage.backend", "STORAGE_BACKEND")
	_ = v.BindEnv("storage.bucket", "STORAGE_BUCKET")
	_ = v.BindEnv("storage.credentials_file", "GOOGLE_APPLICATION_CREDENTIALS")
	_ = v.BindEnv("database.driver", "DATABASE_DRIVER")
	_ = v.BindEnv("database.dsn", "DATABASE_URL")
	_ = v.BindEnv("redis.enabled", "REDIS_ENABLED")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	_ = v.BindEnv("rate_limit.requests", "RATE_LIMIT_REQUESTS")
	_ = v.BindEnv("rate_limit.window", "RATE_LIMIT_WINDOW")
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("auth.required", "AUTH_REQUIRED")
	_ = v.BindEnv("log_level", "LOG_LEVEL")
	_ = v.BindEnv("log.mode", "LOG_MODE")
}

// maskAPIKey 遮罩 API Key，只顯示前後各 4 個字符
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	// 應用程式設定
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", true)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "menu-analyzer")

	// 伺服器設定
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "70s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("server.max_body_bytes", 1<<20)

	// AI 設定
	v.SetDefault("ai.enabled", true)
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.model", "gemini-1.5-flash")
	v.SetDefault("ai.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("ai.max_tokens", 4096)
	v.SetDefault("ai.temperature", 0.2)
	v.SetDefault("ai.timeout", "50s")
	v.SetDefault("ai.analysis_mode", "basic")
	v.SetDefault("ai.max_in_flight", 40)

	// 圖片儲存設定
	v.SetDefault("storage.backend", "gcs")
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.allowed_hosts", []string{"firebasestorage.googleapis.com", "storage.googleapis.com"})
	v.SetDefault("storage.delete_after_analysis", true)

	// 資料庫設定
	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	// Redis 設定
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")

	// 限流設定
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 30)
	v.SetDefault("rate_limit.window", "1m")

	// 驗證設定
	v.SetDefault("auth.required", false)
	v.SetDefault("auth.issuer", "")

	// 指標設定
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.cost_per_1k_tokens", 0.0)
	v.SetDefault("metrics.cost_threshold_eur", 0.000045)
	v.SetDefault("metrics.latency_budget", "8s")
	v.SetDefault("metrics.function_name", "analyzeMenu")
	v.SetDefault("metrics.prometheus_enabled", true)

	// 圖片設定
	v.SetDefault("image.max_size_bytes", 10*1024*1024) // 10MB

	// 日誌設定
	v.SetDefault("log_level", "info")
	v.SetDefault("log.file", "logs/app.log")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}

	switch config.AI.Provider {
	case "gemini", "openrouter":
	default:
		return fmt.Errorf("unsupported ai provider %q", config.AI.Provider)
	}

	switch config.AI.AnalysisMode {
	case "basic", "advanced":
	default:
		return fmt.Errorf("invalid analysis mode %q", config.AI.AnalysisMode)
	}

	if config.AI.Timeout <= 0 {
		return fmt.Errorf("invalid ai timeout")
	}
	if config.AI.MaxInFlight <= 0 {
		return fmt.Errorf("invalid ai max in flight")
	}

	switch config.Storage.Backend {
	case "gcs", "s3", "http":
	default:
		return fmt.Errorf("unsupported storage backend %q", config.Storage.Backend)
	}
	if (config.Storage.Backend == "gcs" || config.Storage.Backend == "s3") && config.Storage.Bucket == "" {
		return fmt.Errorf("storage bucket is required for %s backend", config.Storage.Backend)
	}
	if config.Storage.Backend == "s3" && config.Storage.PublicBaseURL == "" {
		return fmt.Errorf("storage public base url is required for s3 backend")
	}

	switch config.Database.Driver {
	case "memory":
	case "postgres", "sqlite":
		if config.Database.DSN == "" {
			return fmt.Errorf("database dsn is required for %s", config.Database.Driver)
		}
	default:
		return fmt.Errorf("unsupported database driver %q", config.Database.Driver)
	}

	if config.RateLimit.Enabled {
		if config.RateLimit.Requests <= 0 {
			return fmt.Errorf("invalid rate limit requests")
		}
		if config.RateLimit.Window <= 0 {
			return fmt.Errorf("invalid rate limit window")
		}
	}

	if config.Auth.Required && config.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is required")
	}

	if config.Image.MaxSizeBytes <= 0 {
		return fmt.Errorf("invalid image max size")
	}

	return nil
}
