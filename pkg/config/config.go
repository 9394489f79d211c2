package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

// DBConfig holds database configuration
type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        logger.LogLevel
}

// GetDSN returns the PostgreSQL connection string
func (c *DBConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Env             string
	CORSOrigins     []string
	ShutdownTimeout time.Duration
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SigningKey      string
	ExpirationHours int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Prefix string
}

// RedisConfig holds the cache connection. An empty Addr disables redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Enabled reports whether a redis address was configured
func (c *RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// PlatformConfig holds storefront-wide settings
type PlatformConfig struct {
	BaseDomain         string
	SessionCookie      string
	OrderPrefix        string
	SuperAdminEmail    string
	SuperAdminPassword string
}

// NFTConfig holds the NFT verification API settings. An empty BaseURL disables verification.
type NFTConfig struct {
	BaseURL  string
	APIKey   string
	Contract string
	Timeout  time.Duration
}

// GitHubConfig holds settings for template imports
type GitHubConfig struct {
	RawBaseURL string
	Token      string
	Timeout    time.Duration
}

// Config holds all configuration
type Config struct {
	ServiceName string
	DB          DBConfig
	Server      ServerConfig
	JWT         JWTConfig
	Log         LogConfig
	Metrics     MetricsConfig
	Redis       RedisConfig
	Platform    PlatformConfig
	NFT         NFTConfig
	GitHub      GitHubConfig
}

// Load loads configuration from an optional .env file and environment variables
func Load(serviceName string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: .env file not found, using environment variables\n")
	}

	config := &Config{
		ServiceName: serviceName,
		DB: DBConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "password"),
			DBName:          getEnv("DB_NAME", serviceName),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 1*time.Hour),
			LogLevel:        getEnvAsLogLevel("DB_LOG_LEVEL", logger.Warn),
		},
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Env:             getEnv("APP_ENV", "development"),
			CORSOrigins:     getEnvAsList("CORS_ORIGINS", []string{"http://localhost:3000"}),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		JWT: JWTConfig{
			SigningKey:      getEnv("JWT_SIGNING_KEY", "defaultsecretkey"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Prefix: getEnv("METRICS_PREFIX", serviceName),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			TTL:      getEnvAsDuration("CACHE_TTL", 5*time.Minute),
		},
		Platform: PlatformConfig{
			BaseDomain:         strings.ToLower(getEnv("PLATFORM_BASE_DOMAIN", "budstack.io")),
			SessionCookie:      getEnv("SESSION_COOKIE", "budstack_session"),
			OrderPrefix:        getEnv("ORDER_PREFIX", "BS"),
			SuperAdminEmail:    getEnv("SUPER_ADMIN_EMAIL", ""),
			SuperAdminPassword: getEnv("SUPER_ADMIN_PASSWORD", ""),
		},
		NFT: NFTConfig{
			BaseURL:  getEnv("NFT_API_URL", ""),
			APIKey:   getEnv("NFT_API_KEY", ""),
			Contract: getEnv("NFT_CONTRACT", ""),
			Timeout:  getEnvAsDuration("NFT_TIMEOUT", 10*time.Second),
		},
		GitHub: GitHubConfig{
			RawBaseURL: getEnv("GITHUB_RAW_URL", "https://raw.githubusercontent.com"),
			Token:      getEnv("GITHUB_TOKEN", ""),
			Timeout:    getEnvAsDuration("GITHUB_TIMEOUT", 15*time.Second),
		},
	}

	if config.Server.Env == "production" && config.JWT.SigningKey == "defaultsecretkey" {
		return nil, fmt.Errorf("JWT_SIGNING_KEY must be set in production")
	}

	return config, nil
}

// LogConfig returns the configuration as a zap logger-friendly format
func (c *Config) LogConfig() []zap.Field {
	return []zap.Field{
		zap.String("service", c.ServiceName),
		zap.String("environment", c.Server.Env),
		zap.String("db_host", c.DB.Host),
		zap.String("db_port", c.DB.Port),
		zap.String("db_user", c.DB.User),
		zap.String("db_name", c.DB.DBName),
		zap.String("server_port", c.Server.Port),
		zap.Bool("redis_enabled", c.Redis.Enabled()),
		zap.Bool("nft_verification", c.NFT.BaseURL != ""),
		zap.String("base_domain", c.Platform.BaseDomain),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func getEnvAsLogLevel(key string, defaultValue logger.LogLevel) logger.LogLevel {
	valueStr := getEnv(key, "")
	switch valueStr {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return defaultValue
	}
}
