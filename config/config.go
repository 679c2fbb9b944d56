package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	config     *Config
	configOnce sync.Once
)

// Config stores all configuration of the application
type Config struct {
	// Environment type
	EnvType string

	// Database
	DBHost          string
	DBUser          string
	DBPassword      string
	DBName          string
	DBPort          string
	DBMigrationMode string // 数据库迁移模式: "auto"(默认), "alter"(修改), "drop"(删除重建)
	DBMaxOpenConns  int
	DBMaxIdleConns  int

	// Server
	ServerPort string

	// Redis
	RedisHost string
	RedisPort string
	RedisDB   int

	// MQTT
	MQTTBroker string

	// JWT Authentication
	JWTSecretKey        string
	JWTRefreshSecretKey string

	// SMTP 邮件（验证码与离线告警）
	EmailHost string
	EmailPort int
	EmailUser string
	EmailPass string
	EmailFrom string

	// 离线检测
	OfflineThresholdMinutes int // 静默超过该分钟数判定离线
	SweepIntervalSeconds    int // 离线扫描周期

	// 设备同步间隔提示（秒），注册响应中下发
	SyncIntervalSeconds int
}

// LoadConfig loads config from environment variables based on ENV_TYPE
func LoadConfig() *Config {
	// Get environment type (default to LOCAL if not set)
	envType := getEnv("ENV_TYPE", "LOCAL")
	prefix := ""

	// Set prefix based on environment type
	if strings.ToUpper(envType) == "LOCAL" {
		prefix = "LOCAL_"
	} else if strings.ToUpper(envType) == "SERVER" {
		prefix = "SERVER_"
	} else {
		fmt.Printf("Warning: Unknown ENV_TYPE '%s', defaulting to LOCAL environment\n", envType)
		prefix = "LOCAL_"
		envType = "LOCAL"
	}

	fmt.Printf("Loading configuration for environment: %s\n", envType)

	return &Config{
		// Environment type
		EnvType: envType,

		// Database config - use environment-specific variables if available
		DBHost:          getEnv(prefix+"DB_HOST", getEnv("DB_HOST", "localhost")),
		DBUser:          getEnv(prefix+"DB_USER", getEnv("DB_USER", "root")),
		DBPassword:      getEnv(prefix+"DB_PASSWORD", getEnv("DB_PASSWORD", "")),
		DBName:          getEnv(prefix+"DB_NAME", getEnv("DB_NAME", "reefkh_db")),
		DBPort:          getEnv(prefix+"DB_PORT", getEnv("DB_PORT", "3306")),
		DBMigrationMode: getEnv(prefix+"DB_MIGRATION_MODE", getEnv("DB_MIGRATION_MODE", "auto")),
		DBMaxOpenConns:  getEnvAsInt("DB_MAX_OPEN_CONNS", 5),
		DBMaxIdleConns:  getEnvAsInt("DB_MAX_IDLE_CONNS", 5),

		// Server config
		ServerPort: getEnv(prefix+"SERVER_PORT", getEnv("SERVER_PORT", "8080")),

		// Redis config
		RedisHost: getEnv(prefix+"REDIS_HOST", getEnv("REDIS_HOST", "localhost")),
		RedisPort: getEnv(prefix+"REDIS_PORT", getEnv("REDIS_PORT", "6379")),
		RedisDB:   getEnvAsInt("REDIS_DB", 0),

		// MQTT config
		MQTTBroker: getEnv("MQTT_BROKER", "tcp://localhost:1883"),

		// JWT Config
		JWTSecretKey:        getEnv("JWT_SECRET_KEY", "reefkh-secret-key-change-in-production"),
		JWTRefreshSecretKey: getEnv("JWT_REFRESH_SECRET_KEY", "reefkh-refresh-secret-change-in-production"),

		// SMTP Config
		EmailHost: getEnv("EMAIL_HOST", "localhost"),
		EmailPort: getEnvAsInt("EMAIL_PORT", 587),
		EmailUser: getEnv("EMAIL_USER", ""),
		EmailPass: getEnv("EMAIL_PASS", ""),
		EmailFrom: getEnv("EMAIL_FROM", "alerts@reefkh.local"),

		// 离线检测配置
		OfflineThresholdMinutes: getEnvAsInt("OFFLINE_THRESHOLD_MINUTES", 5),
		SweepIntervalSeconds:    getEnvAsInt("SWEEP_INTERVAL_SECONDS", 30),

		// 同步间隔提示
		SyncIntervalSeconds: getEnvAsInt("SYNC_INTERVAL_SECONDS", 300),
	}
}

// GetConfig returns the application configuration as a singleton
func GetConfig() *Config {
	configOnce.Do(func() {
		config = LoadConfig()
	})
	return config
}

// GetDSN returns the database connection string
func (c *Config) GetDSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?charset=utf8mb4&parseTime=True&loc=Local&allowNativePasswords=true&multiStatements=true"
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// OfflineThreshold 离线判定阈值
func (c *Config) OfflineThreshold() time.Duration {
	return time.Duration(c.OfflineThresholdMinutes) * time.Minute
}

// SweepInterval 离线扫描周期
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// Helper function to get environment variable with default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Helper function to get environment variable as integer with default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
