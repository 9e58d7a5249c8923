package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Worker    WorkerConfig
	Generator GeneratorConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	S3        S3Config
	MongoDB   MongoDBConfig
	InfluxDB  InfluxDBConfig
	Retention RetentionConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port    string
	Host    string
	GinMode string
}

// WorkerConfig sizes the generation worker pool
type WorkerConfig struct {
	Count             int
	QueueSize         int
	GenerationTimeout time.Duration // 0 means no timeout
	DrainOnShutdown   bool          // run queued tasks before exiting instead of failing them
}

// GeneratorConfig selects and configures the log generation procedure
type GeneratorConfig struct {
	Type           string // "archive" or "influx"
	ArchiveDir     string
	ArchivePattern string // fmt pattern with one %s for the date
	Delay          time.Duration
}

// StorageConfig selects the artifact store backend
type StorageConfig struct {
	Type string // "memory", "file", "s3", "mongo" or "sql"
	Dir  string // used by the "file" backend
}

// DatabaseConfig holds the SQL connection used for task persistence and the "sql" artifact backend
type DatabaseConfig struct {
	URL             string // sqlite://path or postgres://...; empty disables task persistence
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogLevel        string
}

// S3Config holds S3 connection details
type S3Config struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // Optional: for S3-compatible services like MinIO
	Prefix          string
}

// MongoDBConfig holds MongoDB connection details
type MongoDBConfig struct {
	URI        string
	Username   string
	Password   string
	Host       string
	Port       string
	Database   string
	Collection string
	AuthSource string // Database to authenticate against (default: admin)
}

// InfluxDBConfig holds InfluxDB connection details for the "influx" generator
type InfluxDBConfig struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
}

// RetentionConfig controls purging of old tasks and artifacts
type RetentionConfig struct {
	TaskRetention     time.Duration // 0 keeps tasks for the process lifetime
	ArtifactRetention time.Duration // 0 keeps artifacts forever
	Schedule          string        // cron expression, 5 or 6 fields
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port:    getEnv("PORT", "8080"),
			Host:    getEnv("HOST", "0.0.0.0"),
			GinMode: getEnv("GIN_MODE", "release"),
		},
		Worker: WorkerConfig{
			Count:             getEnvInt("WORKERS", 4),
			QueueSize:         getEnvInt("QUEUE_SIZE", 64),
			GenerationTimeout: getEnvDuration("GENERATION_TIMEOUT", 0),
			DrainOnShutdown:   getEnvBool("WORKER_DRAIN_ON_SHUTDOWN", false),
		},
		Generator: GeneratorConfig{
			Type:           strings.ToLower(getEnv("GENERATOR", "archive")),
			ArchiveDir:     getEnv("LOG_ARCHIVE_DIR", "logs"),
			ArchivePattern: getEnv("LOG_ARCHIVE_PATTERN", "employee-management-%s.log"),
			Delay:          getEnvDuration("GENERATION_DELAY", 0),
		},
		Storage: StorageConfig{
			Type: strings.ToLower(getEnv("ARTIFACT_STORE", "file")),
			Dir:  getEnv("ARTIFACT_DIR", "logs/generated"),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			LogLevel:        getEnv("LOG_LEVEL", "INFO"),
		},
		S3: S3Config{
			Bucket:          getEnv("S3_BUCKET", ""),
			Region:          getEnv("S3_REGION", "us-east-1"),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("S3_ENDPOINT", ""), // Optional for MinIO/custom S3
			Prefix:          getEnv("S3_PREFIX", "logs"),
		},
		MongoDB: MongoDBConfig{
			URI:        getEnv("MONGODB_URI", ""),
			Username:   getEnv("MONGODB_USERNAME", ""),
			Password:   getEnv("MONGODB_PASSWORD", ""),
			Host:       getEnv("MONGODB_HOST", "localhost"),
			Port:       getEnv("MONGODB_PORT", "27017"),
			Database:   getEnv("MONGODB_DATABASE", "activity_logs"),
			Collection: getEnv("MONGODB_COLLECTION", "log_artifacts"),
			AuthSource: getEnv("MONGODB_AUTH_SOURCE", "admin"),
		},
		InfluxDB: InfluxDBConfig{
			URL:         getEnv("INFLUXDB2_URL", "http://localhost:8086"),
			Token:       getEnv("INFLUXDB2_TOKEN", ""),
			Org:         getEnv("INFLUXDB2_ORG", ""),
			Bucket:      getEnv("INFLUXDB2_BUCKET", ""),
			Measurement: getEnv("INFLUXDB2_MEASUREMENT", "audit_events"),
		},
		Retention: RetentionConfig{
			TaskRetention:     getEnvDuration("TASK_RETENTION", 0),
			ArtifactRetention: getEnvDuration("ARTIFACT_RETENTION", 0),
			Schedule:          getEnv("RETENTION_SCHEDULE", "0 */15 * * * *"),
		},
	}

	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// ValidateConfig validates that required configuration values are present
func ValidateConfig(config *Config) error {
	if config.Worker.Count <= 0 {
		return fmt.Errorf("WORKERS must be positive, got %d", config.Worker.Count)
	}
	if config.Worker.QueueSize <= 0 {
		return fmt.Errorf("QUEUE_SIZE must be positive, got %d", config.Worker.QueueSize)
	}
	if config.Worker.GenerationTimeout < 0 {
		return fmt.Errorf("GENERATION_TIMEOUT must not be negative")
	}

	switch config.Generator.Type {
	case "archive":
		if !strings.Contains(config.Generator.ArchivePattern, "%s") {
			return fmt.Errorf("LOG_ARCHIVE_PATTERN must contain %%s for the date")
		}
	case "influx":
		if config.InfluxDB.Token == "" {
			return fmt.Errorf("INFLUXDB2_TOKEN is required for the influx generator")
		}
		if config.InfluxDB.Org == "" {
			return fmt.Errorf("INFLUXDB2_ORG is required for the influx generator")
		}
		if config.InfluxDB.Bucket == "" {
			return fmt.Errorf("INFLUXDB2_BUCKET is required for the influx generator")
		}
	default:
		return fmt.Errorf("unsupported GENERATOR %q (expected archive or influx)", config.Generator.Type)
	}

	switch config.Storage.Type {
	case "memory":
	case "file":
		if config.Storage.Dir == "" {
			return fmt.Errorf("ARTIFACT_DIR is required for the file artifact store")
		}
	case "s3":
		if config.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required")
		}
		if config.S3.AccessKeyID == "" {
			return fmt.Errorf("S3_ACCESS_KEY_ID is required")
		}
		if config.S3.SecretAccessKey == "" {
			return fmt.Errorf("S3_SECRET_ACCESS_KEY is required")
		}
	case "mongo":
		if config.MongoDB.URI == "" && config.MongoDB.Host == "" {
			return fmt.Errorf("MONGODB_URI or MONGODB_HOST is required for the mongo artifact store")
		}
	case "sql":
		if config.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the sql artifact store")
		}
	default:
		return fmt.Errorf("unsupported ARTIFACT_STORE %q", config.Storage.Type)
	}

	if config.Retention.TaskRetention < 0 || config.Retention.ArtifactRetention < 0 {
		return fmt.Errorf("retention windows must not be negative")
	}

	return nil
}

// Helper functions for environment variable access
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
