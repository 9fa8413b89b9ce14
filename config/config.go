package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Observ       ObservabilityConfig
	Admin        AdminConfig
	Registration RegistrationConfig
	Ingest       IngestConfig
	Export       ExportConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Driver string
	URL    string
}

// RedisConfig backs admin sessions, login throttling and the ingestion
// lock. An empty Addr disables redis where it is optional.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig is optional; an empty broker list disables events.
type KafkaConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
}

type ObservabilityConfig struct {
	ServiceName    string
	JaegerEndpoint string
	SampleRatio    float64
	LogLevel       string
}

type AdminConfig struct {
	ID           string
	Password     string
	PasswordHash string
	SessionTTL   time.Duration
	MaxAttempts  int
}

type RegistrationConfig struct {
	// MultiOnly restricts buyer login to buyers with two or more entries.
	MultiOnly bool
}

type IngestConfig struct {
	OrdersPath      string
	MembersPath     string
	BirthDatePolicy string
	MaxQuantity     int
}

// ExportConfig enables archiving exports to S3 when Bucket is set.
type ExportConfig struct {
	Bucket string
	Region string
	Prefix string
}

func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Driver: getEnv("DATABASE_DRIVER", "sqlite"),
			URL:    getEnv("DATABASE_URL", "file:registration.db"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(getEnv("KAFKA_BROKERS", "")),
			Topic:         getEnv("KAFKA_TOPIC", "registration-events"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "registration-audit"),
		},
		Observ: ObservabilityConfig{
			ServiceName:    getEnv("SERVICE_NAME", "registration-service"),
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", ""),
			SampleRatio:    getFloat("TRACE_SAMPLE_RATIO", 1),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
		},
		Admin: AdminConfig{
			ID:           getEnv("ADMIN_ID", "admin"),
			Password:     getEnv("ADMIN_PASSWORD", ""),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
			SessionTTL:   getDuration("ADMIN_SESSION_TTL", 8*time.Hour),
			MaxAttempts:  getInt("ADMIN_MAX_LOGIN_ATTEMPTS", 5),
		},
		Registration: RegistrationConfig{
			MultiOnly: getBool("REGISTRATION_MULTI_ONLY", true),
		},
		Ingest: IngestConfig{
			OrdersPath:      getEnv("INGEST_ORDERS_PATH", "data/orders.xlsx"),
			MembersPath:     getEnv("INGEST_MEMBERS_PATH", ""),
			BirthDatePolicy: getEnv("INGEST_BIRTHDATE_POLICY", "any"),
			MaxQuantity:     getInt("INGEST_MAX_QUANTITY", 100),
		},
		Export: ExportConfig{
			Bucket: getEnv("EXPORT_S3_BUCKET", ""),
			Region: getEnv("EXPORT_S3_REGION", "ap-northeast-2"),
			Prefix: getEnv("EXPORT_S3_PREFIX", "exports"),
		},
	}

	log.Printf("Config loaded: env=%s, port=%s, db=%s", cfg.Server.Env, cfg.Server.Port, cfg.Database.Driver)
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultVal
	}
	return n
}

func getBool(key string, defaultVal bool) bool {
	b, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultVal
	}
	return b
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultVal
	}
	return d
}

func getFloat(key string, defaultVal float64) float64 {
	f, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
