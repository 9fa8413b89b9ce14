package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("REGISTRATION_MULTI_ONLY", "")
	t.Setenv("INGEST_MAX_QUANTITY", "")
	t.Setenv("SERVICE_NAME", "")
	t.Setenv("TRACE_SAMPLE_RATIO", "")

	cfg := Load()
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "registration-events", cfg.Kafka.Topic)
	assert.True(t, cfg.Registration.MultiOnly)
	assert.Equal(t, 8*time.Hour, cfg.Admin.SessionTTL)
	assert.Equal(t, 100, cfg.Ingest.MaxQuantity)
	assert.Equal(t, "registration-service", cfg.Observ.ServiceName)
	assert.Equal(t, 1.0, cfg.Observ.SampleRatio)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("REGISTRATION_MULTI_ONLY", "false")
	t.Setenv("ADMIN_SESSION_TTL", "30m")
	t.Setenv("ADMIN_MAX_LOGIN_ATTEMPTS", "nope")
	t.Setenv("INGEST_MAX_QUANTITY", "20")
	t.Setenv("SERVICE_NAME", "registration-staging")
	t.Setenv("TRACE_SAMPLE_RATIO", "0.25")

	cfg := Load()
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Registration.MultiOnly)
	assert.Equal(t, 30*time.Minute, cfg.Admin.SessionTTL)
	assert.Equal(t, 5, cfg.Admin.MaxAttempts)
	assert.Equal(t, 20, cfg.Ingest.MaxQuantity)
	assert.Equal(t, "registration-staging", cfg.Observ.ServiceName)
	assert.Equal(t, 0.25, cfg.Observ.SampleRatio)
}
