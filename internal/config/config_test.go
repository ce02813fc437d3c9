package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// 環境変数をクリアしてデフォルト値を確認
	envVars := []string{
		"PORT", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
		"REDIS_ENABLED", "REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB",
		"RESERVATION_TTL", "SWEEP_INTERVAL", "STORE_DRIVER",
	}
	for _, env := range envVars {
		os.Unsetenv(env)
	}

	cfg := Load()
	require.NotNil(t, cfg)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "vehicle_cart", cfg.Database.DBName)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, "6379", cfg.Redis.Port)
	assert.Equal(t, 60*time.Second, cfg.Reservation.TTL)
	assert.Equal(t, 15*time.Second, cfg.Reservation.SweepInterval)
	assert.Equal(t, StoreDriverMemory, cfg.Reservation.StoreDriver)
}

func TestLoad_WithEnvVars(t *testing.T) {
	os.Setenv("PORT", "9090")
	os.Setenv("RESERVATION_TTL", "2m")
	os.Setenv("SWEEP_INTERVAL", "10s")
	os.Setenv("STORE_DRIVER", "postgres")
	os.Setenv("REDIS_ENABLED", "true")
	defer func() {
		os.Unsetenv("PORT")
		os.Unsetenv("RESERVATION_TTL")
		os.Unsetenv("SWEEP_INTERVAL")
		os.Unsetenv("STORE_DRIVER")
		os.Unsetenv("REDIS_ENABLED")
	}()

	cfg := Load()

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Reservation.TTL)
	assert.Equal(t, 10*time.Second, cfg.Reservation.SweepInterval)
	assert.Equal(t, StoreDriverPostgres, cfg.Reservation.StoreDriver)
	assert.True(t, cfg.Redis.Enabled)
}

func TestLoad_SweepIntervalDerivedFromTTL(t *testing.T) {
	os.Setenv("RESERVATION_TTL", "80s")
	os.Unsetenv("SWEEP_INTERVAL")
	defer os.Unsetenv("RESERVATION_TTL")

	cfg := Load()

	// SWEEP_INTERVAL未指定の場合はTTLの1/4
	assert.Equal(t, 20*time.Second, cfg.Reservation.SweepInterval)
}

func TestLoad_InvalidDuration(t *testing.T) {
	os.Setenv("RESERVATION_TTL", "invalid")
	defer os.Unsetenv("RESERVATION_TTL")

	cfg := Load()

	// 不正な値はデフォルトにフォールバック
	assert.Equal(t, 60*time.Second, cfg.Reservation.TTL)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := &DatabaseConfig{
		Host:     "localhost",
		Port:     "5432",
		User:     "postgres",
		Password: "secret",
		DBName:   "vehicle_cart",
		SSLMode:  "disable",
	}

	expected := "host=localhost port=5432 user=postgres password=secret dbname=vehicle_cart sslmode=disable"
	assert.Equal(t, expected, cfg.DSN())
}

func TestRedisConfig_Addr(t *testing.T) {
	cfg := &RedisConfig{Host: "localhost", Port: "6379"}
	assert.Equal(t, "localhost:6379", cfg.Addr())
}
