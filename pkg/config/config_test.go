package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mailassist/pkg/config"
)

func TestDBConfig(t *testing.T) {
	cfg := config.DBConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "mail"}
	assert.True(t, cfg.Enabled())
	assert.Equal(t, "postgres://u:p@db:5432/mail?sslmode=disable", cfg.DSN())

	for _, k := range []string{"DB_USER", "DB_PASSWORD", "DB_NAME"} {
		t.Setenv(k, "")
	}
	t.Setenv("DB_HOST", "pg.internal")
	t.Setenv("DB_PORT", "not-a-port")
	t.Setenv("DB_SSLMODE", "require")
	config.OverrideDBFromEnv(&cfg)
	assert.Equal(t, "postgres://u:p@pg.internal:5432/mail?sslmode=require", cfg.DSN())

	assert.False(t, config.DBConfig{}.Enabled())
}

func TestOverrideRedisFromEnv(t *testing.T) {
	cfg := config.RedisConfig{Addr: "localhost:6379"}
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_PASSWORD", "")
	t.Setenv("REDIS_DB", "3")
	config.OverrideRedisFromEnv(&cfg)
	assert.Equal(t, config.RedisConfig{Addr: "redis:6379", DB: 3}, cfg)
}
