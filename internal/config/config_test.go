package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mautops/pickup-gin/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefault 测试默认配置
func TestDefault(t *testing.T) {
	cfg := config.Default()

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "pickup", cfg.Database.DBName)
	assert.Equal(t, "Europe/Berlin", cfg.Scheduler.Timezone)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.InitialDelay)
	assert.Equal(t, time.Hour, cfg.Scheduler.Interval)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
}

// TestIsProduction 测试环境判断
func TestIsProduction(t *testing.T) {
	assert.False(t, config.IsProduction(nil))
	assert.False(t, config.IsProduction(&config.Config{Env: "development"}))
	assert.True(t, config.IsProduction(&config.Config{Env: "production"}))
}

// TestLoad_FromFile 测试从配置文件加载
func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
env: production
server:
  host: 127.0.0.1
  port: 9090
database:
  host: db.internal
  dbname: pickup_prod
scheduler:
  timezone: Europe/Berlin
  interval: 30m
auth:
  token_secret: super-secret
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "pickup_prod", cfg.Database.DBName)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, "super-secret", cfg.Auth.TokenSecret)

	// 未覆盖的键保留默认值
	assert.Equal(t, "disable", cfg.Database.SSLMode)
}

// TestLoad_MissingFile 测试配置文件不存在时报错
func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

// TestLoad_EnvOverride 测试环境变量覆盖
func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("APP_SERVER_PORT", "7070")
	t.Setenv("APP_DATABASE_HOST", "env-db")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "env-db", cfg.Database.Host)
}
