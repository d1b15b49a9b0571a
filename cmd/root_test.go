package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/issuetracker/internal/store"
)

func TestSetDefaults(t *testing.T) {
	dir := testEnv(t)

	assert.Equal(t, dir, viper.GetString("state_dir"))
	assert.Equal(t, store.DriverSQLite, viper.GetString("store.driver"))
	assert.Equal(t, "issuetracker", viper.GetString("mongodb.database"))
	assert.Equal(t, 5*time.Second, viper.GetDuration("mongodb.timeout"))
	assert.Equal(t, 8080, viper.GetInt("port"))
}

func TestStoreConfig(t *testing.T) {
	testEnv(t)
	viper.Set("store.driver", "mongodb")
	viper.Set("mongodb.uri", "mongodb://localhost:27017")
	viper.Set("mongodb.timeout", "250ms")

	cfg := storeConfig()
	assert.Equal(t, store.DriverMongoDB, cfg.Driver)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, "issuetracker", cfg.MongoDatabase)
	assert.Equal(t, 250*time.Millisecond, cfg.MongoTimeout)
}

func TestLegacyDBEnv(t *testing.T) {
	testEnv(t)
	t.Setenv("DB", "mongodb://legacy:27017")
	require.NoError(t, viper.BindEnv("mongodb.uri", "ISSUES_MONGODB_URI", "DB"))

	assert.Equal(t, "mongodb://legacy:27017", viper.GetString("mongodb.uri"))
}

func TestGetStore_OpensOnce(t *testing.T) {
	testEnv(t)

	s1, err := getStore()
	require.NoError(t, err)
	s2, err := getStore()
	require.NoError(t, err)
	assert.Same(t, s1, s2)
	assert.NoError(t, s1.Ping(context.Background()))
}

func TestGetStore_BadDriver(t *testing.T) {
	testEnv(t)
	viper.Set("store.driver", "postgres")

	_, err := getStore()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store driver")
}

func TestNewLogger_JSON(t *testing.T) {
	testEnv(t)
	viper.Set("log.format", "json")
	viper.Set("log.level", "warn")

	var buf bytes.Buffer
	logger := newLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "v", line["k"])
}

func TestNewLogger_TextDefault(t *testing.T) {
	testEnv(t)
	viper.Set("log.level", "not-a-level")

	var buf bytes.Buffer
	newLogger(&buf).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.True(t, newLogger(&buf).Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, newLogger(&buf).Enabled(context.Background(), slog.LevelDebug))
}
