package util

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSetKeyValue(t *testing.T) {
	vi := viper.New()
	vi.SetDefault("database.host", "localhost")
	vi.SetDefault("default_limit", 100)

	assert.True(t, SetKeyValue(vi, "SC_DATABASE_HOST", "db.internal"))
	assert.Equal(t, "db.internal", vi.GetString("database.host"))

	assert.True(t, SetKeyValue(vi, "SC_DEFAULT_LIMIT", "5"))
	assert.Equal(t, 5, vi.GetInt("default_limit"))

	assert.False(t, SetKeyValue(vi, "SC_NOT_A_KEY", "x"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zap.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zap.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zap.InfoLevel, ParseLevel("verbose"))
}
