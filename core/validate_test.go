package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDBType(t *testing.T) {
	tests := []struct {
		name    string
		dbType  string
		wantErr bool
	}{
		{"empty string defaults to postgres", "", false},
		{"postgres is valid", "postgres", false},
		{"mysql is valid", "mysql", false},
		{"mariadb is valid", "mariadb", false},
		{"sqlite is valid", "sqlite", false},
		{"case insensitive", "PostgreS", false},
		{"oracle is not served", "oracle", true},
		{"invalid type", "invalid", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDBType(tt.dbType)
			if tt.wantErr {
				assert.ErrorContains(t, err, "unsupported database type")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		conf    Config
		wantErr bool
	}{
		{"zero config", Config{}, false},
		{"mariadb", Config{DBType: "mariadb"}, false},
		{"unsupported type", Config{DBType: "oracle"}, true},
		{"negative default limit", Config{DefaultLimit: -1}, true},
		{"negative batch size", Config{BatchSize: -1}, true},
		{"negative lookup depth", Config{MaxAutoLookupDepth: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.conf.Validate()
			assert.Equal(t, tt.wantErr, err != nil, "error: %v", err)
		})
	}
}

func TestConfigWithDefaults(t *testing.T) {
	conf := (&Config{DBType: "MySQL", BatchSize: 5}).withDefaults()
	assert.Equal(t, "mysql", conf.DBType)
	assert.Equal(t, 100, conf.DefaultLimit)
	assert.Equal(t, 5, conf.BatchSize)
	assert.Equal(t, 3, conf.MaxAutoLookupDepth)
	assert.Equal(t, 1000, conf.RelationCacheSize)

	assert.Equal(t, "postgres", (&Config{}).withDefaults().DBType)
}
