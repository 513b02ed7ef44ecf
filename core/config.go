package core

import (
	"fmt"
	"strings"
	"time"
)

// SupportedDBTypes lists the database types a collection can be served from
var SupportedDBTypes = []string{"postgres", "mysql", "mariadb", "sqlite"}

// ValidateDBType checks if the given database type is supported
func ValidateDBType(dbType string) error {
	if dbType == "" {
		return nil // Empty defaults to postgres, which is valid
	}
	for _, t := range SupportedDBTypes {
		if strings.EqualFold(dbType, t) {
			return nil
		}
	}
	return fmt.Errorf("unsupported database type %q: supported types are %s",
		dbType, strings.Join(SupportedDBTypes, ", "))
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if err := ValidateDBType(c.DBType); err != nil {
		return err
	}
	if c.DefaultLimit < 0 {
		return fmt.Errorf("default_limit must not be negative")
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("batch_size must not be negative")
	}
	if c.MaxAutoLookupDepth < 0 {
		return fmt.Errorf("max_auto_lookup_depth must not be negative")
	}
	return nil
}

// Configuration for the document API core
type Config struct {
	// The type of database: postgres, mysql, mariadb or sqlite
	DBType string `mapstructure:"db_type" json:"db_type" yaml:"db_type" jsonschema:"title=Database Type,enum=postgres,enum=mysql,enum=mariadb,enum=sqlite"`

	// Database schema read for tables and foreign keys. Defaults to the
	// connection's current schema
	DBSchema string `mapstructure:"db_schema" json:"db_schema" yaml:"db_schema" jsonschema:"title=Database Schema"`

	// Number of root documents returned by a find without a limit
	DefaultLimit int `mapstructure:"default_limit" json:"default_limit" yaml:"default_limit" jsonschema:"title=Default Limit,default=100"`

	// Number of rows a cursor reads at a time
	BatchSize int `mapstructure:"batch_size" json:"batch_size" yaml:"batch_size" jsonschema:"title=Cursor Batch Size,default=20"`

	// Upper bound for the auto lookup depth a caller may ask for
	MaxAutoLookupDepth int `mapstructure:"max_auto_lookup_depth" json:"max_auto_lookup_depth" yaml:"max_auto_lookup_depth" jsonschema:"title=Max Auto Lookup Depth,default=3"`

	// Reject filter keys that match no field instead of ignoring them
	StrictFilters bool `mapstructure:"strict_filters" json:"strict_filters" yaml:"strict_filters" jsonschema:"title=Strict Filters,default=false"`

	// Number of tables whose foreign keys are kept in memory
	RelationCacheSize int `mapstructure:"relation_cache_size" json:"relation_cache_size" yaml:"relation_cache_size" jsonschema:"title=Relation Cache Size,default=1000"`

	// Limit the collections to these tables. All tables are exposed when empty
	Tables []string `mapstructure:"tables" json:"tables" yaml:"tables" jsonschema:"title=Tables"`

	// Duration for polling the database to detect schema changes
	DBSchemaPollDuration time.Duration `mapstructure:"db_schema_poll_duration" json:"db_schema_poll_duration" yaml:"db_schema_poll_duration" jsonschema:"title=Schema Change Detection Polling Duration,default=10s"`

	// Disables schema polling
	Production bool `mapstructure:"production" json:"production" yaml:"production" jsonschema:"title=Production Mode,default=false"`
}

func (c *Config) withDefaults() Config {
	conf := *c
	if conf.DBType == "" {
		conf.DBType = "postgres"
	}
	conf.DBType = strings.ToLower(conf.DBType)
	if conf.DefaultLimit == 0 {
		conf.DefaultLimit = 100
	}
	if conf.BatchSize == 0 {
		conf.BatchSize = 20
	}
	if conf.MaxAutoLookupDepth == 0 {
		conf.MaxAutoLookupDepth = 3
	}
	if conf.RelationCacheSize == 0 {
		conf.RelationCacheSize = 1000
	}
	return conf
}
