package serv

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/sqlcollection/sqlcollection/core"
	"github.com/sqlcollection/sqlcollection/serv/internal/util"
)

type Core = core.Config

// Configuration for the collection service
type Config struct {
	// Configuration for the document API core
	Core `mapstructure:",squash" jsonschema:"title=Core Configuration"`

	// Configuration for the HTTP service
	Serv `mapstructure:",squash" jsonschema:"title=Service Configuration"`

	hostPort string
	viper    *viper.Viper
}

// Configuration for the HTTP service
type Serv struct {
	// Application name is used in log messages and as the Postgres
	// application_name
	AppName string `mapstructure:"app_name" jsonschema:"title=Application Name"`

	// When enabled the config file watcher and schema polling are off
	Production bool `jsonschema:"title=Production Mode,default=false"`

	// The default path to find all configuration files
	ConfigPath string `mapstructure:"config_path" jsonschema:"title=Config Path"`

	// Logging level must be one of debug, error, warn, info
	LogLevel string `mapstructure:"log_level" jsonschema:"title=Log Level,enum=debug,enum=error,enum=warn,enum=info"`

	// Logging Format: "auto" (default, colored console in dev, JSON in production),
	// "json" (always JSON), or "simple" (always colored console)
	LogFormat string `mapstructure:"log_format" jsonschema:"title=Logging Format,enum=auto,enum=json,enum=simple"`

	// The host and port the service runs on. Example localhost:8080
	HostPort string `mapstructure:"host_port" jsonschema:"title=Host and Port"`

	// Host to run the service on
	Host string `jsonschema:"title=Host"`

	// Port to run the service on
	Port string `jsonschema:"title=Port"`

	// Sets the API rate limits
	RateLimiter RateLimiter `mapstructure:"rate_limiter" jsonschema:"title=Set API Rate Limiting"`

	// Reloads the collections when a file in the config path changes.
	// Disabled in production
	WatchAndReload bool `mapstructure:"reload_on_config_change" jsonschema:"title=Reload Config"`

	// Sets the HTTP CORS Access-Control-Allow-Origin header
	AllowedOrigins []string `mapstructure:"cors_allowed_origins" jsonschema:"title=HTTP CORS Allowed Origins"`

	// Sets the HTTP CORS Access-Control-Allow-Headers header
	AllowedHeaders []string `mapstructure:"cors_allowed_headers" jsonschema:"title=HTTP CORS Allowed Headers"`

	// Enables debug logs for CORS
	DebugCORS bool `mapstructure:"cors_debug" jsonschema:"title=Log CORS"`

	// Sets the HTTP Cache-Control header
	CacheControl string `mapstructure:"cache_control" jsonschema:"title=Enable Cache-Control"`

	// Database configuration
	DB Database `mapstructure:"database" jsonschema:"title=Database"`
}

// Database configuration
type Database struct {
	ConnString string `mapstructure:"connection_string" jsonschema:"title=Connection String"`
	Type       string `jsonschema:"title=Type,enum=postgres,enum=mysql,enum=mariadb,enum=sqlite"`
	Host       string `jsonschema:"title=Host"`
	Port       uint16 `jsonschema:"title=Port"`
	DBName     string `jsonschema:"title=Database Name"`
	User       string `jsonschema:"title=User"`
	Password   string `jsonschema:"title=Password"`
	Schema     string `jsonschema:"title=Postgres Schema"`

	// Path of the database file, sqlite only
	Path string `jsonschema:"title=SQLite File Path"`

	// Size of database connection pool
	PoolSize int `mapstructure:"pool_size" jsonschema:"title=Connection Pool Size"`

	// Max number of active database connections allowed
	MaxConnections int `mapstructure:"max_connections" jsonschema:"title=Maximum Connections"`

	// Max time after which idle database connections are closed
	MaxConnIdleTime time.Duration `mapstructure:"max_connection_idle_time" jsonschema:"title=Connection Idle Time"`

	// Max time after which database connections are not reused
	MaxConnLifeTime time.Duration `mapstructure:"max_connection_life_time" jsonschema:"title=Connection Life Time"`

	// Database ping timeout is used for db health checking
	PingTimeout time.Duration `mapstructure:"ping_timeout" jsonschema:"title=Healthcheck Ping Timeout"`

	// Set up an secure TLS encrypted database connection
	EnableTLS bool `mapstructure:"enable_tls" jsonschema:"title=Enable TLS"`

	// Required for TLS. For example with Google Cloud SQL it's
	// <gcp-project-id>:<cloud-sql-instance>
	ServerName string `mapstructure:"server_name" jsonschema:"title=TLS Server Name"`

	// Required for TLS. Can be a file path or the contents of the PEM file
	ServerCert string `mapstructure:"server_cert" jsonschema:"title=Server Certificate"`

	// Can be a file path or the contents of the PEM file
	ClientCert string `mapstructure:"client_cert" jsonschema:"title=Client Certificate"`

	// Can be a file path or the contents of the pem file
	ClientKey string `mapstructure:"client_key" jsonschema:"title=Client Key"`
}

// RateLimiter sets the API rate limits
type RateLimiter struct {
	// The number of events per second
	Rate float64 `jsonschema:"title=Connection Rate"`

	// Bucket a burst of at most 'bucket' number of events
	Bucket int `jsonschema:"title=Bucket Size"`

	// The header that contains the client ip
	IPHeader string `mapstructure:"ip_header" jsonschema:"title=IP From HTTP Header,example=X-Forwarded-For"`
}

// ReadInConfig function reads in the config file for the environment specified in the GO_ENV
// environment variable.
func ReadInConfig(configFile string) (*Config, error) {
	return readInConfig(configFile, nil)
}

// ReadInConfigFS is the same as ReadInConfig but it also takes a filesytem as an argument
func ReadInConfigFS(configFile string, fs afero.Fs) (*Config, error) {
	return readInConfig(configFile, fs)
}

func readInConfig(configFile string, fs afero.Fs) (*Config, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	cp := filepath.Dir(configFile)

	viper, err := newViper(fs, cp, filepath.Base(configFile))
	if err != nil {
		return nil, err
	}

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	if pcf := viper.GetString("inherits"); pcf != "" {
		cf := viper.ConfigFileUsed()

		if viper, err = newViper(fs, cp, pcf); err != nil {
			return nil, err
		}

		if err := viper.ReadInConfig(); err != nil {
			return nil, err
		}

		if value := viper.GetString("inherits"); value != "" {
			return nil, fmt.Errorf("inherited config '%s' cannot itself inherit '%s'", pcf, value)
		}

		viper.SetConfigFile(cf)

		if err := viper.MergeInConfig(); err != nil {
			return nil, err
		}
	}

	for _, e := range os.Environ() {
		if strings.HasPrefix(e, "SC_") {
			kv := strings.SplitN(e, "=", 2)
			util.SetKeyValue(viper, kv[0], kv[1])
		}
	}

	config := &Config{viper: viper}
	config.ConfigPath = cp

	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config, %v", err)
	}

	return config, nil
}

// NewConfig function creates a new configuration from the provided config string
func NewConfig(config, format string) (*Config, error) {
	if format == "" {
		format = "yaml"
	}

	viper := newViperWithDefaults()
	viper.SetConfigType(format)

	if err := viper.ReadConfig(strings.NewReader(config)); err != nil {
		return nil, err
	}

	c := &Config{viper: viper}

	if err := viper.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode config, %v", err)
	}

	return c, nil
}

// newViperWithDefaults returns a new viper instance with the default settings
func newViperWithDefaults() *viper.Viper {
	vi := viper.New()

	vi.SetDefault("host_port", "0.0.0.0:8080")
	vi.SetDefault("log_level", "info")
	vi.SetDefault("log_format", "auto")

	vi.SetDefault("default_limit", 100)
	vi.SetDefault("batch_size", 20)
	vi.SetDefault("max_auto_lookup_depth", 3)
	vi.SetDefault("relation_cache_size", 1000)

	vi.SetDefault("database.type", "postgres")
	vi.SetDefault("database.host", "localhost")
	vi.SetDefault("database.port", 5432)
	vi.SetDefault("database.user", "postgres")
	vi.SetDefault("database.password", "")
	vi.SetDefault("database.pool_size", 10)
	vi.SetDefault("database.ping_timeout", "5s")

	vi.SetDefault("env", "development")

	vi.BindEnv("env", "GO_ENV") //nolint:errcheck
	vi.BindEnv("host", "HOST")  //nolint:errcheck
	vi.BindEnv("port", "PORT")  //nolint:errcheck

	return vi
}

// newViper returns a new viper instance with the default settings reading
// the config file name from configPath on fs
func newViper(fs afero.Fs, configPath, configFile string) (*viper.Viper, error) {
	if configPath == "" {
		configPath = "./config"
	}

	cf, err := configFileIn(fs, configPath, configFile)
	if err != nil {
		return nil, err
	}

	vi := newViperWithDefaults()
	vi.SetFs(fs)
	vi.SetConfigFile(cf)
	return vi, nil
}

// configFileIn returns the path of the config file name in dir. A name
// without an extension is tried with each extension viper reads.
// The path is not made absolute so it resolves on fs as given.
func configFileIn(fs afero.Fs, dir, name string) (string, error) {
	if filepath.Ext(name) != "" {
		return filepath.Join(dir, name), nil
	}
	for _, ext := range viper.SupportedExts {
		p := filepath.Join(dir, name+"."+ext)
		if ok, _ := afero.Exists(fs, p); ok {
			return p, nil
		}
	}
	return "", fmt.Errorf("config file '%s' not found in '%s'", name, dir)
}

// AbsolutePath returns the absolute path of the file
func (c *Config) AbsolutePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ConfigPath, p)
}

func (c *Config) rateLimiterEnable() bool {
	return c.RateLimiter.Rate > 0 && c.RateLimiter.Bucket > 0
}

// ShouldUseJSONLogs returns true if logs should be in JSON format.
// Returns true if log_format is "json" OR if log_format is "auto" and production mode is enabled.
func (c *Config) ShouldUseJSONLogs() bool {
	if c.LogFormat == "json" {
		return true
	}
	if c.LogFormat == "auto" && c.Serv.Production {
		return true
	}
	return false
}

// GetConfigName returns the name of the configuration
func GetConfigName() string {
	goEnv := strings.TrimSpace(strings.ToLower(os.Getenv("GO_ENV")))

	switch goEnv {
	case "production", "prod":
		return "prod"

	case "staging", "stage":
		return "stage"

	case "testing", "test":
		return "test"

	case "development", "dev", "":
		return "dev"

	default:
		return goEnv
	}
}
