package serv

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/sqlcollection/sqlcollection/internal/sqlite"
)

const (
	pemSig = "--BEGIN "
)

const maxConnectAttempts = 50

type dbConf struct {
	driverName string
	connString string
}

// NewDB opens the configured database, retrying until it answers a ping
func NewDB(conf *Config, log *zap.SugaredLogger, fs afero.Fs) (*sql.DB, error) {
	dc, err := initDBDriver(conf, fs)
	if err != nil {
		return nil, err
	}

	var db *sql.DB

	for i := 0; ; i++ {
		db, err = sql.Open(dc.driverName, dc.connString)
		if err == nil {
			setPoolLimits(db, conf)

			if err = pingDB(db, conf.DB.PingTimeout); err == nil {
				return db, nil
			}
			db.Close() //nolint:errcheck
			log.Warnf("database ping: %s", err)
		} else {
			log.Warnf("database open: %s", err)
		}

		if i >= maxConnectAttempts {
			return nil, errors.Wrapf(err, "database %s unreachable", conf.DBType)
		}
		time.Sleep(time.Duration(i*100) * time.Millisecond)
	}
}

func setPoolLimits(db *sql.DB, conf *Config) {
	db.SetMaxIdleConns(conf.DB.PoolSize)
	db.SetMaxOpenConns(conf.DB.MaxConnections)
	db.SetConnMaxIdleTime(conf.DB.MaxConnIdleTime)
	db.SetConnMaxLifetime(conf.DB.MaxConnLifeTime)
}

func pingDB(db *sql.DB, timeout time.Duration) error {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return db.PingContext(ctx)
}

// detectDBType detects the database type from the connection string and updates conf.DBType
func detectDBType(conf *Config) {
	cs := conf.DB.ConnString
	switch {
	case strings.HasPrefix(cs, "postgres://"), strings.HasPrefix(cs, "postgresql://"):
		conf.DBType = "postgres"
	case strings.HasPrefix(cs, "mysql://"):
		conf.DBType = "mysql"
		conf.DB.ConnString = strings.TrimPrefix(cs, "mysql://")
	case strings.HasPrefix(cs, "file:"):
		conf.DBType = "sqlite"
	}
}

// initDBDriver picks the driver and builds its connection string
func initDBDriver(conf *Config, fs afero.Fs) (*dbConf, error) {
	// Honor explicit database.type when db_type is unset.
	if conf.DBType == "" && conf.DB.Type != "" {
		conf.DBType = strings.ToLower(conf.DB.Type)
	}

	detectDBType(conf)

	var dc *dbConf
	var err error

	switch conf.DBType {
	case "", "postgres":
		conf.DBType = "postgres"
		dc, err = initPostgres(conf, fs)
	case "mysql", "mariadb":
		dc, err = initMysql(conf)
	case "sqlite":
		dc, err = initSqlite(conf)
	default:
		err = fmt.Errorf("unsupported database type %q", conf.DBType)
	}

	if err != nil {
		return nil, errors.Wrap(err, "database init")
	}
	return dc, nil
}

func initPostgres(conf *Config, fs afero.Fs) (*dbConf, error) {
	config, err := pgx.ParseConfig(conf.DB.ConnString)
	if err != nil {
		return nil, err
	}

	// Check if the connection string is empty, if it, look at the other fields
	if conf.DB.ConnString == "" {
		if conf.DB.Host != "" {
			config.Host = conf.DB.Host
		}
		if conf.DB.Port != 0 {
			config.Port = conf.DB.Port
		}
		if conf.DB.User != "" {
			config.User = conf.DB.User
		}
		if conf.DB.Password != "" {
			config.Password = conf.DB.Password
		}
		if conf.DB.DBName != "" {
			config.Database = conf.DB.DBName
		}
	}

	if config.RuntimeParams == nil {
		config.RuntimeParams = map[string]string{}
	}

	if conf.DB.Schema != "" {
		config.RuntimeParams["search_path"] = conf.DB.Schema
		if conf.DBSchema == "" {
			conf.DBSchema = conf.DB.Schema
		}
	}

	if conf.AppName != "" {
		config.RuntimeParams["application_name"] = conf.AppName
	}

	if conf.DB.EnableTLS {
		if config.TLSConfig, err = tlsConfig(conf, fs); err != nil {
			return nil, err
		}
	}

	return &dbConf{driverName: "pgx", connString: stdlib.RegisterConnConfig(config)}, nil
}

func tlsConfig(conf *Config, fs afero.Fs) (*tls.Config, error) {
	if len(conf.DB.ServerName) == 0 {
		return nil, errors.New("tls: server_name is required")
	}
	if len(conf.DB.ServerCert) == 0 {
		return nil, errors.New("tls: server_cert is required")
	}

	rootCertPool := x509.NewCertPool()

	pem, err := readPEM(conf, fs, conf.DB.ServerCert)
	if err != nil {
		return nil, errors.Wrap(err, "tls")
	}

	if ok := rootCertPool.AppendCertsFromPEM(pem); !ok {
		return nil, errors.New("tls: failed to append pem")
	}

	tc := &tls.Config{
		MinVersion: tls.VersionTLS12,
		RootCAs:    rootCertPool,
		ServerName: conf.DB.ServerName,
	}

	if len(conf.DB.ClientCert) == 0 {
		return tc, nil
	}
	if len(conf.DB.ClientKey) == 0 {
		return nil, errors.New("tls: client_key is required")
	}

	certPEM, err := readPEM(conf, fs, conf.DB.ClientCert)
	if err != nil {
		return nil, errors.Wrap(err, "tls")
	}
	keyPEM, err := readPEM(conf, fs, conf.DB.ClientKey)
	if err != nil {
		return nil, errors.Wrap(err, "tls")
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, errors.Wrap(err, "tls")
	}
	tc.Certificates = []tls.Certificate{cert}
	return tc, nil
}

// readPEM returns v when it holds PEM text, otherwise the contents of the
// file it names relative to the config path
func readPEM(conf *Config, fs afero.Fs, v string) ([]byte, error) {
	if strings.Contains(v, pemSig) {
		return []byte(strings.ReplaceAll(v, `\n`, "\n")), nil
	}
	return afero.ReadFile(fs, conf.AbsolutePath(v))
}

func initMysql(conf *Config) (*dbConf, error) {
	var mc *mysql.Config

	if c := conf.DB; c.ConnString != "" {
		var err error
		if mc, err = mysql.ParseDSN(c.ConnString); err != nil {
			return nil, err
		}
	} else {
		mc = mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
		mc.DBName = c.DBName
	}

	// DATETIME columns are read as time.Time
	mc.ParseTime = true

	if conf.DBSchema == "" {
		conf.DBSchema = mc.DBName
	}
	return &dbConf{driverName: "mysql", connString: mc.FormatDSN()}, nil
}

func initSqlite(conf *Config) (*dbConf, error) {
	connString := conf.DB.ConnString
	if connString == "" && conf.DB.Path != "" {
		connString = "file:" + conf.AbsolutePath(conf.DB.Path)
	}
	if connString == "" {
		return nil, errors.New("sqlite requires a connection string or path")
	}

	if !strings.Contains(connString, "_foreign_keys") {
		sep := "?"
		if strings.Contains(connString, "?") {
			sep = "&"
		}
		connString += sep + "_foreign_keys=on"
	}

	return &dbConf{driverName: sqlite.DriverName, connString: connString}, nil
}
