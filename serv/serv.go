// Package serv exposes the collections of a relational database over HTTP.
// Request and response bodies are Extended JSON so document key order is
// kept.
package serv

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/sqlcollection/sqlcollection/core"
	"github.com/sqlcollection/sqlcollection/serv/internal/util"
)

var version string

const (
	serverName = "sqlcollection"
	defaultHP  = "0.0.0.0:8080"
)

// Service serves the document API of one database
type Service struct {
	atomic.Value
	done chan struct{}
}

type service struct {
	conf *Config
	log  *zap.SugaredLogger
	zlog *zap.Logger
	fs   afero.Fs
	db   *sql.DB
	cdb  *core.DB
	srv  *http.Server

	closeDB bool
}

type Option func(*service) error

// OptionSetDB sets a database handle to use instead of opening one from
// the config. The handle is not closed with the service.
func OptionSetDB(db *sql.DB) Option {
	return func(s *service) error {
		s.db = db
		return nil
	}
}

// OptionSetFS sets the file system used to read config relative files
func OptionSetFS(fs afero.Fs) Option {
	return func(s *service) error {
		s.fs = fs
		return nil
	}
}

// OptionSetLogger replaces the logger built from the config
func OptionSetLogger(log *zap.Logger) Option {
	return func(s *service) error {
		s.zlog = log
		s.log = log.Sugar()
		return nil
	}
}

// NewService opens the database and loads its collections
func NewService(conf *Config, options ...Option) (*Service, error) {
	s, err := newService(conf, options...)
	if err != nil {
		return nil, err
	}

	s1 := &Service{done: make(chan struct{})}
	s1.Store(s)

	if s.conf.WatchAndReload {
		initConfigWatcher(s1)
	}
	return s1, nil
}

func newService(conf *Config, options ...Option) (*service, error) {
	s := &service{conf: conf, fs: afero.NewOsFs()}

	for _, op := range options {
		if err := op(s); err != nil {
			return nil, err
		}
	}

	if s.zlog == nil {
		s.zlog = util.NewLogger(conf.ShouldUseJSONLogs(), util.ParseLevel(conf.LogLevel))
		s.log = s.zlog.Sugar()
	}

	if err := s.initConfig(); err != nil {
		return nil, err
	}

	if s.db == nil {
		db, err := NewDB(s.conf, s.log, s.fs)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to database")
		}
		s.db = db
		s.closeDB = true
	}

	cdb, err := core.Open(context.Background(), &s.conf.Core, s.db, core.OptionSetLogger(s.zlog))
	if err != nil {
		if s.closeDB {
			s.db.Close() //nolint:errcheck
		}
		return nil, errors.Wrap(err, "failed to load collections")
	}
	s.cdb = cdb
	return s, nil
}

// initConfig validates the configuration and fills in the host and port
func (s *service) initConfig() error {
	c := s.conf

	// copy over db_type from database.type
	if c.DBType == "" {
		c.DBType = strings.ToLower(c.DB.Type)
	}

	if err := c.Core.Validate(); err != nil {
		return err
	}

	hp := strings.SplitN(c.HostPort, ":", 2)

	if len(hp) == 2 {
		if c.Host != "" {
			hp[0] = c.Host
		}
		if c.Port != "" {
			hp[1] = c.Port
		}
		c.hostPort = hp[0] + ":" + hp[1]
	}

	if c.hostPort == "" {
		c.hostPort = defaultHP
	}

	c.Core.Production = c.Serv.Production
	return nil
}

func (s1 *Service) load() *service {
	return s1.Load().(*service)
}

// DB returns the document API of the service
func (s1 *Service) DB() *core.DB {
	return s1.load().cdb
}

// Reload rebuilds the collection map from the current database tables
func (s1 *Service) Reload(ctx context.Context) error {
	s := s1.load()
	if err := s.cdb.Reload(ctx); err != nil {
		return err
	}
	s.log.Info("collections reloaded")
	return nil
}

// Handler returns the HTTP handler for all routes
func (s1 *Service) Handler() (http.Handler, error) {
	return routesHandler(s1, chi.NewRouter())
}

// Close stops the config watcher and the schema poller and closes a
// database the service opened
func (s1 *Service) Close() {
	select {
	case <-s1.done:
		return
	default:
		close(s1.done)
	}

	s := s1.load()
	s.cdb.Close()
	if s.closeDB {
		if err := s.db.Close(); err != nil {
			s.log.Warnf("closing database: %s", err)
		}
	}
}

// Start runs the HTTP server until SIGINT or SIGTERM
func (s1 *Service) Start() error {
	startHTTP(s1)
	return nil
}

// startHTTP starts the HTTP server and shuts it down on a signal
func startHTTP(s1 *Service) {
	s := s1.load()

	routes, err := s1.Handler()
	if err != nil {
		s.log.Fatalf("error setting up routes: %s", err)
	}

	s.srv = &http.Server{
		Addr:              s.conf.hostPort,
		Handler:           routes,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		MaxHeaderBytes:    1 << 20,
		ReadHeaderTimeout: 10 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.srv.Shutdown(ctx); err != nil {
			s.log.Warnf("shutdown: %s", err)
		}
		close(idleConnsClosed)
	}()

	s.srv.RegisterOnShutdown(func() {
		s1.Close()
		s.log.Info("shutdown complete")
	})

	ver := version
	if ver == "" {
		ver = "not-set"
	}

	s.zlog.Info(serverName+" started",
		zap.String("version", ver),
		zap.String("host-port", s.conf.hostPort),
		zap.String("app-name", s.conf.AppName),
		zap.String("env", os.Getenv("GO_ENV")),
		zap.String("db-type", s.conf.DBType),
		zap.Int("collections", len(s.cdb.Collections())),
		zap.Bool("production", s.conf.Serv.Production),
	)

	l, err := net.Listen("tcp", s.conf.hostPort)
	if err != nil {
		s.log.Fatalf("failed to init port: %s", err)
	}

	if err := s.srv.Serve(l); err != http.ErrServerClosed {
		s.log.Fatalf("failed to start: %s", err)
	}
	<-idleConnsClosed
}
