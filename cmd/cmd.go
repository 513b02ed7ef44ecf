package main

import (
	"database/sql"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sqlcollection/sqlcollection/serv"
)

var (
	// These variables are set using -ldflags
	version string
	commit  string
	date    string
)

var (
	log   *zap.SugaredLogger
	db    *sql.DB
	conf  *serv.Config
	cpath string
)

// Cmd is the entry point for the CLI
func Cmd() {
	log = newLogger(false).Sugar()

	if err := rootCmd().Execute(); err != nil {
		log.Fatalf("%s", err)
	}
}

func rootCmd() *cobra.Command {
	cobra.EnableCommandSorting = false
	c := &cobra.Command{
		Use:           "sqlcollection",
		Short:         BuildDetails(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	c.PersistentFlags().StringVar(&cpath,
		"path", "./config", "path to config files")

	c.AddCommand(servCmd())
	c.AddCommand(findCmd())
	c.AddCommand(describeCmd())
	c.AddCommand(tablesCmd())
	c.AddCommand(initCmd())
	c.AddCommand(confSchemaCmd())
	c.AddCommand(versionCmd())
	return c
}

// setup is a helper function to read the config file
func setup(cpath string) error {
	if conf != nil {
		return nil
	}

	cp, err := filepath.Abs(cpath)
	if err != nil {
		return err
	}

	if conf, err = serv.ReadInConfig(path.Join(cp, serv.GetConfigName())); err != nil {
		return fmt.Errorf("reading config from %s: %w", cp, err)
	}
	return nil
}

// initDB is a helper function to initialize the database connection
func initDB() error {
	if db != nil {
		return nil
	}

	var err error
	if db, err = serv.NewDB(conf, log, afero.NewOsFs()); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	return nil
}

// BuildDetails returns the version, commit and build date of the binary
func BuildDetails() string {
	if version == "" {
		return `
sqlcollection (unknown version)
MongoDB style collections over relational tables`
	}

	return fmt.Sprintf(`
sqlcollection %v
MongoDB style collections over relational tables

Commit SHA-1          : %v
Commit timestamp      : %v
Go version            : %v`,
		version, commit, date, runtime.Version())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of sqlcollection",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), BuildDetails())
		},
	}
}

// newLogger creates a new logger
func newLogger(json bool) *zap.Logger {
	return newLoggerWithOutput(json, os.Stderr)
}

// newLoggerWithOutput creates a new logger with a custom output
func newLoggerWithOutput(json bool, output zapcore.WriteSyncer) *zap.Logger {
	econf := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		NameKey:        "logger",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	var core zapcore.Core

	if json {
		core = zapcore.NewCore(zapcore.NewJSONEncoder(econf), output, zap.DebugLevel)
	} else {
		econf.EncodeLevel = zapcore.CapitalColorLevelEncoder
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(econf), output, zap.DebugLevel)
	}
	return zap.New(core)
}
