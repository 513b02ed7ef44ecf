package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const devConfig = `app_name: "{{ .AppName }} Development"
host_port: 0.0.0.0:8080
log_level: debug
log_format: simple
reload_on_config_change: true

db_type: {{ .DBType }}
default_limit: 100
batch_size: 20
max_auto_lookup_depth: 3

# reject filter keys that match no field
strict_filters: false

# expose only these tables, all of them when empty
# tables: []

database:
{{- if eq .DBType "sqlite" }}
  path: {{ .AppNameSlug }}.db
{{- else }}
  host: localhost
  dbname: {{ .AppNameSlug }}_development
{{- end }}
`

const prodConfig = `inherits: dev

app_name: "{{ .AppName }} Production"
production: true
log_level: warn
log_format: json
reload_on_config_change: false

rate_limiter:
  rate: 100
  bucket: 20

{{- if ne .DBType "sqlite" }}

database:
  dbname: {{ .AppNameSlug }}_production
  pool_size: 10
  max_connections: 20
{{- end }}
`

var initDBType string

func initCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "init <app-name>",
		Short: "Create a new app with a default config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := initApp(args[0], initDBType)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", dir)
			return nil
		},
	}
	c.Flags().StringVar(&initDBType, "db-type", "postgres", "postgres, mysql, mariadb or sqlite")
	return c
}

// initApp writes the dev and prod configs under <name>/config
func initApp(name, dbType string) (string, error) {
	slug := strings.ToLower(strings.ReplaceAll(filepath.Base(name), " ", "_"))
	vars := map[string]string{
		"AppName":     cases.Title(language.English).String(strings.ReplaceAll(slug, "_", " ")),
		"AppNameSlug": slug,
		"DBType":      dbType,
	}

	dir := filepath.Join(name, "config")
	if _, err := os.Stat(dir); err == nil {
		return "", fmt.Errorf("%s already exists", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	files := map[string]string{"dev.yml": devConfig, "prod.yml": prodConfig}
	for fn, text := range files {
		tmpl, err := template.New(fn).Parse(text)
		if err != nil {
			return "", err
		}

		var b bytes.Buffer
		if err := tmpl.Execute(&b, vars); err != nil {
			return "", err
		}
		if err := os.WriteFile(filepath.Join(dir, fn), b.Bytes(), 0o600); err != nil {
			return "", err
		}
	}
	return dir, nil
}
