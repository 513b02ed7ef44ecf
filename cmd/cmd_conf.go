package main

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/sqlcollection/sqlcollection/serv"
)

func confSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conf:schema",
		Short: "Print the JSON schema of the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(configSchema())
		},
	}
}

func configSchema() *jsonschema.Schema {
	r := jsonschema.Reflector{
		FieldNameTag:               "mapstructure",
		ExpandedStruct:             true,
		AllowAdditionalProperties:  true,
		RequiredFromJSONSchemaTags: true,
	}
	return r.Reflect(&serv.Config{})
}
