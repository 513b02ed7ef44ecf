package main

import (
	"github.com/spf13/cobra"

	"github.com/sqlcollection/sqlcollection/serv"
)

// servCmd is the cobra CLI command for the serve subcommand
func servCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"serv"},
		Short:   "Run the collection HTTP service",
		RunE:    cmdServ,
	}
}

// cmdServ is the handler for the serve subcommand
func cmdServ(*cobra.Command, []string) error {
	if err := setup(cpath); err != nil {
		return err
	}

	s, err := serv.NewService(conf)
	if err != nil {
		return err
	}
	return s.Start()
}
