package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/bson"
	"gopkg.in/yaml.v3"

	"github.com/sqlcollection/sqlcollection/core"
)

type findFlags struct {
	query      string
	projection string
	lookup     string
	sort       string
	autoLookup int
	limit      int
	skip       int
	count      bool
}

func findCmd() *cobra.Command {
	var f findFlags

	c := &cobra.Command{
		Use:   "find <collection>",
		Short: "Print the documents of a collection, one per line",
		Example: `  sqlcollection find task --query '{"hours": {"$gt": 2}}' --sort '[["hours", -1]]'
  sqlcollection find door --lookup '[{"from": "door_category", "localField": "id",
    "foreignField": "door_id", "as": "categories", "type": "multiple"}]'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cdb, err := openCollections(cmd.Context())
			if err != nil {
				return err
			}
			defer cdb.Close()
			return runFind(cmd.Context(), cmd.OutOrStdout(), cdb, args[0], f)
		},
	}

	c.Flags().StringVar(&f.query, "query", "", "filter document (Extended JSON)")
	c.Flags().StringVar(&f.projection, "projection", "", "projection document (Extended JSON)")
	c.Flags().StringVar(&f.lookup, "lookup", "", "array of lookups (Extended JSON)")
	c.Flags().StringVar(&f.sort, "sort", "", "[[key, dir], ...] or {key: dir} (Extended JSON)")
	c.Flags().IntVar(&f.autoLookup, "auto-lookup", 0, "follow foreign keys up to this depth")
	c.Flags().IntVar(&f.limit, "limit", 0, "maximum number of documents")
	c.Flags().IntVar(&f.skip, "skip", 0, "number of documents to skip")
	c.Flags().BoolVar(&f.count, "count", false, "print the number of matching documents")
	return c
}

func describeCmd() *cobra.Command {
	var autoLookup int
	var output string

	c := &cobra.Command{
		Use:   "describe [collection]",
		Short: "Describe the columns of a collection, or of every collection",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cdb, err := openCollections(cmd.Context())
			if err != nil {
				return err
			}
			defer cdb.Close()

			var v any
			if len(args) == 0 {
				v, err = cdb.DescribeAll(cmd.Context())
			} else {
				v, err = cdb.Describe(cmd.Context(), args[0], &core.DescribeOptions{AutoLookup: autoLookup})
			}
			if err != nil {
				return err
			}

			return writeDescription(cmd.OutOrStdout(), v, output)
		},
	}
	c.Flags().IntVar(&autoLookup, "auto-lookup", 0, "nest related tables up to this depth")
	c.Flags().StringVarP(&output, "output", "o", "json", "output format: json or yaml")
	return c
}

func writeDescription(w io.Writer, v any, format string) error {
	switch format {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func tablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cdb, err := openCollections(cmd.Context())
			if err != nil {
				return err
			}
			defer cdb.Close()

			for _, name := range cdb.Collections() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func openCollections(ctx context.Context) (*core.DB, error) {
	if err := setup(cpath); err != nil {
		return nil, err
	}
	if err := initDB(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return core.Open(ctx, &conf.Core, db, core.OptionSetLogger(log.Desugar()))
}

func runFind(ctx context.Context, w io.Writer, cdb *core.DB, name string, f findFlags) error {
	c, err := cdb.Collection(name)
	if err != nil {
		return err
	}

	query, err := parseExtJSON("query", f.query)
	if err != nil {
		return err
	}
	projection, err := parseExtJSON("projection", f.projection)
	if err != nil {
		return err
	}
	lv, err := parseExtJSON("lookup", f.lookup)
	if err != nil {
		return err
	}
	lookups, err := core.DecodeLookups(lv)
	if err != nil {
		return err
	}
	sv, err := parseExtJSON("sort", f.sort)
	if err != nil {
		return err
	}
	keys, err := core.ParseSort(sv)
	if err != nil {
		return err
	}

	cur, err := c.Find(ctx, query, core.Find().
		SetProjection(projection).
		SetLookup(lookups).
		SetAutoLookup(f.autoLookup))
	if err != nil {
		return err
	}
	defer cur.Close(ctx) //nolint:errcheck

	if len(keys) != 0 {
		cur.Sort(keys...)
	}
	if f.limit != 0 {
		cur.Limit(f.limit)
	}
	if f.skip != 0 {
		cur.Skip(f.skip)
	}

	if f.count {
		n, err := cur.Count(ctx, f.limit != 0 || f.skip != 0)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, n)
		return err
	}

	for cur.Next(ctx) {
		b, err := bson.MarshalExtJSON(cur.Current(), false, false)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s\n", b); err != nil {
			return err
		}
	}
	return cur.Err()
}

// parseExtJSON reads a flag holding any Extended JSON value, nil when the
// flag is empty
func parseExtJSON(name, s string) (any, error) {
	if s == "" {
		return nil, nil
	}

	var wrap struct {
		V any `bson:"v"`
	}
	if err := bson.UnmarshalExtJSON([]byte(`{"v":`+s+`}`), false, &wrap); err != nil {
		return nil, fmt.Errorf("%w: --%s: %v", core.ErrWrongParameter, name, err)
	}
	return wrap.V, nil
}
