package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the tables and columns of the configured schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.loadSchema()
			if err != nil {
				return err
			}
			if s == nil {
				return fmt.Errorf("no schema configured (use --schema or CHATDB_SCHEMA)")
			}

			if a.format == "json" {
				tables := make([]map[string]interface{}, 0, len(s.Tables))
				for _, t := range s.Tables {
					tables = append(tables, map[string]interface{}{"name": t.Name, "columns": t.Columns})
				}
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(tables)
			}

			for _, t := range s.Tables {
				labelColor.Fprint(a.out, t.Name)
				fmt.Fprintf(a.out, " (%d columns)\n", len(t.Columns))
				for _, c := range t.Columns {
					fmt.Fprintf(a.out, "  %s\n", c)
				}
			}
			return nil
		},
	}
}
