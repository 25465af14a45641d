package cli

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/omniql-engine/chatdb/engine/translator"
)

func (a *app) sql2mongoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sql2mongo <sql>",
		Short: "Translate a SQL SELECT into a MongoDB aggregate call",
		Long: `Translate a SQL SELECT into a db.<collection>.aggregate([...]) call.
A --schema lets unqualified columns of a JOIN resolve to their table.

Examples:
  chatdb sql2mongo "SELECT * FROM students LIMIT 5"
  chatdb sql2mongo -s school.yaml "SELECT Grade, Major FROM enrollments JOIN students ON enrollments.StudentID = students.StudentID"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.loadSchema()
			if err != nil {
				return err
			}

			tr, err := translator.New(translator.WithSchema(s)).Translate(strings.Join(args, " "))
			if err != nil {
				return err
			}

			if a.format == "json" {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]string{
					"rule":       tr.Rule,
					"collection": tr.Collection,
					"query":      tr.Query,
				})
			}
			a.label("Rule", tr.Rule)
			a.label("MongoDB", "\n"+tr.Query)
			return nil
		},
	}
}
