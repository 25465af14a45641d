package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/omniql-engine/chatdb/engine/pipeline"
	"github.com/omniql-engine/chatdb/engine/translator"
)

func (a *app) parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <aggregate call>",
		Short: "Parse a db.<collection>.aggregate([...]) string into its pipeline",
		Long: `Parse a MongoDB aggregate call, including loosely written ones with
unquoted keys or single quotes, and print the collection and each stage.

Examples:
  chatdb parse 'db.students.aggregate([{ $match: { Major: "CS" } }, { $limit: 2 }])'
  chatdb parse -f json 'db.t.aggregate([])'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection, stages, err := pipeline.Extract(strings.Join(args, " "))
			if err != nil {
				return err
			}

			if a.format == "json" {
				rendered, err := translator.Render(collection, stages)
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, rendered)
				return nil
			}

			a.label("Collection", collection)
			labelColor.Fprintf(a.out, "Stages (%d):\n", len(stages))
			for i, stage := range stages {
				data, err := bson.MarshalExtJSON(stage, false, false)
				if err != nil {
					return fmt.Errorf("stage %d: %w", i+1, err)
				}
				fmt.Fprintf(a.out, "  %d. %s\n", i+1, data)
			}
			return nil
		},
	}
}
