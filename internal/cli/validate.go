package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/omniql-engine/chatdb/engine/validator"
)

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <query>",
		Short: "Check a MySQL SELECT or MongoDB aggregate call for the configured target",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := validator.ValidateWithDetails(strings.Join(args, " "), a.cfg.Engine.Target)
			if err != nil {
				return err
			}

			if a.format == "json" {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			} else if res.Valid {
				okColor.Fprintln(a.out, "valid")
				if res.Normalized != "" {
					fmt.Fprintln(a.out, res.Normalized)
				}
			} else {
				badColor.Fprintln(a.out, "invalid")
				fmt.Fprintln(a.out, res.Error)
				if res.Suggestion != "" {
					a.label("Suggestion", res.Suggestion)
				}
			}

			if !res.Valid {
				return fmt.Errorf("query is not valid %s", a.cfg.Engine.Target)
			}
			return nil
		},
	}
}
