package cli

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/omniql-engine/chatdb"
)

type translateOutput struct {
	ID         string `json:"id"`
	Phrase     string `json:"phrase"`
	Target     string `json:"target"`
	Source     string `json:"source"`
	Rule       string `json:"rule,omitempty"`
	SQL        string `json:"sql,omitempty"`
	Mongo      string `json:"mongo,omitempty"`
	Collection string `json:"collection,omitempty"`
	Cached     bool   `json:"cached"`
}

func (a *app) translateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "translate <phrase>",
		Short: "Translate a question into a query for the configured target",
		Long: `Translate a natural-language question into a MySQL statement or a MongoDB
aggregate call. Without --schema, join detection and table name matching are off.

Examples:
  chatdb translate -s school.yaml "find sum of Credits in courses"
  chatdb translate -t mongodb -s ./csv "list unique Major in students"`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.runTranslate,
	}
}

func (a *app) runTranslate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	phrase := strings.Join(args, " ")

	s, err := a.loadSchema()
	if err != nil {
		return err
	}

	engine, closeCache, err := chatdb.FromConfig(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer closeCache()

	var sp *spinner.Spinner
	if a.cfg.Generator.Provider != "none" && !color.NoColor {
		sp = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(a.errOut))
		sp.Suffix = " translating..."
		sp.Start()
	}
	res, err := engine.Translate(ctx, phrase, s, a.cfg.Engine.Target)
	if sp != nil {
		sp.Stop()
	}
	if err != nil {
		return err
	}

	if a.format == "json" {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(translateOutput{
			ID:         res.ID.String(),
			Phrase:     res.Phrase,
			Target:     res.Target,
			Source:     string(res.Source),
			Rule:       res.Rule,
			SQL:        res.SQL,
			Mongo:      res.Mongo,
			Collection: res.Collection,
			Cached:     res.Cached,
		})
	}

	source := string(res.Source)
	if res.Rule != "" {
		source += " (" + res.Rule + ")"
	}
	a.label("Source", source)
	if res.SQL != "" {
		a.label("SQL", "\n"+res.SQL)
	}
	if res.Mongo != "" {
		a.label("MongoDB", "\n"+res.Mongo)
	}
	return nil
}
