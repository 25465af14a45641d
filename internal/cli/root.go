package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/omniql-engine/chatdb/engine/schema"
	"github.com/omniql-engine/chatdb/internal/config"
	"github.com/omniql-engine/chatdb/internal/logging"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=..."
var Version = "dev"

// app carries state shared by every subcommand
type app struct {
	out    io.Writer
	errOut io.Writer

	configPath string
	format     string

	cfg    *config.Config
	logger *zap.Logger
}

// configFlags are the persistent flags forwarded to config.Load when set
var configFlags = []string{"target", "schema", "provider", "model", "api-key", "cache", "log-level", "verbose", "max-attempts"}

// NewRootCommand builds the chatdb command tree writing to out and errOut
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut, logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "chatdb",
		Short: "Translate natural-language questions into MySQL or MongoDB queries",
		Long: `chatdb turns questions about a database into queries.

Phrases naming columns of several tables are joined automatically, common
single-table questions use a template catalog, and anything else can be
handed to a hosted model (OpenAI or Gemini) when one is configured.

Examples:
  chatdb translate --schema school.yaml "find entries in students"
  chatdb translate -t mongodb -s school.yaml "get Grade, Major where Grade > 80"
  chatdb sql2mongo "SELECT COUNT(*) FROM students WHERE Grade BETWEEN 50 AND 90"
  chatdb parse 'db.students.aggregate([{ $limit: 5 }])'`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { _ = a.logger.Sync() },
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "Config file (YAML or JSON)")
	pf.StringVarP(&a.format, "format", "f", "text", "Output format: text or json")
	pf.StringP("target", "t", "", "Target database: MySQL or MongoDB")
	pf.StringP("schema", "s", "", "Schema file (YAML/JSON) or directory of CSV files")
	pf.String("provider", "", "Generator provider: none, openai or gemini")
	pf.String("model", "", "Generator model")
	pf.String("api-key", "", "Generator API key")
	pf.Int("max-attempts", 0, "Generator attempts per phrase")
	pf.String("cache", "", "Cache backend: none, memory or redis")
	pf.String("log-level", "", "Log level: debug, info, warn or error")
	pf.BoolP("verbose", "v", false, "Debug logging")

	root.AddCommand(
		a.translateCmd(),
		a.sql2mongoCmd(),
		a.parseCmd(),
		a.validateCmd(),
		a.schemaCmd(),
		a.versionCmd(),
	)
	return root
}

// Execute runs the CLI against the process streams
func Execute() int {
	root := NewRootCommand(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(context.Background()); err != nil {
		color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "Error: ")
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.format != "text" && a.format != "json" {
		return fmt.Errorf("invalid format %q (must be text or json)", a.format)
	}

	overrides := make(map[string]interface{})
	flags := cmd.Flags()
	for _, name := range configFlags {
		if !flags.Changed(name) {
			continue
		}
		switch name {
		case "verbose":
			v, _ := flags.GetBool(name)
			overrides[name] = v
		case "max-attempts":
			v, _ := flags.GetInt(name)
			overrides[name] = v
		default:
			v, _ := flags.GetString(name)
			overrides[name] = v
		}
	}

	cfg, err := config.Load(config.Options{ConfigPath: a.configPath, Flags: overrides})
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

// loadSchema reads the configured schema; a missing setting yields nil
func (a *app) loadSchema() (*schema.Schema, error) {
	path := a.cfg.Engine.Schema
	if path == "" {
		return nil, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	if info.IsDir() {
		return schema.FromCSVDir(path)
	}
	return schema.Load(path)
}

// ============================================================================
// OUTPUT HELPERS
// ============================================================================

var (
	labelColor = color.New(color.FgCyan, color.Bold)
	okColor    = color.New(color.FgGreen, color.Bold)
	badColor   = color.New(color.FgRed, color.Bold)
)

func (a *app) label(name, value string) {
	labelColor.Fprintf(a.out, "%s: ", name)
	fmt.Fprintln(a.out, value)
}
