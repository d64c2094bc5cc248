package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sqlseq/sqlseq/internal/compiler"
	"github.com/sqlseq/sqlseq/internal/database"
	"github.com/sqlseq/sqlseq/internal/database/connection"
	"github.com/sqlseq/sqlseq/internal/parser"
	"github.com/sqlseq/sqlseq/internal/sqlvalidation"
)

var (
	checkSQL          bool
	checkOutputFormat string
)

var checkCmd = &cobra.Command{
	Use:   "check [script|dir]...",
	Short: "Parse and compile scripts without executing them",
	Long: `Parse and compile sequence scripts and report the first problem in each.

With --sql the statements of steps on PostgreSQL connections are also parsed
with the PostgreSQL grammar. Statements that write data or change the schema
are reported as warnings.`,
	Example: `  # Check every script in the input directory
  sqlseq check

  # Check one script including its SQL, as JSON for editor integration
  sqlseq check daily_sales.seq --sql --output-format json`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().BoolVar(&checkSQL, "sql", false, "Also check statements on PostgreSQL connections")
	checkCmd.Flags().StringVar(&checkOutputFormat, "output-format", "text", "Output format: text (default) or json")
}

// checkReport is the JSON form of one checked script.
type checkReport struct {
	Script string                          `json:"script"`
	Valid  bool                            `json:"valid"`
	Error  string                          `json:"error,omitempty"`
	Issues []sqlvalidation.ValidationIssue `json:"issues,omitempty"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	if checkOutputFormat != "text" && checkOutputFormat != "json" {
		return fmt.Errorf("invalid output format %q: use text or json", checkOutputFormat)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	scripts, err := expandScriptArgs(cfg, args)
	if err != nil {
		return err
	}

	engines := func(string) (database.DatabaseType, bool) { return "", false }
	if checkSQL {
		conns, err := cfg.ResolveConnections(profile)
		if err != nil {
			return &configError{err: err}
		}
		manager, err := connection.NewManager(conns, connection.DefaultPoolSettings, nil)
		if err != nil {
			return &configError{err: err}
		}
		defer func() { _ = manager.Close() }()
		engines = manager.DatabaseType
	}

	reports := make([]checkReport, 0, len(scripts))
	for _, script := range scripts {
		reports = append(reports, checkScript(script, engines))
	}

	out := cmd.OutOrStdout()
	if checkOutputFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
	} else {
		green := color.New(color.FgGreen)
		red := color.New(color.FgRed)
		yellow := color.New(color.FgYellow)
		for _, r := range reports {
			if r.Valid {
				_, _ = green.Fprintf(out, "✓ %s\n", r.Script)
			} else {
				_, _ = red.Fprintf(out, "✗ %s\n", r.Script)
			}
			if r.Error != "" {
				fmt.Fprintf(out, "  %s\n", r.Error)
			}
			for _, issue := range r.Issues {
				c := red
				if issue.Severity == sqlvalidation.SeverityWarning {
					c = yellow
				}
				_, _ = c.Fprintf(out, "  %s\n", issue)
			}
		}
	}

	invalid := 0
	for _, r := range reports {
		if !r.Valid {
			invalid++
		}
	}
	if invalid > 0 {
		return fmt.Errorf("%d of %d script(s) invalid", invalid, len(reports))
	}
	return nil
}

func checkScript(path string, engines sqlvalidation.Engines) checkReport {
	report := checkReport{Script: path}

	doc, err := parser.ParseFile(path)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	q, err := compiler.Compile(doc)
	if err != nil {
		report.Error = err.Error()
		return report
	}

	result := sqlvalidation.ValidateQueue(q, engines)
	report.Valid = result.Valid
	report.Issues = result.Issues
	return report
}
