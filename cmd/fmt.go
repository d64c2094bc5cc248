package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sqlseq/sqlseq/internal/parser"
	"github.com/sqlseq/sqlseq/internal/writer"
)

var fmtCheck bool

var fmtCmd = &cobra.Command{
	Use:   "fmt [script|dir]...",
	Short: "Rewrite scripts in canonical form",
	Long: `Rewrite sequence scripts in canonical form: one blank line between
sections, trimmed directive values and de-duplicated identifiers.

With --check nothing is written; scripts that would change are listed and the
command fails.`,
	RunE: runFmt,
}

func init() {
	rootCmd.AddCommand(fmtCmd)

	fmtCmd.Flags().BoolVar(&fmtCheck, "check", false, "List scripts that are not formatted instead of rewriting them")
}

func runFmt(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	scripts, err := expandScriptArgs(cfg, args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	unformatted := 0
	for _, script := range scripts {
		data, err := os.ReadFile(script)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", script, err)
		}
		doc, err := parser.Parse(string(data), script)
		if err != nil {
			return err
		}
		if writer.Render(doc) == string(data) {
			continue
		}

		unformatted++
		if fmtCheck {
			fmt.Fprintln(out, script)
			continue
		}
		if err := writer.Save(doc); err != nil {
			return err
		}
		fmt.Fprintf(out, "formatted %s\n", script)
	}

	if fmtCheck && unformatted > 0 {
		return fmt.Errorf("%d script(s) not formatted", unformatted)
	}
	return nil
}
