package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sqlseq/sqlseq/internal/compiler"
	"github.com/sqlseq/sqlseq/internal/parser"
)

var showCmd = &cobra.Command{
	Use:   "show <script>",
	Short: "Print the resolved statements of a script",
	Long: `Print every statement of a script with its snippets substituted, in
execution order, each preceded by a comment naming its connection, database
and result identifier. Nothing is executed.`,
	Example: `  sqlseq show daily_sales`,
	Args:    cobra.ExactArgs(1),
	RunE:    runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path, err := resolveScript(cfg, args[0])
	if err != nil {
		return err
	}

	doc, err := parser.ParseFile(path)
	if err != nil {
		return err
	}
	q, err := compiler.Compile(doc)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), q.Canonical())
	return nil
}
