package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sqlseq/sqlseq/internal/state"
)

var listCmd = &cobra.Command{
	Use:   "list [dir]",
	Short: "List the scripts in the input directory",
	Long: `List the sequence scripts in the input directory, or in dir, with their
name, identifiers, step count and the outcome of their last run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir := cfg.InputDir()
	if len(args) == 1 {
		dir = args[0]
	}
	scripts, err := listScripts(dir)
	if err != nil {
		return err
	}
	if len(scripts) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No scripts in %s\n", dir)
		return nil
	}

	history, err := state.Load(state.Path(cfg.OutputDir()))
	if err != nil {
		history = nil
	}

	rows := make([][]string, 0, len(scripts))
	for _, script := range scripts {
		row := []string{filepath.Base(script), "", "", "", "", ""}
		doc, err := loadScript(script)
		if doc != nil {
			row[1] = doc.Name()
			row[2] = strings.Join(doc.Identifiers(), ", ")
			row[3] = strconv.Itoa(len(doc.Steps()))
			if doc.HasAggregation() {
				row[4] = "yes"
			}
		}
		switch {
		case err != nil:
			row[5] = errorCategory(err)
		case history != nil:
			if run, ok := history.Last(absPath(script)); ok {
				row[5] = fmt.Sprintf("%s %s", run.Status, run.FinishedAt.Format("2006-01-02 15:04"))
			}
		}
		rows = append(rows, row)
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"SCRIPT", "NAME", "IDENTIFIERS", "STEPS", "POST-SEQUENCE", "LAST RUN"}, rows))
	return nil
}
