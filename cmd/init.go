package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sqlseq/sqlseq/internal/scaffold"
)

var initOpts scaffold.Options

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Initialize a new sqlseq project",
	Long: `Initialize a new sqlseq project: sqlseq.toml with one connection, the
scripts and results directories, an example script and .gitignore entries for
generated files. SQLite connections get their database file created.`,
	Example: `  # SQLite project in the current directory
  sqlseq init

  # PostgreSQL connection; the password is read from WAREHOUSE_PASSWORD
  sqlseq init --id warehouse --url postgres://db.internal:5432 --database sales`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initOpts.Force, "force", false, "Overwrite an existing sqlseq.toml")
	initCmd.Flags().StringVar(&initOpts.ConnectionID, "id", scaffold.DefaultConnectionID, "Connection identifier")
	initCmd.Flags().StringVar(&initOpts.URL, "url", scaffold.DefaultURL, "Connection URL")
	initCmd.Flags().StringVar(&initOpts.Database, "database", scaffold.DefaultDatabase, "Database name on the connection")
}

func runInit(cmd *cobra.Command, args []string) error {
	opts := initOpts
	if len(args) == 1 {
		opts.Dir = args[0]
	}

	result, err := scaffold.Generate(opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	green := color.New(color.FgGreen)
	_, _ = green.Fprintf(out, "✓ Created %s\n", result.ConfigPath)
	_, _ = green.Fprintf(out, "✓ Example script %s\n", result.ScriptPath)
	if result.DatabaseFile != "" {
		_, _ = green.Fprintf(out, "✓ Created SQLite database %s\n", result.DatabaseFile)
	}
	if result.EnvExamplePath != "" {
		_, _ = green.Fprintf(out, "✓ Updated %s\n", result.EnvExamplePath)
	}
	if result.GitignoreUpdated {
		_, _ = green.Fprintln(out, "✓ Updated .gitignore")
	}
	fmt.Fprintln(out, "\nNext: sqlseq run example")
	return nil
}
