package cmd

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/sqlseq/sqlseq/internal/compiler"
	"github.com/sqlseq/sqlseq/internal/config"
	"github.com/sqlseq/sqlseq/internal/parser"
	"github.com/sqlseq/sqlseq/internal/picker"
)

var interactiveCmd = &cobra.Command{
	Use:     "interactive",
	Aliases: []string{"ui"},
	Short:   "Pick and run scripts from the input directory",
	Long: `Browse the scripts in the input directory and run them one at a time.
Logs go to the configured log file only. Press esc while a script runs to
cancel it at the next step boundary.`,
	Args: cobra.NoArgs,
	RunE: runInteractive,
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

func runInteractive(cmd *cobra.Command, _ []string) error {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return errors.New("interactive mode needs a terminal; use sqlseq run instead")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Connections) == 0 {
		printConfigNotFound(cmd.ErrOrStderr())
		return &configError{err: config.ErrNoConnections}
	}

	logger, closeLog, err := setupLogging(cfg, io.Discard)
	if err != nil {
		return err
	}
	defer closeLog()

	dir := cfg.InputDir()
	scripts, err := listScripts(dir)
	if err != nil {
		return err
	}

	r, err := newRunner(cfg, logger, runOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	return picker.Run(dir, pickerEntries(scripts), r.Run)
}

// pickerEntries describes each script for the picker. Scripts that fail to
// parse or compile are kept with their error.
func pickerEntries(scripts []string) []picker.Entry {
	entries := make([]picker.Entry, 0, len(scripts))
	for _, script := range scripts {
		entry := picker.Entry{Path: script, Name: filepath.Base(script)}

		doc, err := parser.ParseFile(script)
		if err != nil {
			entry.Err = err
			entries = append(entries, entry)
			continue
		}
		entry.Name = doc.Name()
		entry.Identifiers = doc.Identifiers()
		entry.Steps = len(doc.Steps())
		entry.Aggregation = doc.HasAggregation()
		if _, err := compiler.Compile(doc); err != nil {
			entry.Err = err
		}
		entries = append(entries, entry)
	}
	return entries
}
