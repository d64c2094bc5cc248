package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sqlseq/sqlseq/internal/config"
)

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run [script|dir]...",
	Short: "Execute sequence scripts and write their workbooks",
	Long: `Execute sequence scripts. Each script runs its sequence steps in order and
writes every result, or the post-sequence result, as a sheet of one XLSX
workbook in the output directory.

Scripts may be given as paths, as names relative to the input directory, or
as directories. Without arguments every script in the input directory runs.`,
	Example: `  # Run one script from the input directory
  sqlseq run daily_sales

  # Run every script in a directory, keeping intermediate results
  sqlseq run reports/ --include-staged

  # Check statements against PostgreSQL grammar before running
  sqlseq run daily_sales.seq --validate`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runOpts.includeStaged, "include-staged", false, "Also write every sequence result as a sheet when a post-sequence exists")
	runCmd.Flags().BoolVar(&runOpts.keepStaging, "keep-staging", false, "Keep the staging database after the run")
	runCmd.Flags().StringVar(&runOpts.suffix, "suffix", "", "Artifact name suffix: timestamp, uuid or none")
	runCmd.Flags().StringVarP(&runOpts.output, "output", "o", "", "Output directory (default: from config)")
	runCmd.Flags().BoolVar(&runOpts.validate, "validate", false, "Check PostgreSQL statements before executing")
	runCmd.Flags().BoolVar(&runOpts.noPublish, "no-publish", false, "Skip uploading artifacts even when publishing is configured")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Connections) == 0 {
		printConfigNotFound(cmd.ErrOrStderr())
		return &configError{err: config.ErrNoConnections}
	}

	logger, closeLog, err := setupLogging(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()

	scripts, err := expandScriptArgs(cfg, args)
	if err != nil {
		return err
	}
	if len(scripts) == 0 {
		return fmt.Errorf("no scripts found in %s", cfg.InputDir())
	}

	r, err := newRunner(cfg, logger, runOpts)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	green := color.New(color.FgGreen)
	failed := 0
	for _, script := range scripts {
		artifact, err := r.Run(ctx, script)
		if err != nil {
			failed++
			fmt.Fprintf(out, "%s\n", script)
			printFailure(out, err)
			if artifact != "" {
				fmt.Fprintf(out, "  partial artifact: %s\n", artifact)
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}
		_, _ = green.Fprintf(out, "✓ %s → %s\n", script, artifact)
	}

	if ctx.Err() != nil {
		return context.Canceled
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d script(s) failed", failed, len(scripts))
	}
	return nil
}
