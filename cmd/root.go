package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	profile    string
	verbose    bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "sqlseq",
	Short: "Run SQL sequence scripts and collect the results in a workbook",
	Long: `sqlseq runs sequence scripts: ordered SQL steps against named connections,
optionally followed by a post-sequence query over the staged results. Every
result ends up as a sheet in an XLSX workbook.`,
	Version:       getVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to sqlseq.toml, .json or .yaml (default: discovered from the working directory)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "Also load .env.<profile> next to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only log warnings and errors")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printFailure(os.Stderr, err)
		os.Exit(1)
	}
}
