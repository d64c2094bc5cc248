package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/sqlseq/sqlseq/internal/state"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the latest run of each script",
	Long: `Show the latest recorded run of each script, most recent first. Runs are
recorded in ` + state.StateFile + ` next to the output directory.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Show at most this many runs (0 for all)")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := state.Load(state.Path(cfg.OutputDir()))
	if err != nil {
		return err
	}

	runs := st.History()
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
		return nil
	}
	if historyLimit > 0 && len(runs) > historyLimit {
		runs = runs[:historyLimit]
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		artifact := r.Published
		if artifact == "" && r.Artifact != "" {
			artifact = filepath.Base(r.Artifact)
		}
		rows = append(rows, []string{
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.Document,
			r.Status,
			r.Duration().Round(time.Millisecond).String(),
			artifact,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"STARTED", "DOCUMENT", "STATUS", "DURATION", "ARTIFACT"}, rows))
	return nil
}
