package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sqlseq/sqlseq/internal/database/connection"
	"github.com/sqlseq/sqlseq/internal/strutil"
)

var connectionsCmd = &cobra.Command{
	Use:   "connections",
	Short: "List the configured connections",
	Long: `List the connections of the active profile after variable expansion,
with their detected engine and databases. Passwords are masked.`,
	Args: cobra.NoArgs,
	RunE: runConnections,
}

func init() {
	rootCmd.AddCommand(connectionsCmd)
}

func runConnections(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Connections) == 0 {
		printConfigNotFound(cmd.OutOrStdout())
		return nil
	}

	conns, err := cfg.ResolveConnections(profile)
	if err != nil {
		return &configError{err: err}
	}
	manager, err := connection.NewManager(conns, connection.DefaultPoolSettings, nil)
	if err != nil {
		return &configError{err: err}
	}
	defer func() { _ = manager.Close() }()

	var rows [][]string
	for _, c := range manager.Connections() {
		rows = append(rows, []string{
			c.ID,
			string(c.DatabaseType),
			redactURL(c.URL),
			c.User,
			strutil.Mask(c.Password),
			strings.Join(c.Databases, ", "),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"ID", "ENGINE", "URL", "USER", "PASSWORD", "DATABASES"}, rows))
	return nil
}

// redactURL hides a password embedded in a connection URL.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}
