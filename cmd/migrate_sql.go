package cmd

import (
	"github.com/spf13/cobra"
)

// migrateSQLCmd represents the migrate sql command
var migrateSQLCmd = &cobra.Command{
	Use:   "sql <database-url>",
	Short: "Create the relay SQL schema and apply pending migrations",
	Long: `Applies the embedded schema migrations (devices, sessions, notifications,
sync checkpoints and the access log archive) to a postgres:// or sqlite3://
database. serve relay applies the same migrations on startup.`,
	Run: cmdHandler.Migration.MigrateSQL,
}

func init() {
	migrateCmd.AddCommand(migrateSQLCmd)
}
