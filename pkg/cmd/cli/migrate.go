package cli

import (
	"fmt"
	"os"

	"github.com/ignacioelizeche/controlid/config"
	"github.com/ignacioelizeche/controlid/pkg/storage/sqlstore"
	migrate "github.com/rubenv/sql-migrate"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type MigrateHandler struct {
	c *config.Config
}

func newMigrateHandler(c *config.Config) *MigrateHandler {
	return &MigrateHandler{c: c}
}

func getDatabaseURL(cmd *cobra.Command, args []string, position int) (url string) {
	if len(args) <= position {
		fmt.Println(cmd.UsageString())
		return
	}
	url = args[position]

	if url == "" {
		fmt.Println(cmd.UsageString())
		return
	}
	return
}

func (h *MigrateHandler) MigrateSQL(cmd *cobra.Command, args []string) {
	url := getDatabaseURL(cmd, args, 0)
	if url == "" {
		os.Exit(2) // Return missing keyword or command
	}

	useConsoleOutput(true)

	log.Info("Applying SQL migration...")

	db, err := sqlstore.Open(url)
	if err != nil {
		log.Errorf("An error occurred while connecting to SQL: %s", err)
		os.Exit(1)
	}
	defer db.Close()

	migrations, err := sqlstore.Migrations(db.DriverName())
	if err != nil {
		log.Errorf("An error occurred while loading the migrations: %s", err)
		os.Exit(1)
	}

	n, err := migrate.Exec(db.DB, db.DriverName(), migrations, migrate.Up)
	if err != nil {
		log.Errorf("An error occurred while running the migrations: %s", err)
		os.Exit(1)
	}
	log.Infof("Migration successful! Applied a total of %d migrations.", n)
}
