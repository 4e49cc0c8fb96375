package cmd

import (
	"github.com/ignacioelizeche/controlid/pkg/cmd/server"
	"github.com/spf13/cobra"
)

// serveRelayCmd represents the serve relay command
var serveRelayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Serve the device relay: push queue, notifications and log sync",
	Run:   server.RunServeRelay(c),
}

func init() {
	serveCmd.AddCommand(serveRelayCmd)
}
