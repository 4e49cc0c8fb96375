package cmd

import (
	"github.com/spf13/cobra"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print device notifications published on NATS",
	Run:   cmdHandler.Watch.Watch,
}

func init() {
	RootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("category", "", "only watch one notification category")
}
