package cmd

import (
	"github.com/spf13/cobra"
)

// recoverCmd represents the recover command
var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Re-fetch a time range of access logs into the local archive",
	Long: `Re-fetch a time range of access logs from the registered devices into the
local archive. Logs already archived are skipped and sync checkpoints are
never moved. With --forward the fetched logs are forwarded again.`,
	Run: cmdHandler.Recovery.Recover,
}

func init() {
	RootCmd.AddCommand(recoverCmd)

	recoverCmd.Flags().String("from", "today", `start of the range: "today", unix seconds or RFC3339`)
	recoverCmd.Flags().String("to", "", "end of the range, open when empty")
	recoverCmd.Flags().String("device", "", "recover a single device instead of all")
	recoverCmd.Flags().Bool("forward", false, "forward the recovered logs again")
}
