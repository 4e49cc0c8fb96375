package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// devicesCmd represents the devices command
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Manage the device registry",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(cmd.UsageString())
		os.Exit(2)
	},
}

// devicesImportCmd represents the devices import command
var devicesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Register the devices of a YAML or JSON file",
	Run:   cmdHandler.Devices.Import,
}

// devicesListCmd represents the devices list command
var devicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered devices",
	Run:   cmdHandler.Devices.List,
}

func init() {
	RootCmd.AddCommand(devicesCmd)
	devicesCmd.AddCommand(devicesImportCmd)
	devicesCmd.AddCommand(devicesListCmd)
}
