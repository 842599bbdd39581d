package cmd

import (
	"fmt"
	"os"

	"VoxTA/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "voxta_server",
	Short: "VoxTA is a voice teaching assistant backend.",
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
