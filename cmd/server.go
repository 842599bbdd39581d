package cmd

import (
	"VoxTA/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动VoxTA服务器",
	Long:  `启动语音助教系统的HTTP服务器，提供合成、声音样本、课件配音与换声API`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
