package cmd

import (
	"github.com/ncastellan/netrecon/api"

	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the API server, scheduler and watchdog",
	Run: func(cmd *cobra.Command, args []string) {
		api.StartAPI()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
