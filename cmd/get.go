package cmd

import (
	"github.com/spf13/cobra"
)

var (
	pageSize int
	page     int
	format   string
)

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:     "get",
	Aliases: []string{"g", "list", "ls"},
	Short:   "List stored resources",
	Long:    `Get is used to list stored resources like scans, hosts and schedules.`,
}

func init() {
	getCmd.PersistentFlags().IntVarP(&pageSize, "page-size", "s", 100, "Size of each page")
	getCmd.PersistentFlags().IntVarP(&page, "page", "p", 1, "Page number")
	getCmd.PersistentFlags().StringVarP(&format, "format", "f", "table", "Output format (json, yaml, table, text, pretty)")
	rootCmd.AddCommand(getCmd)
}
