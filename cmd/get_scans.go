package cmd

import (
	"fmt"

	"github.com/ncastellan/netrecon/db"
	"github.com/ncastellan/netrecon/lib"
	"github.com/spf13/cobra"
)

var scanStatusFilter string

// getScansCmd represents the get scans command
var getScansCmd = &cobra.Command{
	Use:     "scans",
	Aliases: []string{"scan"},
	Short:   "List scans",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := db.InitDb(); err != nil {
			return err
		}

		formatType, err := lib.ParseFormatType(format)
		if err != nil {
			return err
		}

		var scans []db.Scan
		var count int64
		if scanStatusFilter != "" {
			scans, err = db.Connection.GetScansByStatus(db.ScanStatus(scanStatusFilter))
			count = int64(len(scans))
		} else {
			scans, count, err = db.Connection.ListScans((page-1)*pageSize, pageSize)
		}
		if err != nil {
			return err
		}

		if formatType == lib.Pretty || formatType == lib.Table {
			fmt.Printf("Total scans: %d\n\n", count)
		}

		formattedOutput, err := lib.FormatOutput(scans, formatType)
		if err != nil {
			return err
		}

		fmt.Println(formattedOutput)
		return nil
	},
}

func init() {
	getCmd.AddCommand(getScansCmd)
	getScansCmd.Flags().StringVar(&scanStatusFilter, "status", "", "Filter by status (pending, running, completed, failed, cancelled)")
}
