package cmd

import (
	"fmt"

	"github.com/ncastellan/netrecon/db"
	"github.com/ncastellan/netrecon/lib"
	"github.com/spf13/cobra"
)

// getSchedulesCmd represents the get schedules command
var getSchedulesCmd = &cobra.Command{
	Use:     "schedules",
	Aliases: []string{"schedule"},
	Short:   "List scan schedules",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := db.InitDb(); err != nil {
			return err
		}

		schedules, err := db.Connection.ListSchedules()
		if err != nil {
			return err
		}

		formatType, err := lib.ParseFormatType(format)
		if err != nil {
			return err
		}

		formattedOutput, err := lib.FormatOutput(schedules, formatType)
		if err != nil {
			return err
		}

		fmt.Println(formattedOutput)
		return nil
	},
}

func init() {
	getCmd.AddCommand(getSchedulesCmd)
}
