package cmd

import (
	"fmt"

	"github.com/ncastellan/netrecon/db"
	"github.com/ncastellan/netrecon/lib"
	"github.com/spf13/cobra"
)

var (
	hostScanID   uint
	hostVMsOnly  bool
	hostOSFilter string
	hostIPFilter string
)

// getHostsCmd represents the get hosts command
var getHostsCmd = &cobra.Command{
	Use:     "hosts",
	Aliases: []string{"host", "h"},
	Short:   "List discovered hosts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := db.InitDb(); err != nil {
			return err
		}

		filter := db.HostFilter{
			OSContains: hostOSFilter,
			IPContains: hostIPFilter,
			Limit:      pageSize,
		}
		if hostScanID != 0 {
			filter.ScanID = &hostScanID
		}
		if cmd.Flags().Changed("vm") {
			filter.IsVM = &hostVMsOnly
		}

		hosts, err := db.Connection.FilterHosts(filter)
		if err != nil {
			return err
		}

		formatType, err := lib.ParseFormatType(format)
		if err != nil {
			return err
		}

		formattedOutput, err := lib.FormatOutput(hosts, formatType)
		if err != nil {
			return err
		}

		fmt.Println(formattedOutput)
		return nil
	},
}

func init() {
	getCmd.AddCommand(getHostsCmd)
	getHostsCmd.Flags().UintVar(&hostScanID, "scan", 0, "Only hosts from this scan ID")
	getHostsCmd.Flags().BoolVar(&hostVMsOnly, "vm", false, "Only virtual machines (--vm=false for physical hosts)")
	getHostsCmd.Flags().StringVar(&hostOSFilter, "os", "", "Filter by OS name substring")
	getHostsCmd.Flags().StringVar(&hostIPFilter, "ip", "", "Filter by IP address substring")
}
