package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ncastellan/netrecon/db"
	"github.com/ncastellan/netrecon/lib"
	"github.com/ncastellan/netrecon/pkg/orchestrator"
	"github.com/ncastellan/netrecon/pkg/scanner"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var scanNetworks []string
var scanName string
var scanFormat string
var scanOutputFile string

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a network scan and wait for it to finish",
	Long: `Runs the full scan pipeline against the given CIDR networks: host
discovery, detailed per-host enumeration, result reconciliation and report
generation. Blocks until the scan is done and prints the discovered hosts.

When no networks are given the current network is auto-detected from the
default interface.`,
	Run: func(cmd *cobra.Command, args []string) {
		formatType, err := lib.ParseFormatType(scanFormat)
		if err != nil {
			log.Error().Err(err).Msg("Invalid output format")
			os.Exit(1)
		}

		networks := scanNetworks
		if len(networks) == 0 {
			detected, err := scanner.DetectCurrentNetwork()
			if err != nil {
				log.Error().Err(err).Msg("Could not auto-detect a network, provide one with --network")
				os.Exit(1)
			}
			log.Info().Str("network", detected).Msg("Auto-detected current network")
			networks = []string{detected}
		}
		if err := scanner.ValidateNetworks(networks); err != nil {
			log.Error().Err(err).Msg("Invalid network")
			os.Exit(1)
		}

		if _, err := db.InitDb(); err != nil {
			log.Error().Err(err).Msg("Failed to initialize database")
			os.Exit(1)
		}

		scan, err := db.Connection.CreateScan(&db.Scan{
			Name:            scanName,
			NetworkRange:    strings.Join(networks, ", "),
			Status:          db.ScanStatusPending,
			ProgressMessage: "Scan queued",
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to create scan")
			os.Exit(1)
		}

		orch := orchestrator.NewDefault(db.Connection)
		if err := orch.ExecuteScan(context.Background(), scan.ID, networks); err != nil {
			log.Error().Err(err).Uint("scan", scan.ID).Msg("Scan failed")
			os.Exit(1)
		}

		hosts, err := db.Connection.GetHostsForScanWithPorts(scan.ID)
		if err != nil {
			log.Error().Err(err).Msg("Could not load scan results")
			os.Exit(1)
		}
		log.Info().Uint("scan", scan.ID).Int("hosts", len(hosts)).Msg("Scan completed")

		if scanOutputFile != "" {
			if err := lib.FormatOutputToFile(hosts, formatType, scanOutputFile); err != nil {
				log.Error().Err(err).Msg("Could not write results file")
				os.Exit(1)
			}
			log.Info().Str("file", scanOutputFile).Msg("Results written")
			return
		}

		output, err := lib.FormatOutput(hosts, formatType)
		if err != nil {
			log.Error().Err(err).Msg("Could not format results")
			os.Exit(1)
		}
		fmt.Println(output)
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringArrayVarP(&scanNetworks, "network", "n", nil, "Network(s) to scan in CIDR notation (auto-detected when omitted)")
	scanCmd.Flags().StringVarP(&scanName, "name", "t", "CLI scan", "Scan name")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (json, yaml, table, text, pretty)")
	scanCmd.Flags().StringVarP(&scanOutputFile, "output", "o", "", "Write results to a file instead of stdout")
}
