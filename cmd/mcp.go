package cmd

import (
	"os"

	"github.com/ncastellan/netrecon/db"
	"github.com/ncastellan/netrecon/lib"
	"github.com/ncastellan/netrecon/pkg/mcptools"
	"github.com/ncastellan/netrecon/pkg/orchestrator"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var mcpTransport string
var mcpSSEAddress string

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Starts the Model Context Protocol tool server",
	Long: `Exposes the scan database to AI assistants over the Model Context
Protocol. The stdio transport is meant to be spawned by the assistant
runtime; the sse transport listens on a TCP address instead.`,
	Run: func(cmd *cobra.Command, args []string) {
		if mcpTransport == "stdio" {
			// stdout carries the protocol, logs must stay off it.
			lib.ZeroFileLog(viper.GetString("logging.file"))
		}

		if _, err := db.InitDb(); err != nil {
			log.Error().Err(err).Msg("Failed to initialize database")
			os.Exit(1)
		}

		orch := orchestrator.NewDefault(db.Connection)
		srv := mcptools.New(db.Connection, orch)

		switch mcpTransport {
		case "stdio":
			if err := mcptools.ServeStdio(srv); err != nil {
				log.Error().Err(err).Msg("MCP server stopped")
				os.Exit(1)
			}
		case "sse":
			log.Info().Str("address", mcpSSEAddress).Msg("Starting MCP SSE server")
			if err := mcptools.ServeSSE(srv, mcpSSEAddress); err != nil {
				log.Error().Err(err).Msg("MCP server stopped")
				os.Exit(1)
			}
		default:
			log.Error().Str("transport", mcpTransport).Msg("Unknown transport, valid options are stdio and sse")
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringVarP(&mcpTransport, "transport", "t", "stdio", "Transport to serve on (stdio, sse)")
	mcpCmd.Flags().StringVar(&mcpSSEAddress, "sse-address", ":8014", "Listen address for the sse transport")
}
