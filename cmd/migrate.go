package cmd

import (
	"os"

	"github.com/ncastellan/netrecon/db"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long: `Opens the configured database and brings its schema up to date.

The serve command migrates on startup too; migrate exists for provisioning
and for upgrades where the schema change should land before the service
restarts.`,
	Run: func(cmd *cobra.Command, args []string) {
		if _, err := db.InitDb(); err != nil {
			log.Error().Err(err).Msg("Migration failed")
			os.Exit(1)
		}
		log.Info().Str("path", viper.GetString("database.path")).Msg("Database schema is up to date")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
