package cmd

import (
	"fmt"
	"os"

	"github.com/ncastellan/netrecon/lib"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string
var debugLogging bool
var prettyLogs bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "netrecon",
	Short: "Network discovery and enumeration service",
	Long: `Netrecon discovers live hosts on local networks and enumerates them
with nmap: open ports, service versions, OS fingerprints, traceroute paths
and virtual machine detection.

Scans run on demand or on cron schedules, results land in a local database,
and every scan produces HTML, spreadsheet and topology graph reports. The
serve command exposes the results over a REST API, the mcp command over the
Model Context Protocol.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.netrecon.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugLogging, "debug", false, "Use debug level logging")
	rootCmd.PersistentFlags().BoolVar(&prettyLogs, "pretty", true, "Use pretty logging instead JSON")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if prettyLogs {
			lib.ZeroConsoleAndFileLog(viper.GetString("logging.file"))
		} else {
			lib.ZeroJSONAndFileLog(viper.GetString("logging.file"))
		}
		if debugLogging {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
		return nil
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".netrecon" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".netrecon")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
