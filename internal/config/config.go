package config

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func LoadConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/netrecon/")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Debug().Msg("Config file not found, using defaults")
		} else {
			log.Panic().Err(err).Msg("Fatal error reading config file")
		}
	}
	SetDefaultConfig()
}

func SetDefaultConfig() {
	viper.SetDefault("app.name", "netrecon")
	viper.SetDefault("app.version", "0.1.0")

	// Database
	viper.SetDefault("database.path", "netrecon.db")

	// Scanning
	viper.SetDefault("scan.output_dir", "scan_results")
	viper.SetDefault("scan.nmap_path", "nmap")
	viper.SetDefault("scan.parallelism", 8)
	viper.SetDefault("scan.host_timeout", 300)

	// API
	viper.SetDefault("api.listen.host", "")
	viper.SetDefault("api.listen.port", 8013)
	viper.SetDefault("api.cors.allow_origins", "*")
	viper.SetDefault("api.auth.jwt_secret_key", "insecure-dev-secret-change-me")
	viper.SetDefault("api.auth.access_token_minutes", 30)
	viper.SetDefault("api.auth.refresh_token_days", 7)

	// First-boot admin. No user is created when the password is empty.
	viper.SetDefault("auth.default_admin.username", "admin")
	viper.SetDefault("auth.default_admin.password", "")

	// Logging
	viper.SetDefault("logging.file", "logs.log")
}
