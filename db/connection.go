package db

import (
	"database/sql"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DatabaseConnection wraps the gorm handle plus the underlying sql.DB pool.
type DatabaseConnection struct {
	db    *gorm.DB
	sqlDb *sql.DB
}

// Connection is the shared database handle. It is nil until InitDb runs,
// which happens after configuration is loaded so the path is honored.
var Connection *DatabaseConnection

// InitDb opens (creating if needed) the sqlite database configured under
// database.path, migrates the schema and stores the handle in Connection.
func InitDb() (*DatabaseConnection, error) {
	path := viper.GetString("database.path")
	if path == "" {
		path = "netrecon.db"
	}
	database, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to connect to database")
		return nil, err
	}

	err = database.AutoMigrate(
		&Scan{},
		&Host{},
		&Port{},
		&TracerouteHop{},
		&Artifact{},
		&Schedule{},
		&Setting{},
		&User{},
		&RefreshToken{},
	)
	if err != nil {
		log.Error().Err(err).Msg("Failed to migrate database schema")
		return nil, err
	}

	sqlDb, err := database.DB()
	if err != nil {
		log.Error().Err(err).Msg("Failed to get generic database interface")
		return nil, err
	}
	// sqlite serializes writers anyway; keep the pool small.
	sqlDb.SetMaxIdleConns(4)
	sqlDb.SetMaxOpenConns(16)
	sqlDb.SetConnMaxLifetime(time.Hour)

	Connection = &DatabaseConnection{db: database, sqlDb: sqlDb}
	return Connection, nil
}

// DB exposes the raw gorm handle for callers composing their own queries.
func (d *DatabaseConnection) DB() *gorm.DB {
	return d.db
}
