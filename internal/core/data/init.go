package data

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var db *gorm.DB

// Initialize opens the sqlite file at dataSource and migrates the schema,
// returning the *gorm.DB other packages should call Init with.
func Initialize(dataSource string, debug bool) (*gorm.DB, error) {
	var err error
	// By default only log errors but enable full SQL query prints-to-console with debug mode
	log := logger.Default.LogMode(logger.Error)
	if debug {
		log = logger.Default.LogMode(logger.Info)
	}
	db, err = gorm.Open(sqlite.Open(dataSource), &gorm.Config{Logger: log})

	if err != nil {
		return nil, fmt.Errorf("error opening database: %s", err)
	}

	if err = db.AutoMigrate(&Account{}, &GalaxyAtWar{}, &LeaderboardSample{}); err != nil {
		return nil, fmt.Errorf("error auto migrating db: %s", err)
	}

	return db, nil
}

func Shutdown() error {
	database, err := db.DB()
	if err != nil {
		return fmt.Errorf("error while getting current connection: %w", err)
	}
	if err := database.Close(); err != nil {
		return fmt.Errorf("error while closing database connection: %w", err)
	}
	return nil
}
