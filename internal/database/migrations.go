package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/gridhq/tablecache/internal/models"
)

// AutoMigrate applies schema migrations for the cache metadata models.
// Mirror tables are created dynamically by the cache store and are not
// part of the managed schema.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	if err := db.AutoMigrate(
		&models.TableCache{},
		&models.TableSchema{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	return nil
}
