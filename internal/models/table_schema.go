package models

import (
	"time"

	"gorm.io/datatypes"
)

// TableSchema snapshots the field list of a mirrored table as fetched
// from the remote platform. Refreshed together with the row mirror.
type TableSchema struct {
	TableID   string         `gorm:"primaryKey;size:64" json:"table_id"`
	Fields    datatypes.JSON `json:"fields"`
	CreatedAt time.Time      `json:"-"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TableName overrides the default gorm pluralisation.
func (TableSchema) TableName() string { return "table_schemas" }
