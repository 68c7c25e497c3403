package db

import (
	"time"
)

// BaseModel defines the common columns shared by every table. Deletes are
// hard deletes so that cascade cleanup of scans actually removes rows.
type BaseModel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
