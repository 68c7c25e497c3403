package db

import "gorm.io/gorm"

// Paginate is a gorm scope applying the skip/limit window used by the list
// endpoints. Negative skip is ignored, limit falls back to 100 and is capped
// at 500 so a missing query parameter never dumps the whole table.
func Paginate(skip, limit int) func(db *gorm.DB) *gorm.DB {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(skip).Limit(limit)
	}
}
