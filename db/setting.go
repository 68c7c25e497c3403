package db

import (
	"errors"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Setting is a persisted live-tunable. All values are stored as strings.
type Setting struct {
	BaseModel
	Key   string `gorm:"uniqueIndex" json:"key"`
	Value string `json:"value"`
}

// Well-known setting keys.
const (
	SettingScanParallelism   = "scan_parallelism"
	SettingDataRetentionDays = "data_retention_days"
)

// TableName overrides the default table name.
func (Setting) TableName() string {
	return "settings"
}

// GetSetting returns the stored value for key, or def when the key is absent.
func (d *DatabaseConnection) GetSetting(key, def string) (string, error) {
	var setting Setting
	err := d.db.Where("key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	return setting.Value, nil
}

// SetSetting stores the value for key, inserting or updating as needed.
func (d *DatabaseConnection) SetSetting(key, value string) error {
	setting := Setting{Key: key, Value: value}
	return d.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
}

// GetIntSetting reads an integer setting, falling back to def when the key
// is missing or unparsable, and clamping the result into [min, max].
func (d *DatabaseConnection) GetIntSetting(key string, def, min, max int) int {
	raw, err := d.GetSetting(key, strconv.Itoa(def))
	if err != nil {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
