package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetSettingDefault(t *testing.T) {
	value, err := Connection.GetSetting("nonexistent_key", "fallback")
	assert.Nil(t, err)
	assert.Equal(t, "fallback", value)
}

func TestSetAndGetSetting(t *testing.T) {
	err := Connection.SetSetting(SettingScanParallelism, "12")
	assert.Nil(t, err)

	value, err := Connection.GetSetting(SettingScanParallelism, "8")
	assert.Nil(t, err)
	assert.Equal(t, "12", value)

	// Overwrite must update, not duplicate.
	err = Connection.SetSetting(SettingScanParallelism, "4")
	assert.Nil(t, err)

	value, err = Connection.GetSetting(SettingScanParallelism, "8")
	assert.Nil(t, err)
	assert.Equal(t, "4", value)
}

func TestGetIntSetting(t *testing.T) {
	err := Connection.SetSetting("int_setting", "16")
	assert.Nil(t, err)
	assert.Equal(t, 16, Connection.GetIntSetting("int_setting", 8, 1, 32))

	// Clamping.
	Connection.SetSetting("int_setting", "500")
	assert.Equal(t, 32, Connection.GetIntSetting("int_setting", 8, 1, 32))
	Connection.SetSetting("int_setting", "0")
	assert.Equal(t, 1, Connection.GetIntSetting("int_setting", 8, 1, 32))

	// Garbage falls back to the default.
	Connection.SetSetting("int_setting", "not-a-number")
	assert.Equal(t, 8, Connection.GetIntSetting("int_setting", 8, 1, 32))

	// Missing key falls back to the default.
	assert.Equal(t, 90, Connection.GetIntSetting("missing_int_setting", 90, 1, 365))
}
