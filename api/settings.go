package api

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/ncastellan/netrecon/db"
	"github.com/ncastellan/netrecon/pkg/schedule"
	"github.com/spf13/viper"
)

// AppSettings is the tunable runtime configuration stored in the database.
type AppSettings struct {
	ScanParallelism   int `json:"scan_parallelism" validate:"min=1,max=32"`
	DataRetentionDays int `json:"data_retention_days" validate:"min=1,max=365"`
}

// GetSettingsHandler returns the current runtime settings.
// @Summary Get settings
// @Description Current scan parallelism and data retention configuration
// @Tags Settings
// @Produce json
// @Success 200 {object} AppSettings
// @Router /api/settings [get]
func GetSettingsHandler(c *fiber.Ctx) error {
	return c.JSON(AppSettings{
		ScanParallelism: db.Connection.GetIntSetting(
			db.SettingScanParallelism, viper.GetInt("scan.parallelism"), 1, 32),
		DataRetentionDays: db.Connection.GetIntSetting(
			db.SettingDataRetentionDays, schedule.DefaultRetentionDays,
			schedule.MinRetentionDays, schedule.MaxRetentionDays),
	})
}

// UpdateSettingsHandler stores new runtime settings. Changes apply to scans
// started afterwards, never to ones already running.
// @Summary Update settings
// @Tags Settings
// @Accept json
// @Produce json
// @Param input body AppSettings true "Settings"
// @Success 200 {object} AppSettings
// @Failure 400 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /api/settings [put]
func UpdateSettingsHandler(c *fiber.Ctx) error {
	input := new(AppSettings)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid request body", err.Error()))
	}
	validate := validator.New()
	if err := validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Validation failed", err.Error()))
	}

	if err := db.Connection.SetSetting(db.SettingScanParallelism, strconv.Itoa(input.ScanParallelism)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Could not save settings", err.Error()))
	}
	if err := db.Connection.SetSetting(db.SettingDataRetentionDays, strconv.Itoa(input.DataRetentionDays)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Could not save settings", err.Error()))
	}

	return c.JSON(input)
}
