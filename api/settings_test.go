package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSettingsDefaults(t *testing.T) {
	app := fiber.New()
	app.Get("/api/settings", GetSettingsHandler)

	req := httptest.NewRequest("GET", "/api/settings", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var settings AppSettings
	decodeBody(t, resp, &settings)
	assert.Equal(t, 8, settings.ScanParallelism)
	assert.Equal(t, 90, settings.DataRetentionDays)
}

func TestUpdateSettings(t *testing.T) {
	app := fiber.New()
	app.Get("/api/settings", GetSettingsHandler)
	app.Put("/api/settings", UpdateSettingsHandler)

	req := httptest.NewRequest("PUT", "/api/settings", mustMarshal(t, AppSettings{
		ScanParallelism: 4, DataRetentionDays: 30,
	}))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var settings AppSettings
	decodeBody(t, resp, &settings)
	assert.Equal(t, 4, settings.ScanParallelism)
	assert.Equal(t, 30, settings.DataRetentionDays)

	// The stored values survive a fresh read.
	req = httptest.NewRequest("GET", "/api/settings", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	decodeBody(t, resp, &settings)
	assert.Equal(t, 4, settings.ScanParallelism)
	assert.Equal(t, 30, settings.DataRetentionDays)
}

func TestUpdateSettingsRejectsOutOfRange(t *testing.T) {
	app := fiber.New()
	app.Put("/api/settings", UpdateSettingsHandler)

	for _, body := range []AppSettings{
		{ScanParallelism: 0, DataRetentionDays: 30},
		{ScanParallelism: 64, DataRetentionDays: 30},
		{ScanParallelism: 8, DataRetentionDays: 0},
		{ScanParallelism: 8, DataRetentionDays: 1000},
	} {
		req := httptest.NewRequest("PUT", "/api/settings", mustMarshal(t, body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
}
