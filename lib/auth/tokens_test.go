package auth

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setTokenTestConfig() {
	viper.Set("api.auth.jwt_secret_key", "unit-test-secret")
	viper.Set("api.auth.access_token_minutes", 30)
	viper.Set("api.auth.refresh_token_days", 7)
}

func TestGenerateAndVerifyRefreshToken(t *testing.T) {
	setTokenTestConfig()

	tokens, err := GenerateNewTokens(42, "admin", "admin")
	require.NoError(t, err)
	require.NotEmpty(t, tokens.Access)
	require.NotEmpty(t, tokens.Refresh)

	uid, err := VerifyRefreshToken(tokens.Refresh)
	require.NoError(t, err)
	assert.Equal(t, uint(42), uid)
}

func TestVerifyRefreshTokenRejectsAccessToken(t *testing.T) {
	setTokenTestConfig()

	tokens, err := GenerateNewTokens(42, "admin", "admin")
	require.NoError(t, err)

	_, err = VerifyRefreshToken(tokens.Access)
	assert.ErrorIs(t, err, ErrWrongTokenUse)
}

func TestVerifyRefreshTokenRejectsGarbage(t *testing.T) {
	setTokenTestConfig()

	_, err := VerifyRefreshToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExtractTokenMetadataFromHeader(t *testing.T) {
	setTokenTestConfig()

	tokens, err := GenerateNewTokens(7, "alice", "viewer")
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/whoami", func(c *fiber.Ctx) error {
		meta, err := ExtractTokenMetadata(c)
		if err != nil {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		return c.JSON(meta)
	})

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.Access)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var meta TokenMetadata
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&meta))
	assert.Equal(t, uint(7), meta.UserID)
	assert.Equal(t, "alice", meta.Username)
	assert.Equal(t, "viewer", meta.Role)

	// A refresh token must not authenticate a request.
	req = httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.Refresh)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
