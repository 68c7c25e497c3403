package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/ncastellan/netrecon/db"
	"github.com/ncastellan/netrecon/lib/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestUser(t *testing.T, username, password, role string, active bool) *db.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	user, err := db.Connection.CreateUser(&db.User{
		Username:       username,
		HashedPassword: hash,
		Role:           role,
		IsActive:       active,
	})
	require.NoError(t, err)
	return user
}

// accessTokenFor mints a valid access token without going through the login
// handler, for tests that only need an authenticated request.
func accessTokenFor(t *testing.T, user *db.User) string {
	t.Helper()
	tokens, err := auth.GenerateNewTokens(user.ID, user.Username, user.Role)
	require.NoError(t, err)
	return tokens.Access
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestLogin(t *testing.T) {
	createTestUser(t, "login-ok", "Sup3rsecret", db.UserRoleAdmin, true)

	app := fiber.New()
	app.Post("/api/auth/login", Login)

	resp := postJSON(t, app, "/api/auth/login", LoginInput{Username: "login-ok", Password: "Sup3rsecret"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var tokens TokenResponse
	decodeBody(t, resp, &tokens)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, "bearer", tokens.TokenType)
	assert.Equal(t, db.UserRoleAdmin, tokens.Role)
	assert.Equal(t, "login-ok", tokens.Username)
	assert.False(t, tokens.MustChangePassword)

	user, err := db.Connection.GetUserByUsername("login-ok")
	require.NoError(t, err)
	assert.NotNil(t, user.LastLoginAt)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	createTestUser(t, "login-bad", "Sup3rsecret", db.UserRoleViewer, true)

	app := fiber.New()
	app.Post("/api/auth/login", Login)

	// Wrong password and unknown user get the same answer.
	resp := postJSON(t, app, "/api/auth/login", LoginInput{Username: "login-bad", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var body ErrorResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "Incorrect username or password", body.Error)

	resp = postJSON(t, app, "/api/auth/login", LoginInput{Username: "no-such-user", Password: "whatever"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	decodeBody(t, resp, &body)
	assert.Equal(t, "Incorrect username or password", body.Error)
}

func TestLoginRejectsDisabledAccount(t *testing.T) {
	createTestUser(t, "login-disabled", "Sup3rsecret", db.UserRoleViewer, false)

	app := fiber.New()
	app.Post("/api/auth/login", Login)

	resp := postJSON(t, app, "/api/auth/login", LoginInput{Username: "login-disabled", Password: "Sup3rsecret"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var body ErrorResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "Account is disabled", body.Error)
}

func TestRefreshRotation(t *testing.T) {
	createTestUser(t, "refresh-user", "Sup3rsecret", db.UserRoleViewer, true)

	app := fiber.New()
	app.Post("/api/auth/login", Login)
	app.Post("/api/auth/refresh", RefreshTokens)

	resp := postJSON(t, app, "/api/auth/login", LoginInput{Username: "refresh-user", Password: "Sup3rsecret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var first TokenResponse
	decodeBody(t, resp, &first)

	resp = postJSON(t, app, "/api/auth/refresh", RefreshInput{RefreshToken: first.RefreshToken})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var second TokenResponse
	decodeBody(t, resp, &second)
	assert.NotEmpty(t, second.AccessToken)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// The rotated-out token must not be accepted a second time.
	resp = postJSON(t, app, "/api/auth/refresh", RefreshInput{RefreshToken: first.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var body ErrorResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "Refresh token has been revoked", body.Error)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	user := createTestUser(t, "refresh-access", "Sup3rsecret", db.UserRoleViewer, true)
	access := accessTokenFor(t, user)

	app := fiber.New()
	app.Post("/api/auth/refresh", RefreshTokens)

	resp := postJSON(t, app, "/api/auth/refresh", RefreshInput{RefreshToken: access})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var body ErrorResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "Invalid refresh token", body.Error)
}

func TestMe(t *testing.T) {
	user := createTestUser(t, "me-user", "Sup3rsecret", db.UserRoleViewer, true)

	app := fiber.New()
	app.Get("/api/auth/me", JWTProtected(), Me)

	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+accessTokenFor(t, user))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got db.User
	decodeBody(t, resp, &got)
	assert.Equal(t, "me-user", got.Username)
	assert.Equal(t, user.ID, got.ID)
}

func TestJWTProtectedRejectsBadTokens(t *testing.T) {
	app := fiber.New()
	app.Get("/api/auth/me", JWTProtected(), Me)

	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body ErrorResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "Missing or malformed JWT", body.Error)

	req = httptest.NewRequest("GET", "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	decodeBody(t, resp, &body)
	assert.Equal(t, "Invalid or expired token", body.Error)
}

func TestChangePassword(t *testing.T) {
	user := createTestUser(t, "changepw-user", "Old1password", db.UserRoleViewer, true)
	user.MustChangePassword = true
	require.NoError(t, db.Connection.UpdateUser(user))
	token := accessTokenFor(t, user)

	app := fiber.New()
	app.Put("/api/auth/change-password", ChangePassword)
	app.Post("/api/auth/login", Login)

	putJSON := func(body ChangePasswordInput) *http.Response {
		payload, _ := json.Marshal(body)
		req := httptest.NewRequest("PUT", "/api/auth/change-password", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}

	resp := putJSON(ChangePasswordInput{CurrentPassword: "nope", NewPassword: "New1password"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var body ErrorResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "Current password is incorrect", body.Error)

	// Too weak for the policy.
	resp = putJSON(ChangePasswordInput{CurrentPassword: "Old1password", NewPassword: "short"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = putJSON(ChangePasswordInput{CurrentPassword: "Old1password", NewPassword: "New1password"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, app, "/api/auth/login", LoginInput{Username: "changepw-user", Password: "New1password"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var tokens TokenResponse
	decodeBody(t, resp, &tokens)
	assert.False(t, tokens.MustChangePassword)
}
