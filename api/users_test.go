package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/ncastellan/netrecon/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUserForcesPasswordChange(t *testing.T) {
	app := fiber.New()
	app.Post("/api/users", CreateUserHandler)

	resp := postJSON(t, app, "/api/users", UserCreateInput{
		Username: "created-viewer",
		Password: "Passw0rd1",
		Email:    "viewer@example.com",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var user db.User
	decodeBody(t, resp, &user)
	assert.Equal(t, "created-viewer", user.Username)
	assert.Equal(t, db.UserRoleViewer, user.Role)
	assert.True(t, user.IsActive)
	assert.True(t, user.MustChangePassword)
}

func TestCreateUserValidation(t *testing.T) {
	createTestUser(t, "dup-user", "Passw0rd1", db.UserRoleViewer, true)

	app := fiber.New()
	app.Post("/api/users", CreateUserHandler)

	resp := postJSON(t, app, "/api/users", UserCreateInput{Username: "dup-user", Password: "Passw0rd1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body ErrorResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "Username already exists", body.Error)

	// Policy wants at least 7 chars with a letter and a number.
	resp = postJSON(t, app, "/api/users", UserCreateInput{Username: "weak-pw", Password: "abc"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, app, "/api/users", UserCreateInput{Username: "bad-role", Password: "Passw0rd1", Role: "superadmin"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListUsers(t *testing.T) {
	createTestUser(t, "list-user-1", "Passw0rd1", db.UserRoleViewer, true)
	createTestUser(t, "list-user-2", "Passw0rd1", db.UserRoleViewer, true)

	app := fiber.New()
	app.Get("/api/users", ListUsersHandler)

	req := httptest.NewRequest("GET", "/api/users?limit=500", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Users []db.User `json:"users"`
		Total int64     `json:"total"`
	}
	decodeBody(t, resp, &body)
	assert.GreaterOrEqual(t, body.Total, int64(2))

	names := make([]string, 0, len(body.Users))
	for _, u := range body.Users {
		names = append(names, u.Username)
	}
	assert.Contains(t, names, "list-user-1")
	assert.Contains(t, names, "list-user-2")
}

func TestGetUser(t *testing.T) {
	user := createTestUser(t, "get-user", "Passw0rd1", db.UserRoleViewer, true)

	app := fiber.New()
	app.Get("/api/users/:id", GetUserHandler)

	req := httptest.NewRequest("GET", "/api/users/"+itoa(user.ID), nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var got db.User
	decodeBody(t, resp, &got)
	assert.Equal(t, "get-user", got.Username)

	req = httptest.NewRequest("GET", "/api/users/999999", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateUserFields(t *testing.T) {
	user := createTestUser(t, "update-user", "Passw0rd1", db.UserRoleViewer, true)

	app := fiber.New()
	app.Put("/api/users/:id", UpdateUserHandler)

	email := "ops@example.com"
	fullName := "Ops Person"
	role := db.UserRoleAdmin
	req := httptest.NewRequest("PUT", "/api/users/"+itoa(user.ID), mustMarshal(t, UserUpdateInput{
		Email: &email, FullName: &fullName, Role: &role,
	}))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got db.User
	decodeBody(t, resp, &got)
	assert.Equal(t, "ops@example.com", got.Email)
	assert.Equal(t, "Ops Person", got.FullName)
	assert.Equal(t, db.UserRoleAdmin, got.Role)
}

func TestLastActiveAdminIsProtected(t *testing.T) {
	// Make the admin population deterministic for this test.
	require.NoError(t, db.Connection.DB().Model(&db.User{}).
		Where("role = ?", db.UserRoleAdmin).
		Update("role", db.UserRoleViewer).Error)
	lastAdmin := createTestUser(t, "last-admin", "Passw0rd1", db.UserRoleAdmin, true)

	app := fiber.New()
	app.Put("/api/users/:id", UpdateUserHandler)

	putUpdate := func(id uint, input UserUpdateInput) *http.Response {
		req := httptest.NewRequest("PUT", "/api/users/"+itoa(id), mustMarshal(t, input))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}

	viewer := db.UserRoleViewer
	resp := putUpdate(lastAdmin.ID, UserUpdateInput{Role: &viewer})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body ErrorResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "Cannot deactivate or demote the last active admin", body.Error)

	inactive := false
	resp = putUpdate(lastAdmin.ID, UserUpdateInput{IsActive: &inactive})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// With a second active admin around the demotion goes through.
	createTestUser(t, "second-admin", "Passw0rd1", db.UserRoleAdmin, true)
	resp = putUpdate(lastAdmin.ID, UserUpdateInput{Role: &viewer})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var got db.User
	decodeBody(t, resp, &got)
	assert.Equal(t, db.UserRoleViewer, got.Role)
}

func TestDeleteUser(t *testing.T) {
	actor := createTestUser(t, "delete-actor", "Passw0rd1", db.UserRoleAdmin, true)
	victim := createTestUser(t, "delete-victim", "Passw0rd1", db.UserRoleViewer, true)
	token := accessTokenFor(t, actor)

	app := fiber.New()
	app.Delete("/api/users/:id", DeleteUserHandler)

	del := func(id uint) *http.Response {
		req := httptest.NewRequest("DELETE", "/api/users/"+itoa(id), nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}

	resp := del(actor.ID)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body ErrorResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "Cannot delete your own account", body.Error)

	resp = del(victim.ID)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, err := db.Connection.GetUserByID(victim.ID)
	assert.Error(t, err)

	resp = del(victim.ID)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResetUserPassword(t *testing.T) {
	user := createTestUser(t, "reset-user", "Passw0rd1", db.UserRoleViewer, true)

	app := fiber.New()
	app.Post("/api/users/:id/reset-password", ResetUserPasswordHandler)
	app.Post("/api/auth/login", Login)

	resp := postJSON(t, app, "/api/users/"+itoa(user.ID)+"/reset-password", ResetPasswordInput{
		NewPassword: "Fresh1password",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var action ActionResponse
	decodeBody(t, resp, &action)
	assert.Equal(t, "Password reset successfully", action.Message)

	resp = postJSON(t, app, "/api/auth/login", LoginInput{Username: "reset-user", Password: "Fresh1password"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var tokens TokenResponse
	decodeBody(t, resp, &tokens)
	assert.True(t, tokens.MustChangePassword)

	// force_change=false hands out a permanent password.
	noForce := false
	resp = postJSON(t, app, "/api/users/"+itoa(user.ID)+"/reset-password", ResetPasswordInput{
		NewPassword: "Other1password", ForceChange: &noForce,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = postJSON(t, app, "/api/auth/login", LoginInput{Username: "reset-user", Password: "Other1password"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &tokens)
	assert.False(t, tokens.MustChangePassword)

	resp = postJSON(t, app, "/api/users/"+itoa(user.ID)+"/reset-password", ResetPasswordInput{NewPassword: "weak"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRequireAdmin(t *testing.T) {
	admin := createTestUser(t, "require-admin", "Passw0rd1", db.UserRoleAdmin, true)
	viewer := createTestUser(t, "require-viewer", "Passw0rd1", db.UserRoleViewer, true)

	app := fiber.New()
	app.Get("/admin-only", JWTProtected(), RequireAdmin(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	get := func(token string) *http.Response {
		req := httptest.NewRequest("GET", "/admin-only", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}

	resp := get(accessTokenFor(t, admin))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = get(accessTokenFor(t, viewer))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	var body ErrorResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "Admin privileges required", body.Error)

	resp = get("")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
