package api

import (
	"github.com/ncastellan/netrecon/db"
	"github.com/ncastellan/netrecon/lib/auth"
	"github.com/rs/zerolog/log"

	"github.com/gofiber/fiber/v2"
)

// LoginInput describes the login request body.
type LoginInput struct {
	Username string `json:"username" validate:"required,lte=64"`
	Password string `json:"password" validate:"required,lte=255"`
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	AccessToken        string `json:"access_token"`
	RefreshToken       string `json:"refresh_token"`
	TokenType          string `json:"token_type"`
	MustChangePassword bool   `json:"must_change_password"`
	Role               string `json:"role"`
	Username           string `json:"username"`
}

// RefreshInput carries the refresh token to exchange.
type RefreshInput struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// ChangePasswordInput describes the self-service password change body.
type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// Login authenticates a user and returns an access/refresh token pair.
// @Summary Log in
// @Description Authenticates with username and password, returns a token pair
// @Tags Auth
// @Accept json
// @Produce json
// @Param input body LoginInput true "Credentials"
// @Success 200 {object} TokenResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/auth/login [post]
func Login(c *fiber.Ctx) error {
	input := new(LoginInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid request body", err.Error()))
	}

	user, err := db.Connection.GetUserByUsername(input.Username)
	if err != nil || !auth.ComparePasswords(user.HashedPassword, input.Password) {
		return c.Status(fiber.StatusUnauthorized).JSON(NewErrorResponse("Incorrect username or password"))
	}
	if !user.IsActive {
		return c.Status(fiber.StatusUnauthorized).JSON(NewErrorResponse("Account is disabled"))
	}

	tokens, err := auth.GenerateNewTokens(user.ID, user.Username, user.Role)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Could not issue tokens", err.Error()))
	}
	if err := db.Connection.SaveRefreshToken(user.ID, tokens.Refresh); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Could not persist session", err.Error()))
	}
	if err := db.Connection.SetUserLastLogin(user.ID); err != nil {
		log.Warn().Err(err).Uint("user", user.ID).Msg("Could not stamp last login")
	}

	log.Info().Str("user", user.Username).Msg("Signed in")
	return c.JSON(TokenResponse{
		AccessToken:        tokens.Access,
		RefreshToken:       tokens.Refresh,
		TokenType:          "bearer",
		MustChangePassword: user.MustChangePassword,
		Role:               user.Role,
		Username:           user.Username,
	})
}

// RefreshTokens exchanges a valid refresh token for a rotated pair. Access
// tokens are rejected here even when they have not expired yet.
// @Summary Refresh tokens
// @Description Exchanges a refresh token for a new access/refresh pair
// @Tags Auth
// @Accept json
// @Produce json
// @Param input body RefreshInput true "Refresh token"
// @Success 200 {object} TokenResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/auth/refresh [post]
func RefreshTokens(c *fiber.Ctx) error {
	input := new(RefreshInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid request body", err.Error()))
	}

	userID, err := auth.VerifyRefreshToken(input.RefreshToken)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(NewErrorResponse("Invalid refresh token", err.Error()))
	}

	// Rotation: only the most recently issued refresh token is accepted.
	stored, err := db.Connection.GetRefreshToken(userID)
	if err != nil || stored.Token != input.RefreshToken {
		return c.Status(fiber.StatusUnauthorized).JSON(NewErrorResponse("Refresh token has been revoked"))
	}

	user, err := db.Connection.GetUserByID(userID)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(NewErrorResponse("Unknown user"))
	}
	if !user.IsActive {
		return c.Status(fiber.StatusUnauthorized).JSON(NewErrorResponse("Account is disabled"))
	}

	tokens, err := auth.GenerateNewTokens(user.ID, user.Username, user.Role)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Could not issue tokens", err.Error()))
	}
	if err := db.Connection.SaveRefreshToken(user.ID, tokens.Refresh); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Could not persist session", err.Error()))
	}

	return c.JSON(TokenResponse{
		AccessToken:        tokens.Access,
		RefreshToken:       tokens.Refresh,
		TokenType:          "bearer",
		MustChangePassword: user.MustChangePassword,
		Role:               user.Role,
		Username:           user.Username,
	})
}

// Me returns the authenticated user.
// @Summary Current user
// @Description Returns the user behind the access token
// @Tags Auth
// @Produce json
// @Success 200 {object} db.User
// @Failure 401 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /api/auth/me [get]
func Me(c *fiber.Ctx) error {
	claims, err := auth.ExtractTokenMetadata(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(NewErrorResponse("Invalid or expired token", err.Error()))
	}
	user, err := db.Connection.GetUserByID(claims.UserID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(NewErrorResponse("User not found"))
	}
	return c.JSON(user)
}

// ChangePassword lets the authenticated user replace their own password.
// @Summary Change own password
// @Description Verifies the current password and sets a new one
// @Tags Auth
// @Accept json
// @Produce json
// @Param input body ChangePasswordInput true "Passwords"
// @Success 200 {object} ActionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /api/auth/change-password [put]
func ChangePassword(c *fiber.Ctx) error {
	claims, err := auth.ExtractTokenMetadata(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(NewErrorResponse("Invalid or expired token", err.Error()))
	}

	input := new(ChangePasswordInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid request body", err.Error()))
	}

	user, err := db.Connection.GetUserByID(claims.UserID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(NewErrorResponse("User not found"))
	}
	if !auth.ComparePasswords(user.HashedPassword, input.CurrentPassword) {
		return c.Status(fiber.StatusUnauthorized).JSON(NewErrorResponse("Current password is incorrect"))
	}
	if err := auth.CheckPasswordPolicy(input.NewPassword); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Password does not meet policy", err.Error()))
	}

	hash, err := auth.HashPassword(input.NewPassword)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Could not hash password", err.Error()))
	}
	if err := db.Connection.SetUserPassword(user.ID, hash, false); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Could not update password", err.Error()))
	}

	log.Info().Str("user", user.Username).Msg("Password changed")
	return c.JSON(ActionResponse{Message: "Password updated"})
}
