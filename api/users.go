package api

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/ncastellan/netrecon/db"
	"github.com/ncastellan/netrecon/lib/auth"
	"github.com/rs/zerolog/log"
)

type UserCreateInput struct {
	Username string `json:"username" validate:"required,lte=64"`
	Password string `json:"password" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	FullName string `json:"full_name"`
	Role     string `json:"role" validate:"omitempty,oneof=admin viewer"`
}

type UserUpdateInput struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	FullName *string `json:"full_name"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin viewer"`
	IsActive *bool   `json:"is_active"`
}

type ResetPasswordInput struct {
	NewPassword string `json:"new_password" validate:"required"`
	ForceChange *bool  `json:"force_change"`
}

// ListUsersHandler godoc
// @Summary List users
// @Description Lists user accounts (admin only)
// @Tags Users
// @Produce json
// @Param skip query int false "Offset"
// @Param limit query int false "Page size"
// @Security ApiKeyAuth
// @Router /api/users [get]
func ListUsersHandler(c *fiber.Ctx) error {
	skip, limit := parsePagination(c)
	if limit == 0 {
		limit = 50
	}
	users, total, err := db.Connection.ListUsers(skip, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Could not list users", err.Error()))
	}
	return c.JSON(fiber.Map{
		"users": users,
		"total": total,
	})
}

// CreateUserHandler godoc
// @Summary Create user
// @Description Creates a new user account (admin only). The user must change
// the initial password on first login.
// @Tags Users
// @Accept json
// @Produce json
// @Param input body UserCreateInput true "User"
// @Success 201 {object} db.User
// @Failure 400 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /api/users [post]
func CreateUserHandler(c *fiber.Ctx) error {
	input := new(UserCreateInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid request body", err.Error()))
	}
	validate := validator.New()
	if err := validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Validation failed", err.Error()))
	}
	if err := auth.CheckPasswordPolicy(input.Password); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse(err.Error()))
	}

	if _, err := db.Connection.GetUserByUsername(input.Username); err == nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Username already exists"))
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Could not create user", err.Error()))
	}
	role := input.Role
	if role == "" {
		role = db.UserRoleViewer
	}
	user := &db.User{
		Username:       input.Username,
		Email:          input.Email,
		FullName:       input.FullName,
		HashedPassword: hash,
		Role:           role,
		IsActive:       true,
		// Admin-set passwords are provisional until the user picks their own.
		MustChangePassword: true,
	}
	created, err := db.Connection.CreateUser(user)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Could not create user", err.Error()))
	}
	log.Info().Str("username", created.Username).Str("role", created.Role).Msg("User created")
	return c.Status(fiber.StatusCreated).JSON(created)
}

// GetUserHandler godoc
// @Summary Get user
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} db.User
// @Failure 404 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /api/users/{id} [get]
func GetUserHandler(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid user ID"))
	}
	user, err := db.Connection.GetUserByID(id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(NewErrorResponse("User not found"))
	}
	return c.JSON(user)
}

// UpdateUserHandler godoc
// @Summary Update user
// @Description Updates profile fields, role or active flag (admin only)
// @Tags Users
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param input body UserUpdateInput true "Fields to update"
// @Success 200 {object} db.User
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /api/users/{id} [put]
func UpdateUserHandler(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid user ID"))
	}
	user, err := db.Connection.GetUserByID(id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(NewErrorResponse("User not found"))
	}

	input := new(UserUpdateInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid request body", err.Error()))
	}
	validate := validator.New()
	if err := validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Validation failed", err.Error()))
	}

	demotes := input.Role != nil && *input.Role != db.UserRoleAdmin
	deactivates := input.IsActive != nil && !*input.IsActive
	if user.IsAdmin() && user.IsActive && (demotes || deactivates) {
		admins, err := db.Connection.CountActiveAdmins()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Could not update user", err.Error()))
		}
		if admins <= 1 {
			return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Cannot deactivate or demote the last active admin"))
		}
	}

	if input.Email != nil {
		user.Email = *input.Email
	}
	if input.FullName != nil {
		user.FullName = *input.FullName
	}
	if input.Role != nil {
		user.Role = *input.Role
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}
	if err := db.Connection.UpdateUser(user); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Could not update user", err.Error()))
	}
	return c.JSON(user)
}

// DeleteUserHandler godoc
// @Summary Delete user
// @Description Deletes a user account (admin only). Self-deletion is refused.
// @Tags Users
// @Param id path int true "User ID"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /api/users/{id} [delete]
func DeleteUserHandler(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid user ID"))
	}
	claims, err := auth.ExtractTokenMetadata(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(NewErrorResponse("Invalid or expired token"))
	}
	if claims.UserID == id {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Cannot delete your own account"))
	}
	user, err := db.Connection.GetUserByID(id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(NewErrorResponse("User not found"))
	}
	if err := db.Connection.DeleteUser(user.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Could not delete user", err.Error()))
	}
	log.Info().Str("username", user.Username).Msg("User deleted")
	return c.SendStatus(fiber.StatusNoContent)
}

// ResetUserPasswordHandler godoc
// @Summary Reset user password
// @Description Sets a new password for a user (admin only). By default the
// user is forced to change it on next login.
// @Tags Users
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param input body ResetPasswordInput true "New password"
// @Success 200 {object} ActionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /api/users/{id}/reset-password [post]
func ResetUserPasswordHandler(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid user ID"))
	}
	user, err := db.Connection.GetUserByID(id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(NewErrorResponse("User not found"))
	}

	input := new(ResetPasswordInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid request body", err.Error()))
	}
	if err := auth.CheckPasswordPolicy(input.NewPassword); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse(err.Error()))
	}
	forceChange := true
	if input.ForceChange != nil {
		forceChange = *input.ForceChange
	}

	hash, err := auth.HashPassword(input.NewPassword)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Could not reset password", err.Error()))
	}
	if err := db.Connection.SetUserPassword(user.ID, hash, forceChange); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Could not reset password", err.Error()))
	}
	log.Info().Str("username", user.Username).Bool("force_change", forceChange).Msg("Password reset by admin")
	return c.JSON(ActionResponse{Message: "Password reset successfully"})
}
