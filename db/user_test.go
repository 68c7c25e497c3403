package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateAndGetUser(t *testing.T) {
	user, err := Connection.CreateUser(&User{
		Username:       "operator",
		HashedPassword: "not-a-real-hash",
		Role:           UserRoleAdmin,
		IsActive:       true,
	})
	assert.Nil(t, err)
	assert.NotZero(t, user.ID)

	fetched, err := Connection.GetUserByUsername("operator")
	assert.Nil(t, err)
	assert.Equal(t, user.ID, fetched.ID)
	assert.True(t, fetched.IsAdmin())

	fetched, err = Connection.GetUserByID(user.ID)
	assert.Nil(t, err)
	assert.Equal(t, "operator", fetched.Username)

	// Duplicate usernames are rejected by the unique constraint.
	_, err = Connection.CreateUser(&User{Username: "operator", HashedPassword: "x"})
	assert.NotNil(t, err)
}

func TestSetUserPassword(t *testing.T) {
	user, err := Connection.CreateUser(&User{
		Username:           "resetme",
		HashedPassword:     "old-hash",
		Role:               UserRoleViewer,
		IsActive:           true,
		MustChangePassword: true,
	})
	assert.Nil(t, err)

	err = Connection.SetUserPassword(user.ID, "new-hash", false)
	assert.Nil(t, err)

	fetched, err := Connection.GetUserByID(user.ID)
	assert.Nil(t, err)
	assert.Equal(t, "new-hash", fetched.HashedPassword)
	assert.False(t, fetched.MustChangePassword)
}

func TestSetUserLastLogin(t *testing.T) {
	user, err := Connection.CreateUser(&User{Username: "lastlogin", HashedPassword: "x", IsActive: true})
	assert.Nil(t, err)
	assert.Nil(t, user.LastLoginAt)

	err = Connection.SetUserLastLogin(user.ID)
	assert.Nil(t, err)

	fetched, err := Connection.GetUserByID(user.ID)
	assert.Nil(t, err)
	assert.NotNil(t, fetched.LastLoginAt)
}

func TestDeleteUserRemovesRefreshTokens(t *testing.T) {
	user, err := Connection.CreateUser(&User{Username: "ephemeral", HashedPassword: "x", IsActive: true})
	assert.Nil(t, err)

	err = Connection.SaveRefreshToken(user.ID, "token-a")
	assert.Nil(t, err)

	err = Connection.DeleteUser(user.ID)
	assert.Nil(t, err)

	_, err = Connection.GetUserByID(user.ID)
	assert.NotNil(t, err)

	_, err = Connection.GetRefreshToken(user.ID)
	assert.NotNil(t, err)
}

func TestSaveRefreshTokenRotates(t *testing.T) {
	user, err := Connection.CreateUser(&User{Username: "rotator", HashedPassword: "x", IsActive: true})
	assert.Nil(t, err)

	err = Connection.SaveRefreshToken(user.ID, "first")
	assert.Nil(t, err)
	err = Connection.SaveRefreshToken(user.ID, "second")
	assert.Nil(t, err)

	token, err := Connection.GetRefreshToken(user.ID)
	assert.Nil(t, err)
	assert.Equal(t, "second", token.Token)

	// Only one row per user after rotation.
	var count int64
	Connection.DB().Model(&RefreshToken{}).Where("user_id = ?", user.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}
