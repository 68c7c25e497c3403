package db

import (
	"time"

	"github.com/rs/zerolog/log"
)

// User roles. Admins may mutate state, viewers only read.
const (
	UserRoleAdmin  = "admin"
	UserRoleViewer = "viewer"
)

type User struct {
	BaseModel
	Username           string     `gorm:"type:varchar(64);not null;unique" json:"username" validate:"required,lte=64"`
	Email              string     `gorm:"type:varchar(255)" json:"email" validate:"omitempty,email,lte=255"`
	FullName           string     `gorm:"type:varchar(255)" json:"full_name"`
	HashedPassword     string     `json:"-"`
	Role               string     `gorm:"type:varchar(16);default:viewer" json:"role" validate:"omitempty,oneof=admin viewer"`
	IsActive           bool       `gorm:"default:true" json:"is_active"`
	MustChangePassword bool       `gorm:"default:false" json:"must_change_password"`
	LastLoginAt        *time.Time `json:"last_login_at"`
}

// TableName overrides the default table name.
func (User) TableName() string {
	return "users"
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

func (d *DatabaseConnection) CreateUser(user *User) (*User, error) {
	result := d.db.Create(&user)
	if result.Error != nil {
		log.Error().Err(result.Error).Str("username", user.Username).Msg("User creation failed")
	}
	return user, result.Error
}

func (d *DatabaseConnection) GetUserByUsername(username string) (*User, error) {
	var user User
	if err := d.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *DatabaseConnection) GetUserByID(id uint) (*User, error) {
	var user User
	if err := d.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *DatabaseConnection) ListUsers(skip, limit int) ([]User, int64, error) {
	var users []User
	var count int64
	if err := d.db.Model(&User{}).Count(&count).Error; err != nil {
		return nil, 0, err
	}
	err := d.db.Scopes(Paginate(skip, limit)).Order("id ASC").Find(&users).Error
	return users, count, err
}

// CountActiveAdmins returns how many enabled admin accounts exist. Used to
// refuse changes that would leave the system without one.
func (d *DatabaseConnection) CountActiveAdmins() (int64, error) {
	var count int64
	err := d.db.Model(&User{}).
		Where("role = ? AND is_active = ?", UserRoleAdmin, true).
		Count(&count).Error
	return count, err
}

func (d *DatabaseConnection) UpdateUser(user *User) error {
	return d.db.Save(user).Error
}

func (d *DatabaseConnection) DeleteUser(id uint) error {
	if err := d.db.Where("user_id = ?", id).Delete(&RefreshToken{}).Error; err != nil {
		return err
	}
	return d.db.Delete(&User{}, id).Error
}

func (d *DatabaseConnection) CountUsers() (int64, error) {
	var count int64
	err := d.db.Model(&User{}).Count(&count).Error
	return count, err
}

// SetUserLastLogin stamps the moment the user authenticated.
func (d *DatabaseConnection) SetUserLastLogin(id uint) error {
	now := time.Now()
	return d.db.Model(&User{}).Where("id = ?", id).
		Update("last_login_at", &now).Error
}

// SetUserPassword replaces the password hash and sets whether the user must
// change it on next login.
func (d *DatabaseConnection) SetUserPassword(id uint, hash string, mustChange bool) error {
	return d.db.Model(&User{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"hashed_password":      hash,
			"must_change_password": mustChange,
		}).Error
}
