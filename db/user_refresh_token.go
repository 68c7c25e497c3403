package db

type RefreshToken struct {
	BaseModel
	UserID uint   `gorm:"index;not null"`
	Token  string `gorm:"type:text;not null"`
}

// TableName overrides the default table name.
func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func (d *DatabaseConnection) CreateRefreshToken(refreshToken *RefreshToken) error {
	return d.db.Create(refreshToken).Error
}

func (d *DatabaseConnection) DeleteRefreshToken(userID uint) error {
	return d.db.Where("user_id = ?", userID).Delete(&RefreshToken{}).Error
}

func (d *DatabaseConnection) GetRefreshToken(userID uint) (*RefreshToken, error) {
	var refreshToken RefreshToken
	if err := d.db.Where("user_id = ?", userID).First(&refreshToken).Error; err != nil {
		return nil, err
	}
	return &refreshToken, nil
}

// SaveRefreshToken rotates the stored refresh token for a user.
func (d *DatabaseConnection) SaveRefreshToken(userID uint, token string) error {
	if err := d.DeleteRefreshToken(userID); err != nil {
		return err
	}
	return d.CreateRefreshToken(&RefreshToken{
		UserID: userID,
		Token:  token,
	})
}
