package auth

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 7

var (
	ErrEmptyPassword         = errors.New("no password provided")
	ErrPasswordTooShort      = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrMissingLetterOrNumber = errors.New("password must contain both letters and numbers")
)

// HashPassword returns the bcrypt hash of a plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error().Err(err).Msg("Error generating password hash")
		return "", err
	}
	return string(hash), nil
}

// ComparePasswords reports whether the plaintext password matches the
// stored bcrypt hash.
func ComparePasswords(hashedPwd, inputPwd string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPwd), []byte(inputPwd)) == nil
}

// CheckPasswordPolicy checks if a password meets the minimum requirements.
func CheckPasswordPolicy(password string) error {
	hasLetter := false
	hasNumber := false

	for _, char := range password {
		switch {
		case unicode.IsLetter(char):
			hasLetter = true
		case unicode.IsNumber(char):
			hasNumber = true
		}
	}

	switch {
	case password == "":
		return ErrEmptyPassword
	case len(password) < MinPasswordLength:
		return ErrPasswordTooShort
	case !hasLetter || !hasNumber:
		return ErrMissingLetterOrNumber
	}
	return nil
}
