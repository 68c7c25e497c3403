package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/viper"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrWrongTokenUse = errors.New("token type not valid for this operation")
)

// Tokens holds a freshly issued access/refresh pair.
type Tokens struct {
	Access  string `json:"access_token"`
	Refresh string `json:"refresh_token"`
}

// TokenMetadata carries the identity claims of a verified access token.
type TokenMetadata struct {
	UserID   uint
	Username string
	Role     string
	Expires  int64
}

func signingKey() []byte {
	return []byte(viper.GetString("api.auth.jwt_secret_key"))
}

// GenerateNewTokens issues an access/refresh token pair for a user.
// The refresh token carries only the user id, a type marker and a unique
// jti so rotation can invalidate it server side.
func GenerateNewTokens(userID uint, username, role string) (*Tokens, error) {
	access, err := generateAccessToken(userID, username, role)
	if err != nil {
		return nil, err
	}
	refresh, err := generateRefreshToken(userID)
	if err != nil {
		return nil, err
	}
	return &Tokens{Access: access, Refresh: refresh}, nil
}

func generateAccessToken(userID uint, username, role string) (string, error) {
	minutes := viper.GetInt("api.auth.access_token_minutes")
	claims := jwt.MapClaims{
		"uid":      userID,
		"username": username,
		"role":     role,
		"type":     TokenTypeAccess,
		"exp":      time.Now().Add(time.Duration(minutes) * time.Minute).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(signingKey())
}

func generateRefreshToken(userID uint) (string, error) {
	days := viper.GetInt("api.auth.refresh_token_days")
	claims := jwt.MapClaims{
		"uid":  userID,
		"type": TokenTypeRefresh,
		"jti":  uuid.NewString(),
		"exp":  time.Now().Add(time.Duration(days) * 24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(signingKey())
}

func parseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return signingKey(), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefreshToken validates a refresh token and returns the user id it
// was issued for. Access tokens are rejected even when otherwise valid.
func VerifyRefreshToken(tokenString string) (uint, error) {
	claims, err := parseToken(tokenString)
	if err != nil {
		return 0, err
	}
	if typ, _ := claims["type"].(string); typ != TokenTypeRefresh {
		return 0, ErrWrongTokenUse
	}
	uid, ok := claims["uid"].(float64)
	if !ok {
		return 0, ErrInvalidToken
	}
	return uint(uid), nil
}

// ExtractTokenMetadata returns the identity claims of the JWT validated by
// the route middleware, falling back to parsing the Authorization header.
func ExtractTokenMetadata(c *fiber.Ctx) (*TokenMetadata, error) {
	var claims jwt.MapClaims

	if token, ok := c.Locals("jwt").(*jwt.Token); ok && token != nil {
		claims, _ = token.Claims.(jwt.MapClaims)
	}
	if claims == nil {
		header := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(header, "Bearer ") {
			return nil, ErrInvalidToken
		}
		parsed, err := parseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			return nil, err
		}
		claims = parsed
	}

	if typ, _ := claims["type"].(string); typ != TokenTypeAccess {
		return nil, ErrWrongTokenUse
	}
	uid, ok := claims["uid"].(float64)
	if !ok {
		return nil, ErrInvalidToken
	}
	exp, _ := claims["exp"].(float64)
	username, _ := claims["username"].(string)
	role, _ := claims["role"].(string)

	return &TokenMetadata{
		UserID:   uint(uid),
		Username: username,
		Role:     role,
		Expires:  int64(exp),
	}, nil
}
