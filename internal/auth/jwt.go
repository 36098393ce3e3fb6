// Package auth issues and validates the HS256 tokens capture devices use to
// talk to the API.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles embedded in issued tokens.
const (
	// RoleDevice is a camera or kiosk posting detections.
	RoleDevice = "device"
	// RoleAdmin is an operator using the admin endpoints.
	RoleAdmin = "admin"
)

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
}

// DeviceClaims is the JWT payload carried by capture-device tokens.
type DeviceClaims struct {
	DeviceID string `json:"device_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Issue signs an access/refresh pair for a device.
func Issue(deviceID, role, issuer, key string, accessTTL, refreshTTL time.Duration) (TokenPair, error) {
	now := time.Now()
	accessExp := now.Add(accessTTL)
	refreshExp := now.Add(refreshTTL)

	sign := func(exp time.Time) (string, error) {
		claims := DeviceClaims{
			DeviceID: deviceID,
			Role:     role,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    issuer,
				Subject:   deviceID,
				ExpiresAt: jwt.NewNumericDate(exp),
				IssuedAt:  jwt.NewNumericDate(now),
			},
		}
		return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	}

	accessToken, err := sign(accessExp)
	if err != nil {
		return TokenPair{}, err
	}
	refreshToken, err := sign(refreshExp)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

// Parse validates a token and returns its claims.
func Parse(tokenStr, key, issuer string) (DeviceClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &DeviceClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return DeviceClaims{}, err
	}
	claims, ok := parsed.Claims.(*DeviceClaims)
	if !ok || !parsed.Valid {
		return DeviceClaims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return DeviceClaims{}, errors.New("issuer mismatch")
	}
	if claims.DeviceID == "" {
		return DeviceClaims{}, errors.New("missing device id")
	}
	return *claims, nil
}
