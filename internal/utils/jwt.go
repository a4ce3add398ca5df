package utils

import (
	"crypto/sha256"
	"fmt"
	"time"

	"failboard/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func GenerateToken(cfg *config.Config, userID, username string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id":  userID,
		"username": username,
		"jti":      uuid.NewString(),
		"exp":      now.Add(cfg.JWTExpirationTime).Unix(),
		"iat":      now.Unix(),
		"iss":      cfg.JWTIssuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecretKey))
}

func ValidateToken(cfg *config.Config, tokenString string) (*jwt.Token, error) {
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(cfg.JWTSecretKey), nil
	}, jwt.WithIssuer(cfg.JWTIssuer))
}

func ExtractClaims(token *jwt.Token) (jwt.MapClaims, error) {
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// TokenID reads the jti without verifying the signature; the blacklist is
// checked before full validation.
func TokenID(tokenString string) (string, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return "", false
	}
	jti, ok := claims["jti"].(string)
	return jti, ok && jti != ""
}

// TokenRemaining is how long the token stays valid, used as the blacklist TTL.
func TokenRemaining(claims jwt.MapClaims) time.Duration {
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0
	}
	return time.Until(exp.Time)
}

func GetTokenHash(token string) string {
	if token == "" {
		return "empty"
	}
	hash := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", hash[:8])
}
