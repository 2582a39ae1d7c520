package types

import "github.com/golang-jwt/jwt/v5"

// Claims is the bearer token payload. The username travels in the standard
// "sub" claim; UserID is carried alongside for logging.
type Claims struct {
	UserID uint `json:"uid"`
	jwt.RegisteredClaims
}
