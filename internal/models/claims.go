package models

import (
	"github.com/dgrijalva/jwt-go"
)

// Claims carried in admin access tokens.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.StandardClaims
}
