package auth

import "github.com/golang-jwt/jwt/v5"

// Claims is the JWT payload issued at login. The user id is carried in "id"
// rather than "sub" so the token keeps the shape existing clients decode.
type Claims struct {
	Username string `json:"username"`
	UserID   string `json:"id"`
	jwt.RegisteredClaims
}
