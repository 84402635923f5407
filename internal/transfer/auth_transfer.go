package transfer

import "github.com/golang-jwt/jwt/v5"

type GoogleUserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

type CustomClaims struct {
	OperatorID string `json:"operator_id"`
	jwt.RegisteredClaims
}
