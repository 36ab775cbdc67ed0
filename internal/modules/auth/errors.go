package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already taken")

	// Refresh rejections, kept distinct so the handler can answer precisely.
	ErrInvalidToken  = errors.New("invalid refresh token")
	ErrTokenRevoked  = errors.New("refresh token is revoked")
	ErrTokenMismatch = errors.New("refresh token is not the current session token")
)
