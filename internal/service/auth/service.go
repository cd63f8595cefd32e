package auth

import (
	"errors"
	"time"

	"pikpakhelper/pkg/util"
)

const adminSubject = "admin"

var (
	ErrAuthDisabled       = errors.New("admin login is not configured")
	ErrInvalidCredentials = errors.New("invalid password")
)

// Service 单管理员口令登录，签发 JWT
type Service struct {
	passwordHash string
	jwtSecret    string
	ttl          time.Duration
}

func NewService(passwordHash, jwtSecret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		passwordHash: passwordHash,
		jwtSecret:    jwtSecret,
		ttl:          ttl,
	}
}

// Enabled reports whether both a password hash and a signing secret exist.
func (s *Service) Enabled() bool {
	return s.passwordHash != "" && s.jwtSecret != ""
}

// Login checks the admin password and returns a JWT.
func (s *Service) Login(password string) (string, error) {
	if !s.Enabled() {
		return "", ErrAuthDisabled
	}
	if !util.CheckPassword(password, s.passwordHash) {
		return "", ErrInvalidCredentials
	}
	return util.GenerateJWT(adminSubject, s.jwtSecret, s.ttl)
}

// Verify validates a bearer token.
func (s *Service) Verify(token string) (string, error) {
	return util.ParseJWT(token, s.jwtSecret)
}
