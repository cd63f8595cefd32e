package auth

import (
	"errors"
	"testing"
	"time"

	"pikpakhelper/pkg/util"
)

func TestLogin(t *testing.T) {
	hash, err := util.HashPassword("letmein")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	svc := NewService(hash, "secret", time.Hour)

	if _, err := svc.Login("wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login(wrong) error = %v", err)
	}

	token, err := svc.Login("letmein")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	sub, err := svc.Verify(token)
	if err != nil || sub != adminSubject {
		t.Errorf("Verify() = %q, %v", sub, err)
	}
}

func TestLoginDisabled(t *testing.T) {
	svc := NewService("", "secret", 0)
	if svc.Enabled() {
		t.Fatal("Enabled() = true without password hash")
	}
	if _, err := svc.Login("x"); !errors.Is(err, ErrAuthDisabled) {
		t.Errorf("Login() error = %v, want ErrAuthDisabled", err)
	}
}
