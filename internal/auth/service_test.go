package auth

import (
	"errors"
	"testing"
	"time"
)

func testService(t *testing.T) *Service {
	t.Helper()
	m := NewJWTManager("test-secret", 15*time.Minute, 24*time.Hour)
	s, err := NewService(m, "analyst", "correct-horse")
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return s
}

// TestService_Login tests credential verification
func TestService_Login(t *testing.T) {
	s := testService(t)

	pair, err := s.Login("analyst", "correct-horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Error("Expected both tokens populated")
	}

	if _, err := s.Login("analyst", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for a bad password, got %v", err)
	}
	if _, err := s.Login("intruder", "correct-horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for an unknown user, got %v", err)
	}
}

// TestService_RefreshRotation tests that a refresh token works once and the
// rotated replacement works after it
func TestService_RefreshRotation(t *testing.T) {
	s := testService(t)

	pair, err := s.Login("analyst", "correct-horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	rotated, err := s.Refresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Error("Expected a fresh refresh token after rotation")
	}

	if _, err := s.Refresh(pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected the consumed token to be rejected, got %v", err)
	}
	if _, err := s.Refresh(rotated.RefreshToken); err != nil {
		t.Errorf("Expected the rotated token to work, got %v", err)
	}
}

// TestService_RefreshUnknownToken tests the miss path
func TestService_RefreshUnknownToken(t *testing.T) {
	s := testService(t)

	if _, err := s.Refresh("never-issued"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

// TestNewService_RequiresCredentials tests startup validation
func TestNewService_RequiresCredentials(t *testing.T) {
	m := NewJWTManager("test-secret", 15*time.Minute, 24*time.Hour)

	if _, err := NewService(m, "", "pw"); err == nil {
		t.Error("Expected an error for an empty username")
	}
	if _, err := NewService(m, "analyst", ""); err == nil {
		t.Error("Expected an error for an empty password")
	}
}
