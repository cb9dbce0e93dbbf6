package auth

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// account is the seeded analyst identity the service authenticates against.
type account struct {
	id           string
	username     string
	passwordHash []byte
	role         string
}

type refreshEntry struct {
	claims    UserClaims
	expiresAt time.Time
}

// Service authenticates the configured analyst account and tracks issued
// refresh tokens in memory. Restarting the service invalidates outstanding
// refresh tokens; access tokens remain valid until they expire.
type Service struct {
	jwtManager *JWTManager
	account    account

	mu      sync.Mutex
	refresh map[string]refreshEntry
}

// NewService creates the auth service with a single seeded account. The
// password is hashed at startup so the plaintext is never retained.
func NewService(jwtManager *JWTManager, username, password string) (*Service, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("auth username and password must be configured")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return &Service{
		jwtManager: jwtManager,
		account: account{
			id:           uuid.New().String(),
			username:     username,
			passwordHash: hash,
			role:         "analyst",
		},
		refresh: make(map[string]refreshEntry),
	}, nil
}

// Login verifies the credentials and issues a token pair
func (s *Service) Login(username, password string) (*TokenPair, error) {
	if username != s.account.username {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(s.account.passwordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	claims := UserClaims{
		UserID:   s.account.id,
		Username: s.account.username,
		Role:     s.account.role,
	}
	pair, err := s.jwtManager.GenerateTokenPair(claims)
	if err != nil {
		return nil, err
	}

	s.storeRefresh(pair.RefreshToken, claims)
	return pair, nil
}

// Refresh rotates an unexpired refresh token into a fresh token pair. The
// presented token is consumed whether or not rotation succeeds.
func (s *Service) Refresh(refreshToken string) (*TokenPair, error) {
	s.mu.Lock()
	entry, ok := s.refresh[refreshToken]
	if ok {
		delete(s.refresh, refreshToken)
	}
	s.mu.Unlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil, ErrInvalidToken
	}

	pair, err := s.jwtManager.GenerateTokenPair(entry.claims)
	if err != nil {
		return nil, err
	}

	s.storeRefresh(pair.RefreshToken, entry.claims)
	return pair, nil
}

func (s *Service) storeRefresh(token string, claims UserClaims) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Opportunistic sweep of expired entries
	for t, e := range s.refresh {
		if now.After(e.expiresAt) {
			delete(s.refresh, t)
		}
	}
	s.refresh[token] = refreshEntry{
		claims:    claims,
		expiresAt: now.Add(s.jwtManager.GetRefreshTokenDuration()),
	}
}
