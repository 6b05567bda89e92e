package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"aulanet/internal/models"

	"github.com/c-pro/geche"
	"github.com/google/uuid"
)

const (
	DefaultTokenExpiry = 12 * time.Hour
	loginFailedMessage = "Login failed"
)

var (
	ErrUserExists      = errors.New("user already exists")
	ErrUnauthenticated = errors.New("unauthenticated")
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	Token       string `json:"token,omitempty"`
	TokenExpiry int64  `json:"tokenExpiry,omitempty"`
}

type UserCredentials struct {
	models.User
	PasswordHash string

	// Counter for consecutive failed login attempts to throttle brute
	// force attacks. Kept in memory only.
	FailedLoginAttempts int64
	LastAttemptTime     int64
}

func (uc *UserCredentials) ResetFailedLoginAttempts(now time.Time) {
	uc.FailedLoginAttempts = 0
	uc.LastAttemptTime = now.Unix()
}

func (uc *UserCredentials) IncrementFailedLoginAttempts(now time.Time) {
	uc.FailedLoginAttempts++
	uc.LastAttemptTime = now.Unix()
}

// Store persists credentials and token hashes between restarts.
type Store interface {
	UpsertCredentials(credentials UserCredentials) error
	ListCredentials() ([]UserCredentials, error)
	UpsertToken(userID string, tokenHash string) error
	DeleteToken(tokenHash string) error
	ListTokens() (map[string]string, error)
}

type Config struct {
	Secret      string        `json:"secret"`
	secretBytes []byte        `json:"-"`
	TokenExpiry time.Duration `json:"tokenExpiry"`
}

func (c *Config) Validate() error {
	if c.Secret == "" {
		return errors.New("secret is required")
	}

	var err error
	c.secretBytes, err = base64.StdEncoding.DecodeString(c.Secret)
	if err != nil {
		return fmt.Errorf("auth secret is not a valid base64: %w", err)
	}

	if c.TokenExpiry == 0 {
		c.TokenExpiry = DefaultTokenExpiry
	}

	return nil
}

// AuthService issues and validates the opaque bearer tokens that
// authenticate both HTTP requests and websocket handshakes. Live
// tokens are cached hashed with a TTL and persisted through the store.
type AuthService struct {
	Config
	store      Store
	users      *geche.Locker[string, *UserCredentials]
	liveTokens geche.Geche[string, string]
	now        func() time.Time
}

func NewAuthService(ctx context.Context, config Config, store Store) (*AuthService, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	as := &AuthService{
		Config:     config,
		store:      store,
		users:      geche.NewLocker[string, *UserCredentials](geche.NewMapCache[string, *UserCredentials]()),
		liveTokens: geche.NewMapTTLCache[string, string](ctx, config.TokenExpiry, time.Minute),
		now:        time.Now,
	}

	if err := as.load(); err != nil {
		return nil, err
	}

	return as, nil
}

// load primes the in-memory caches from the store.
func (as *AuthService) load() error {
	credentials, err := as.store.ListCredentials()
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}
	tx := as.users.Lock()
	for i := range credentials {
		tx.Set(credentials[i].UserName, &credentials[i])
	}
	tx.Unlock()

	tokens, err := as.store.ListTokens()
	if err != nil {
		return fmt.Errorf("failed to load tokens: %w", err)
	}
	for tokenHash, userID := range tokens {
		as.liveTokens.Set(tokenHash, userID)
	}

	return nil
}

func (as *AuthService) hashPassword(username, password string) string {
	h := hmac.New(sha512.New, as.secretBytes)
	h.Write([]byte(username + password))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// AddUser registers a new user with the given password. The ID is
// generated when the user carries none.
func (as *AuthService) AddUser(user models.User, password string) (UserCredentials, error) {
	tx := as.users.Lock()
	defer tx.Unlock()
	if _, err := tx.Get(user.UserName); err == nil {
		return UserCredentials{}, ErrUserExists
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	credentials := UserCredentials{
		User:         user,
		PasswordHash: as.hashPassword(user.UserName, password),
	}

	if err := as.store.UpsertCredentials(credentials); err != nil {
		return UserCredentials{}, fmt.Errorf("failed to persist user: %w", err)
	}
	tx.Set(user.UserName, &credentials)

	return credentials, nil
}

func (as *AuthService) Login(req LoginRequest) (LoginResponse, string) {
	now := as.now()
	tx := as.users.Lock()
	defer tx.Unlock()
	user, err := tx.Get(req.Username)
	if err != nil {
		return LoginResponse{
			Success: false,
			Message: loginFailedMessage,
		}, ""
	}

	// Check failed login attempts
	if user.FailedLoginAttempts > 3 {
		lastAttempt := user.LastAttemptTime
		failedAttempts := user.FailedLoginAttempts
		nextAttempt := lastAttempt + 30*(failedAttempts*failedAttempts)
		if now.Unix() < nextAttempt {
			return LoginResponse{
				Success: false,
				Message: fmt.Sprintf("Too many failed login attempts. Next attempt in %d seconds", nextAttempt-now.Unix()),
			}, ""
		}
	}

	// Use constant-time comparison for password hashes
	currentHash := as.hashPassword(req.Username, req.Password)
	if !hmac.Equal([]byte(user.PasswordHash), []byte(currentHash)) {
		user.IncrementFailedLoginAttempts(now)
		return LoginResponse{
			Success: false,
			Message: loginFailedMessage,
		}, ""
	}

	token, err := as.generateToken()
	if err != nil {
		slog.Error("login failed", "user_id", user.ID, "error", err)
		return LoginResponse{
			Success: false,
			Message: "internal error",
		}, ""
	}

	tokenHash := hashToken(token)
	as.liveTokens.Set(tokenHash, user.ID)
	if err := as.store.UpsertToken(user.ID, tokenHash); err != nil {
		// The in-memory token still works; it just won't survive a
		// restart.
		slog.Error("failed to persist token", "user_id", user.ID, "error", err)
	}
	user.ResetFailedLoginAttempts(now)

	return LoginResponse{
		Success:     true,
		Token:       token,
		TokenExpiry: now.Unix() + int64(as.TokenExpiry.Seconds()),
	}, user.ID
}

func (as *AuthService) Logoff(token string) error {
	tokenHash := hashToken(token)
	if err := as.store.DeleteToken(tokenHash); err != nil {
		slog.Error("failed to delete persisted token", "error", err)
	}
	return as.liveTokens.Del(tokenHash)
}

func (as *AuthService) generateToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// GetUserID resolves a bearer token to a user ID. Malformed, expired,
// revoked and unknown tokens all resolve to ErrUnauthenticated.
func (as *AuthService) GetUserID(token string) (string, error) {
	if token == "" {
		return "", ErrUnauthenticated
	}
	userID, err := as.liveTokens.Get(hashToken(token))
	if err != nil {
		return "", ErrUnauthenticated
	}
	return userID, nil
}
