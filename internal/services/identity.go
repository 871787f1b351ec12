package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lostfound-board/apiserver/internal/store"
	"github.com/lostfound-board/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenIssuer = "lostfound"

	minUsernameLength    = 3
	maxUsernameLength    = 50
	maxDisplayNameLength = 100
	minPasswordLength    = 6
	// bcrypt ignores input beyond 72 bytes.
	maxPasswordBytes = 72
)

// IdentityConfig holds token and password hashing settings.
type IdentityConfig struct {
	Secret     string
	TokenTTL   time.Duration
	BcryptCost int
}

// Registration is the input to Register.
type Registration struct {
	Username    string
	Email       string
	DisplayName string
	Password    string
}

// Session is an issued bearer token and the user it belongs to.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      types.User
}

// IdentityService registers users, verifies passwords and issues and
// resolves bearer tokens.
type IdentityService struct {
	repo   UserRepository
	secret []byte
	ttl    time.Duration
	cost   int
	options
}

func NewIdentityService(repo UserRepository, cfg IdentityConfig, opts ...Option) (*IdentityService, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &IdentityService{
		repo:    repo,
		secret:  []byte(cfg.Secret),
		ttl:     ttl,
		cost:    cost,
		options: newOptions(opts),
	}, nil
}

// Register creates an account and signs the new user in. A username or email
// that is already taken yields ErrUsernameTaken.
func (s *IdentityService) Register(ctx context.Context, reg Registration) (Session, error) {
	user, err := validateRegistration(reg)
	if err != nil {
		return Session{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hashed)

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	created, err := s.repo.Create(storeCtx, user)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return Session{}, ErrUsernameTaken
		}
		return Session{}, storeError(storeCtx, err)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", created.ID),
		slog.String("username", created.Username))
	return s.issue(created)
}

func validateRegistration(reg Registration) (types.User, error) {
	email := strings.TrimSpace(reg.Email)
	username := strings.TrimSpace(reg.Username)
	if username == "" {
		username = email
	}
	displayName := strings.TrimSpace(reg.DisplayName)
	if displayName == "" {
		displayName = username
	}

	switch {
	case email == "" || !strings.Contains(email, "@"):
		return types.User{}, fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	case utf8.RuneCountInString(username) < minUsernameLength || utf8.RuneCountInString(username) > maxUsernameLength:
		return types.User{}, fmt.Errorf("%w: username must be %d to %d characters", ErrInvalidInput, minUsernameLength, maxUsernameLength)
	case strings.IndexFunc(username, unicode.IsSpace) >= 0:
		return types.User{}, fmt.Errorf("%w: username must not contain spaces", ErrInvalidInput)
	case utf8.RuneCountInString(displayName) > maxDisplayNameLength:
		return types.User{}, fmt.Errorf("%w: display name must be at most %d characters", ErrInvalidInput, maxDisplayNameLength)
	case utf8.RuneCountInString(reg.Password) < minPasswordLength:
		return types.User{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	case len(reg.Password) > maxPasswordBytes:
		return types.User{}, fmt.Errorf("%w: password is too long", ErrInvalidInput)
	}

	return types.User{Username: username, Email: email, DisplayName: displayName}, nil
}

// Authenticate verifies a username-or-email and password pair.
// Unknown users and wrong passwords both yield ErrInvalidCredentials.
func (s *IdentityService) Authenticate(ctx context.Context, login, password string) (Session, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	user, err := s.repo.GetByLogin(storeCtx, login)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, storeError(storeCtx, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.issue(user)
}

// Resolve validates a bearer token and returns the user id it was issued to.
func (s *IdentityService) Resolve(token string) (string, error) {
	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return "", ErrUnauthorized
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", ErrUnauthorized
	}
	return claims.Subject, nil
}

// Profile loads the user a resolved token belongs to. A token for a user
// that no longer exists yields ErrUnauthorized.
func (s *IdentityService) Profile(ctx context.Context, userID string) (types.User, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	user, err := s.repo.GetByID(storeCtx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrUnauthorized
		}
		return types.User{}, storeError(storeCtx, err)
	}
	return user, nil
}

func (s *IdentityService) issue(user types.User) (Session, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    tokenIssuer,
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{Token: token, ExpiresAt: expiresAt.UTC(), User: user}, nil
}
