package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/privebank/ledger/internal/models"
)

var (
	// ErrDuplicateEmail is returned when registering with an email that already exists.
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

const defaultTokenTTL = 24 * time.Hour

type User struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserStore is the identity directory storage. Lookups of a missing user
// return a nil user and a nil error.
type UserStore interface {
	Create(ctx context.Context, email, passwordHash, displayName, role string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, string, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	SetRole(ctx context.Context, id uuid.UUID, role string) error
}

type Service struct {
	repo   UserStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(repo UserStore, secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Service{repo: repo, secret: []byte(secret), ttl: ttl, now: time.Now}
}

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Register creates a user with the plain user role. Admins come from
// EnsureAdmin only.
func (s *Service) Register(ctx context.Context, email, password, displayName string) (*User, error) {
	return s.create(ctx, email, password, displayName, models.RoleUser)
}

func (s *Service) create(ctx context.Context, email, password, displayName, role string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u, err := s.repo.Create(ctx, email, string(hash), displayName, role)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return u, nil
}

// Login checks the password and returns a signed token for the user.
func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	u, hash, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}
	if u == nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	token, err := s.issueToken(u.ID, u.Role)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (s *Service) issueToken(userID uuid.UUID, role string) (string, error) {
	now := s.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: role,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

// ValidateToken returns the user id and role carried by a token.
func (s *Service) ValidateToken(_ context.Context, token string) (uuid.UUID, string, error) {
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return uuid.Nil, "", ErrInvalidToken
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	if c.Role != models.RoleUser && c.Role != models.RoleAdmin {
		return uuid.Nil, "", fmt.Errorf("%w: bad role", ErrInvalidToken)
	}
	return id, c.Role, nil
}

// ResolveOwner maps an owner-facing handle (the user's email) to the user id.
// It only reads the directory.
func (s *Service) ResolveOwner(ctx context.Context, handle string) (uuid.UUID, bool, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return uuid.Nil, false, nil
	}
	u, _, err := s.repo.GetByEmail(ctx, handle)
	if err != nil {
		return uuid.Nil, false, err
	}
	if u == nil {
		return uuid.Nil, false, nil
	}
	return u.ID, true, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// EnsureAdmin makes sure an admin with the given email exists, creating it
// or promoting an existing user. The password of an existing user is kept.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (*User, bool, error) {
	u, _, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	if u == nil {
		u, err = s.create(ctx, email, password, "Administrator", models.RoleAdmin)
		if err != nil {
			return nil, false, err
		}
		return u, true, nil
	}
	if u.Role != models.RoleAdmin {
		if err := s.repo.SetRole(ctx, u.ID, models.RoleAdmin); err != nil {
			return nil, false, err
		}
		u.Role = models.RoleAdmin
	}
	return u, false, nil
}
