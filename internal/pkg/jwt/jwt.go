package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	// ErrTokenExpired means the token is well-formed and correctly signed but past its exp.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed covers every other verification failure: bad signature, wrong key
	// space, wrong algorithm, garbage input.
	ErrTokenMalformed = errors.New("token malformed")
)

// Subject is the identity payload embedded in every token.
type Subject struct {
	ID       int64
	Username string
	Email    string
}

type Claims struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	TokenType string `json:"typ"`
	jwtlib.RegisteredClaims
}

func (c *Claims) Subject() Subject {
	return Subject{ID: c.ID, Username: c.Username, Email: c.Email}
}

// Service signs and verifies one kind of token with one secret.
type Service struct {
	secret    []byte
	ttl       time.Duration
	tokenType string
	now       func() time.Time
}

func New(secret string, ttl time.Duration, tokenType string, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		secret:    []byte(secret),
		ttl:       ttl,
		tokenType: tokenType,
		now:       now,
	}
}

func (s *Service) TTL() time.Duration { return s.ttl }

func (s *Service) GenerateToken(sub Subject) (string, error) {
	now := s.now()
	claims := Claims{
		ID:        sub.ID,
		Username:  sub.Username,
		Email:     sub.Email,
		TokenType: s.tokenType,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) ValidateToken(tokenStr string) (*Claims, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return nil, ErrTokenMalformed
	}

	token, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (any, error) {
		return s.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if !token.Valid {
		return nil, ErrTokenMalformed
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.TokenType != s.tokenType {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

// TokenPair is handed to the client after register, login and refresh. It is never stored.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Codec issues and verifies access and refresh tokens. Each kind has its own secret so a leaked
// key for one kind cannot mint the other.
type Codec struct {
	access  *Service
	refresh *Service
}

func NewCodec(accessSecret string, accessTTL time.Duration, refreshSecret string, refreshTTL time.Duration, now func() time.Time) (*Codec, error) {
	switch {
	case strings.TrimSpace(accessSecret) == "" || strings.TrimSpace(refreshSecret) == "":
		return nil, errors.New("jwt: access and refresh secrets must be set")
	case accessSecret == refreshSecret:
		return nil, errors.New("jwt: access and refresh secrets must differ")
	case accessTTL <= 0 || refreshTTL <= 0:
		return nil, errors.New("jwt: token TTLs must be positive")
	}

	return &Codec{
		access:  New(accessSecret, accessTTL, TypeAccess, now),
		refresh: New(refreshSecret, refreshTTL, TypeRefresh, now),
	}, nil
}

func (c *Codec) AccessTTL() time.Duration  { return c.access.TTL() }
func (c *Codec) RefreshTTL() time.Duration { return c.refresh.TTL() }

func (c *Codec) IssueAccess(sub Subject) (string, error)  { return c.access.GenerateToken(sub) }
func (c *Codec) IssueRefresh(sub Subject) (string, error) { return c.refresh.GenerateToken(sub) }

func (c *Codec) IssuePair(sub Subject) (TokenPair, error) {
	access, err := c.IssueAccess(sub)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := c.IssueRefresh(sub)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (c *Codec) VerifyAccess(token string) (*Claims, error)  { return c.access.ValidateToken(token) }
func (c *Codec) VerifyRefresh(token string) (*Claims, error) { return c.refresh.ValidateToken(token) }
