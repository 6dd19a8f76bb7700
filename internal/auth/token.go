package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrUnauthenticated is returned when a credential is missing, malformed,
	// expired, or fails signature verification.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Identity is the stable identity extracted from a verified token.
type Identity struct {
	UserID   int64
	Username string
	Role     string
}

// claims carries the custom token payload alongside the registered claims.
// Field names match the tokens issued by the HTTP login endpoints.
type claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Manager issues and verifies HS256-signed access tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

// NewManager creates a token manager with the given shared secret and
// token lifetime.
func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl}
}

// IssueToken signs a token for the given identity.
func (m *Manager) IssueToken(id Identity) (string, error) {
	now := time.Now()
	c := claims{
		UserID:   id.UserID,
		Username: id.Username,
		Role:     id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(m.secret)
}

// Verify validates a token and extracts the identity it carries.
// Any failure is reported as ErrUnauthenticated: the caller must refuse
// admission, not degrade.
func (m *Manager) Verify(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrUnauthenticated
	}

	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnauthenticated
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, ErrUnauthenticated
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid || c.UserID == 0 {
		return nil, ErrUnauthenticated
	}

	return &Identity{
		UserID:   c.UserID,
		Username: c.Username,
		Role:     c.Role,
	}, nil
}
