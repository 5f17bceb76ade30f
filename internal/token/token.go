package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"studioline/internal/domain"
)

// ErrInvalidToken covers every verification failure. Expired, tampered and
// malformed tokens are deliberately indistinguishable to the caller.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the verified payload of a bearer token. Other components treat
// it as ground truth for the token's validity window; only the identity
// verification endpoint re-checks the store.
type Claims struct {
	PrincipalID string
	Kind        domain.Kind
	Name        string
	PhoneNumber string
	// Role is set only for staff principals.
	Role domain.StaffRole
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Kind        string `json:"kind"`
	Name        string `json:"name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Role        string `json:"role,omitempty"`
}

// Service issues and verifies HS256 bearer tokens.
type Service struct {
	Secret string
	TTL    time.Duration
	Now    func() time.Time
}

func New(secret string, ttl time.Duration) Service {
	return Service{Secret: secret, TTL: ttl, Now: time.Now}
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Service) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return 7 * 24 * time.Hour
}

// Issue signs a token for the given claims. Issuance is unconditional;
// callers must have verified credentials first.
func (s Service) Issue(c Claims) (string, error) {
	if strings.TrimSpace(s.Secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	now := s.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.PrincipalID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl())),
		},
		Kind:        string(c.Kind),
		Name:        c.Name,
		PhoneNumber: c.PhoneNumber,
		Role:        string(c.Role),
	})
	return t.SignedString([]byte(s.Secret))
}

// Verify validates signature and expiry and returns the embedded claims.
func (s Service) Verify(raw string) (Claims, error) {
	if strings.TrimSpace(s.Secret) == "" {
		return Claims{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	claims := &jwtClaims{}
	parsed, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(s.Secret), nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.Subject == "" || !domain.ValidKind(claims.Kind) {
		return Claims{}, ErrInvalidToken
	}
	kind := domain.Kind(claims.Kind)
	if kind == domain.KindStaff && !domain.ValidStaffRole(claims.Role) {
		return Claims{}, ErrInvalidToken
	}
	out := Claims{
		PrincipalID: claims.Subject,
		Kind:        kind,
		Name:        claims.Name,
		PhoneNumber: claims.PhoneNumber,
	}
	if kind == domain.KindStaff {
		out.Role = domain.StaffRole(claims.Role)
	}
	return out, nil
}
