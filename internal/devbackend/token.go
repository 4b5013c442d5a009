package devbackend

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/medclinic/booking-portal/internal/core/domain"
)

// ErrInvalidToken means a bearer token failed signature, expiry or claim checks.
var ErrInvalidToken = errors.New("invalid token")

// Issuer signs and verifies HS256 tokens carrying sub and role.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// Issue returns a signed token for u.
func (i *Issuer) Issue(u domain.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(u.ID, 10),
		"role": string(u.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(i.ttl).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(i.secret)
}

// Parse verifies raw and returns the user it was issued for.
func (i *Issuer) Parse(raw string) (domain.User, error) {
	claims := jwt.MapClaims{}
	tkn, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return i.secret, nil
	})
	if err != nil || !tkn.Valid {
		return domain.User{}, ErrInvalidToken
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return domain.User{}, ErrInvalidToken
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return domain.User{}, ErrInvalidToken
	}
	role, _ := claims["role"].(string)
	u := domain.User{ID: id, Role: domain.Role(role)}
	if !u.Valid() {
		return domain.User{}, ErrInvalidToken
	}
	return u, nil
}
