// Package auth issues and verifies bearer tokens carrying the acting user.
package auth

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/config"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/domain"
)

const defaultTokenTTL = 24 * time.Hour

var (
	// ErrMissingToken is returned when no bearer token is presented
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken is returned for malformed, expired or forged tokens
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Claims identifies an actor inside a tenant
type Claims struct {
	jwt.RegisteredClaims
	UserID   uint   `json:"user_id"`
	TenantID uint   `json:"tenant_id"`
	Role     string `json:"role"`
}

// TokenIssuer signs and parses HMAC bearer tokens
type TokenIssuer struct {
	secret       []byte
	issuer       string
	ttl          time.Duration
	roleOverride string
	now          func() time.Time
}

// NewTokenIssuer creates a token issuer from auth settings
func NewTokenIssuer(cfg config.AuthConfig) (*TokenIssuer, error) {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenIssuer{
		secret:       []byte(cfg.JWTSecret),
		issuer:       cfg.Issuer,
		ttl:          ttl,
		roleOverride: strings.TrimSpace(cfg.RoleOverride),
		now:          time.Now,
	}, nil
}

// Issue mints a signed token for an actor
func (i *TokenIssuer) Issue(actor domain.ActorContext) (string, error) {
	now := i.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   strconv.FormatUint(uint64(actor.UserID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		UserID:   actor.UserID,
		TenantID: actor.TenantID,
		Role:     string(actor.Role),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}
	return token, nil
}

// Parse verifies a token and returns the actor it carries. A configured
// role override replaces the token's role.
func (i *TokenIssuer) Parse(token string) (domain.ActorContext, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.ActorContext{}, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	}, opts...)
	if err != nil {
		return domain.ActorContext{}, errors.Wrap(ErrInvalidToken, err.Error())
	}
	if claims.UserID == 0 || claims.TenantID == 0 {
		return domain.ActorContext{}, errors.Wrap(ErrInvalidToken, "token has no user or tenant")
	}

	role := claims.Role
	if i.roleOverride != "" {
		role = i.roleOverride
	}
	return domain.ActorContext{
		UserID:   claims.UserID,
		TenantID: claims.TenantID,
		Role:     domain.ParseRole(role),
	}, nil
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
