package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
)

const (
	// AccessTokenTTL bounds how long one access token works.
	AccessTokenTTL = time.Hour

	// RefreshTokenTTL bounds how long a refresh token can rotate the pair.
	RefreshTokenTTL = 7 * 24 * time.Hour

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// ErrInvalidToken covers expired, malformed, or wrongly-signed tokens.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT payload for both token types.
type Claims struct {
	Username  string      `json:"username"`
	Role      models.Role `json:"role"`
	TokenType string      `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair is what login and refresh return.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// Issuer signs and parses token pairs with an HMAC secret.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

// NewIssuer builds an issuer over the shared secret.
func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret), now: time.Now}
}

// IssuePair mints a fresh access/refresh pair for a user.
func (i *Issuer) IssuePair(user *models.User) (*TokenPair, error) {
	access, err := i.sign(user, tokenTypeAccess, AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := i.sign(user, tokenTypeRefresh, RefreshTokenTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(AccessTokenTTL.Seconds()),
	}, nil
}

func (i *Issuer) sign(user *models.User, tokenType string, ttl time.Duration) (string, error) {
	now := i.now()
	claims := Claims{
		Username:  user.Username,
		Role:      user.Role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// ParseAccess validates an access token and returns its claims.
func (i *Issuer) ParseAccess(token string) (*Claims, error) {
	return i.parse(token, tokenTypeAccess)
}

// ParseRefresh validates a refresh token and returns its claims.
func (i *Issuer) ParseRefresh(token string) (*Claims, error) {
	return i.parse(token, tokenTypeRefresh)
}

func (i *Issuer) parse(token, wantType string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != wantType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// UserID extracts the subject as a UUID.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}
