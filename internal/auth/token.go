package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/siakad-core/siakad-core/internal/shared"
)

const (
	tokenKindAccess  = "access"
	tokenKindRefresh = "refresh"
)

// accessClaims carries the subject id and token version of an access token.
type accessClaims struct {
	jwt.RegisteredClaims
	TokenVersion int64  `json:"tv"`
	Kind         string `json:"kind"`
}

// refreshClaims carries only the session reference of a refresh token. The
// registered ID (jti) is the RefreshSession row id.
type refreshClaims struct {
	jwt.RegisteredClaims
	Kind string `json:"kind"`
}

// Codec encodes and decodes signed HS256 tokens. Access and refresh tokens
// share the signing key but carry a kind claim, so one can never be
// presented in place of the other.
type Codec struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewCodec constructs a Codec. now defaults to time.Now when nil.
func NewCodec(secret, issuer string, accessTTL, refreshTTL time.Duration, now func() time.Time) *Codec {
	if now == nil {
		now = time.Now
	}
	return &Codec{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        now,
	}
}

// AccessTokenClaims is the decoded view of a validated access token.
type AccessTokenClaims struct {
	UserID       int64
	TokenVersion int64
	ExpiresAt    time.Time
}

// EncodeAccess mints an access token for the user's current token version.
func (c *Codec) EncodeAccess(user *User) (string, error) {
	now := c.now()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
		},
		TokenVersion: user.TokenVersion,
		Kind:         tokenKindAccess,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign access token: %w", err)
	}
	return signed, nil
}

// EncodeRefresh mints a refresh token referencing the given session row.
func (c *Codec) EncodeRefresh(sessionID string, expiresAt time.Time) (string, error) {
	claims := refreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(c.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Kind: tokenKindRefresh,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign refresh token: %w", err)
	}
	return signed, nil
}

// DecodeAccess verifies signature, expiry and kind of an access token.
func (c *Codec) DecodeAccess(token string) (*AccessTokenClaims, error) {
	var claims accessClaims
	if err := c.parse(token, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUnauthorized, err)
	}
	if claims.Kind != tokenKindAccess {
		return nil, fmt.Errorf("%w: not an access token", shared.ErrUnauthorized)
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed subject", shared.ErrUnauthorized)
	}
	return &AccessTokenClaims{
		UserID:       userID,
		TokenVersion: claims.TokenVersion,
		ExpiresAt:    claims.ExpiresAt.Time,
	}, nil
}

// DecodeRefresh verifies a refresh token and returns the session id.
func (c *Codec) DecodeRefresh(token string) (string, error) {
	var claims refreshClaims
	if err := c.parse(token, &claims); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidRefreshToken, err)
	}
	if claims.Kind != tokenKindRefresh {
		return "", fmt.Errorf("%w: not a refresh token", shared.ErrInvalidRefreshToken)
	}
	if claims.ID == "" {
		return "", fmt.Errorf("%w: missing session reference", shared.ErrInvalidRefreshToken)
	}
	return claims.ID, nil
}

// RefreshTTL exposes the configured refresh token lifetime.
func (c *Codec) RefreshTTL() time.Duration {
	return c.refreshTTL
}

func (c *Codec) parse(token string, claims jwt.Claims) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(_ *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return errors.New("token not valid")
	}
	return nil
}
