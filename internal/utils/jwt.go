package utils // package utils provides password hashing and token encoding helpers

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType discriminates access tokens from refresh tokens inside the
// "type" claim.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// ErrInvalidToken is returned for any token that fails signature,
// expiry, algorithm or type checks.
var ErrInvalidToken = errors.New("invalid token")

// TokenConfig carries the signing material and default lifetimes.  Access
// and refresh tokens use independent secrets so that one can never be
// replayed as the other.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	Algorithm     string        // HS256, HS384 or HS512
	AccessTTL     time.Duration // default access lifetime
	RefreshTTL    time.Duration // default refresh lifetime
}

// Claims is the payload of both token kinds.  RTV is only meaningful for
// refresh tokens.
type Claims struct {
	Type TokenType `json:"type"`
	RTV  *int      `json:"rtv,omitempty"`
	jwt.RegisteredClaims
}

// IssuedToken is a signed token with its absolute expiry.
type IssuedToken struct {
	Token string
	Exp   time.Time
}

// TokenCodec encodes and decodes signed, expiring tokens.
type TokenCodec struct {
	cfg    TokenConfig
	method jwt.SigningMethod
	now    func() time.Time
}

// NewTokenCodec validates cfg and returns a codec.
func NewTokenCodec(cfg TokenConfig) (*TokenCodec, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("token secrets must not be empty")
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = "HS256"
	}
	method, ok := jwt.GetSigningMethod(cfg.Algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 30 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 14 * 24 * time.Hour
	}
	return &TokenCodec{cfg: cfg, method: method, now: time.Now}, nil
}

// WithClock returns a copy of the codec that reads time from now.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	cp := *c
	cp.now = now
	return &cp
}

// RefreshTTL is the default refresh lifetime, used for cookie max-age.
func (c *TokenCodec) RefreshTTL() time.Duration { return c.cfg.RefreshTTL }

// CreateAccess signs an access token for subject.  A ttl <= 0 uses the
// configured default.
func (c *TokenCodec) CreateAccess(subject string, ttl time.Duration) (IssuedToken, error) {
	if ttl <= 0 {
		ttl = c.cfg.AccessTTL
	}
	return c.sign(subject, TokenAccess, nil, ttl, c.cfg.AccessSecret)
}

// CreateRefresh signs a refresh token for subject bound to version rtv.
func (c *TokenCodec) CreateRefresh(subject string, rtv int, ttl time.Duration) (IssuedToken, error) {
	if ttl <= 0 {
		ttl = c.cfg.RefreshTTL
	}
	return c.sign(subject, TokenRefresh, &rtv, ttl, c.cfg.RefreshSecret)
}

// DecodeAccess validates an access token and returns its subject.
func (c *TokenCodec) DecodeAccess(token string) (string, error) {
	claims, err := c.parse(token, TokenAccess, c.cfg.AccessSecret)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// DecodeRefresh validates a refresh token and returns its subject and rtv.
// A refresh token without an rtv claim is rejected.
func (c *TokenCodec) DecodeRefresh(token string) (string, int, error) {
	claims, err := c.parse(token, TokenRefresh, c.cfg.RefreshSecret)
	if err != nil {
		return "", 0, err
	}
	if claims.RTV == nil {
		return "", 0, ErrInvalidToken
	}
	return claims.Subject, *claims.RTV, nil
}

func (c *TokenCodec) sign(subject string, typ TokenType, rtv *int, ttl time.Duration, secret string) (IssuedToken, error) {
	now := c.now().UTC()
	// exp is whole epoch seconds
	exp := now.Add(ttl).Truncate(time.Second)
	claims := Claims{
		Type: typ,
		RTV:  rtv,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(c.method, claims).SignedString([]byte(secret))
	if err != nil {
		return IssuedToken{}, err
	}
	return IssuedToken{Token: signed, Exp: exp}, nil
}

func (c *TokenCodec) parse(token string, want TokenType, secret string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		// reject anything but the configured HMAC algorithm
		if t.Method.Alg() != c.method.Alg() {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	},
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{c.method.Alg()}),
	)
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != want || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
