package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidHeader is returned for an Authorization header that is not "Bearer <token>".
	ErrInvalidHeader = errors.New("invalid authorization header")
	// ErrInvalidToken is returned for tokens that fail signature or time checks.
	ErrInvalidToken = errors.New("invalid token")
)

const DefaultAlgorithm = "HS256"

// ParseBearer extracts the token from an Authorization header value.
// The scheme is matched case-insensitively and exactly one token must follow.
func ParseBearer(header string) (string, error) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", ErrInvalidHeader
	}
	return parts[1], nil
}

// Codec signs and verifies HMAC tokens with one shared secret.
type Codec struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
}

// NewCodec returns a codec for secret. algorithm is one of HS256, HS384 or
// HS512; empty selects HS256.
func NewCodec(secret, algorithm string) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret key is empty")
	}
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported jwt algorithm %q", algorithm)
	}
	return &Codec{secret: []byte(secret), method: method, now: time.Now}, nil
}

// Encode signs claims.
func (c *Codec) Encode(claims jwt.MapClaims) (string, error) {
	token, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Decode verifies the signature, exp and iat of token and returns its claims.
// nbf and aud are not checked.
func (c *Codec) Decode(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	now := c.now()
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if exp != nil && !now.Before(exp.Time) {
		return nil, fmt.Errorf("%w: token is expired", ErrInvalidToken)
	}

	iat, err := claims.GetIssuedAt()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if iat != nil && now.Before(iat.Time) {
		return nil, fmt.Errorf("%w: token used before issued", ErrInvalidToken)
	}

	return claims, nil
}
