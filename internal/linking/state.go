package linking

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/osse101/adlink/internal/clock"
	"github.com/osse101/adlink/internal/domain"
)

// StateIssuer is the iss claim of every state token
const StateIssuer = "adlink"

// LinkState is the context carried through the provider round trip
type LinkState struct {
	TenantID      string
	Provider      domain.Provider
	SessionID     string
	DefaultConfig domain.DefaultConfig
	ExpiresAt     time.Time
}

type stateClaims struct {
	jwt.RegisteredClaims
	TenantID      string               `json:"tenant_id"`
	Provider      domain.Provider      `json:"provider"`
	SessionID     string               `json:"session_id"`
	DefaultConfig domain.DefaultConfig `json:"default_config"`
}

// StateCodec signs and verifies the OAuth state parameter
type StateCodec struct {
	key   []byte
	ttl   time.Duration
	clock clock.Clock
}

// NewStateCodec creates a codec signing with key. Tokens are valid for ttl.
func NewStateCodec(key []byte, ttl time.Duration, c clock.Clock) *StateCodec {
	return &StateCodec{key: key, ttl: ttl, clock: c}
}

// Encode returns a signed state token for s
func (c *StateCodec) Encode(s LinkState) (string, error) {
	now := c.clock.Now()
	claims := stateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    StateIssuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		TenantID:      s.TenantID,
		Provider:      s.Provider,
		SessionID:     s.SessionID,
		DefaultConfig: s.DefaultConfig,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign state: %w", err)
	}
	return signed, nil
}

// Decode verifies token and returns the state it carries
func (c *StateCodec) Decode(token string) (*LinkState, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: state is required", domain.ErrInvalidState)
	}

	var claims stateClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, mapStateError(err)
	}

	if claims.Issuer != StateIssuer {
		return nil, fmt.Errorf("%w: unexpected issuer", domain.ErrInvalidState)
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: exp is required", domain.ErrInvalidState)
	}
	if !c.clock.Now().Before(claims.ExpiresAt.Time) {
		return nil, fmt.Errorf("%w: state expired", domain.ErrInvalidState)
	}
	if claims.SessionID == "" || !claims.Provider.Valid() {
		return nil, fmt.Errorf("%w: incomplete state", domain.ErrInvalidState)
	}

	return &LinkState{
		TenantID:      claims.TenantID,
		Provider:      claims.Provider,
		SessionID:     claims.SessionID,
		DefaultConfig: claims.DefaultConfig,
		ExpiresAt:     claims.ExpiresAt.Time,
	}, nil
}

func mapStateError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: signature invalid", domain.ErrInvalidState)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: malformed", domain.ErrInvalidState)
	default:
		return fmt.Errorf("%w: %v", domain.ErrInvalidState, err)
	}
}
