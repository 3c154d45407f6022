package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("missing party token")
)

// PartyClaims identifies a negotiating party to the session host.
type PartyClaims struct {
	PartyID   string `json:"party_id"`
	SessionID string `json:"session_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates party tokens signed with a shared secret.
type TokenManager struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewTokenManager creates a TokenManager with the given secret. Tokens live
// for one hour.
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		expiry: time.Hour,
		now:    time.Now,
	}
}

// IssueToken creates a token for party. An empty sessionID lets the host
// assign the party to any session.
func (m *TokenManager) IssueToken(partyID, sessionID string) (string, error) {
	now := m.now()
	claims := &PartyClaims{
		PartyID:   partyID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   partyID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken parses and validates a token string, returning the claims.
func (m *TokenManager) ValidateToken(tokenStr string) (*PartyClaims, error) {
	if tokenStr == "" {
		return nil, ErrMissingToken
	}
	token, err := jwt.ParseWithClaims(tokenStr, &PartyClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*PartyClaims)
	if !ok || !token.Valid || claims.PartyID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
