// Package token issues and verifies stateless draft-access tokens.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/platewise/extraction-engine/internal/domain"
)

// KindDraftAccess is the discriminator claim value. Verification rejects any
// token carrying a different kind, even with a valid signature, so tokens
// minted for another purpose cannot be replayed against drafts.
const KindDraftAccess = "draft-access"

// DefaultTTL mirrors the draft TTL so a live token always references an
// unswept draft.
const DefaultTTL = time.Hour

// Claims are the signed contents of a draft-access token.
type Claims struct {
	OwnerID string `json:"owner_id"`
	Kind    string `json:"kind"`
	jwt.RegisteredClaims
}

// Verified is the result of a successful token verification. Possession of a
// verified token is necessary but not sufficient: consumers must re-fetch the
// referenced draft and confirm it still exists under the claimed owner.
type Verified struct {
	DraftID   uuid.UUID
	OwnerID   uuid.UUID
	ExpiresAt time.Time
}

// Issuer signs and verifies draft-access tokens with a shared HMAC secret.
// Verification is stateless; no store lookup is needed to validate the
// signature.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer creates an issuer. A zero ttl falls back to DefaultTTL.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl}, nil
}

// Issue mints a token binding draftID to ownerID for the issuer's TTL.
func (i *Issuer) Issue(draftID, ownerID uuid.UUID) (string, error) {
	return i.IssueWithTTL(draftID, ownerID, i.ttl)
}

// IssueWithTTL mints a token with an explicit TTL. Callers should keep it
// equal to or shorter than the draft TTL.
func (i *Issuer) IssueWithTTL(draftID, ownerID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		OwnerID: ownerID.String(),
		Kind:    KindDraftAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   draftID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign draft token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry, and the discriminator claim, in that
// order, failing closed on any mismatch.
func (i *Issuer) Verify(tokenString string) (*Verified, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, domain.Unauthorized("invalid or expired draft token")
	}

	if claims.Kind != KindDraftAccess {
		return nil, domain.Unauthorized("token is not a draft-access token")
	}
	if claims.ExpiresAt == nil {
		return nil, domain.Unauthorized("token has no expiry")
	}

	draftID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, domain.Unauthorized("malformed draft id claim")
	}
	ownerID, err := uuid.Parse(claims.OwnerID)
	if err != nil {
		return nil, domain.Unauthorized("malformed owner id claim")
	}

	return &Verified{
		DraftID:   draftID,
		OwnerID:   ownerID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
