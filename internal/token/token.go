// Package token implements the signed claim token handed to a client when it
// starts a job. The token is opaque to the client; tampering with any of the
// embedded ids invalidates the HMAC signature.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claim identifies an in-progress assignment.
type Claim struct {
	JobID     int64
	UserID    int64
	CurrentID int64
}

type claimPayload struct {
	JobID     int64 `json:"job_id"`
	UserID    int64 `json:"user_id"`
	CurrentID int64 `json:"current_id"`
	jwt.RegisteredClaims
}

// Codec signs and verifies claim tokens.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec creates a codec. ttl bounds how long an issued token stays valid.
func NewCodec(secret string, ttl time.Duration) *Codec {
	return &Codec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Encode issues a signed, time-bound token for the claim.
func (c *Codec) Encode(claim Claim) (string, error) {
	now := c.now()
	payload := claimPayload{
		JobID:     claim.JobID,
		UserID:    claim.UserID,
		CurrentID: claim.CurrentID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)
	return t.SignedString(c.secret)
}

// Decode verifies the signature and expiry and returns the embedded claim.
func (c *Codec) Decode(tokenStr string) (Claim, error) {
	var payload claimPayload
	t, err := jwt.ParseWithClaims(tokenStr, &payload, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return c.now() }))
	if err != nil || !t.Valid {
		return Claim{}, errors.New("invalid claim token")
	}

	return Claim{
		JobID:     payload.JobID,
		UserID:    payload.UserID,
		CurrentID: payload.CurrentID,
	}, nil
}
