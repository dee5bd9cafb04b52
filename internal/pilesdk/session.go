package pilesdk

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Principal identifies the signed-in user behind an access token.
type Principal struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
}

func (p *Principal) Expired() bool {
	return !p.ExpiresAt.IsZero() && time.Now().After(p.ExpiresAt)
}

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// parsePrincipal extracts identity claims from an access token without
// verifying the signature. Verification happens server-side; the client only
// needs the subject and expiry to decide whether a network call is worth
// making.
func parsePrincipal(accessToken string) (*Principal, error) {
	if accessToken == "" {
		return nil, ErrNoAccessToken
	}

	var claims sessionClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(accessToken, &claims); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}

	p := &Principal{
		Subject: claims.Subject,
		Email:   claims.Email,
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}
