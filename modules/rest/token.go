package rest

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// TokenExpired inspects the bearer token's exp claim without verifying
// the signature; the server is the verifier, we only decide whether a
// refresh is due. Unreadable tokens count as expired.
func (c *Client) TokenExpired(now time.Time) bool {
	token := c.Token()
	if token == "" {
		return true
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}

	return !claims.VerifyExpiresAt(now.Unix(), false)
}

// EnsureToken refreshes the bearer token when it is missing or expired.
func (c *Client) EnsureToken(ctx context.Context, identity, password string) error {
	if !c.TokenExpired(time.Now()) {
		return nil
	}

	return c.Authenticate(ctx, identity, password)
}
