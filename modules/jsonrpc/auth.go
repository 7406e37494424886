package jsonrpc

import (
	"context"
	"errors"
	"time"

	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/untis"
)

// Authenticate opens a classic session and, where the server knows app
// secrets, upgrades to otp-signed calls for the 2017-era methods. Servers
// without the secret method stay on the plain session.
func (c *Client) Authenticate(ctx context.Context, identity, password string) (*Session, error) {
	c.Identity = identity
	result, err := c.Call(ctx, "authenticate", []any{map[string]any{
		"user":     identity,
		"password": password,
		"client":   c.ClientName,
	}})
	if err != nil {
		return nil, err
	}
	obj, ok := untis.AsObject(result)
	if !ok {
		return nil, &untis.DecodeError{What: "authenticate result", Err: errors.New("not an object")}
	}
	session := &Session{}
	session.SessionID, _ = obj.String("sessionId")
	session.PersonType, _ = obj.Int64("personType")
	session.PersonID, _ = obj.Int64("personId")
	session.KlasseID, _ = obj.Int64("klasseId")
	if session.SessionID == "" {
		return nil, &untis.DecodeError{What: "authenticate result", Err: errors.New("no session id")}
	}
	c.session = session

	if err := c.AcquireAppSecret(ctx, identity, password); err != nil {
		var se *untis.ServerError
		if (errors.As(err, &se) && se.IsMethodNotFound()) || untis.IsTransport(err) {
			return session, nil
		}

		return nil, err
	}

	return session, nil
}

// AcquireAppSecret asks for the shared secret that signs the otp of every
// 2017-era call.
func (c *Client) AcquireAppSecret(ctx context.Context, identity, password string) error {
	result, err := c.CallIntern(ctx, "getAppSharedSecret", []any{map[string]any{
		"userName": identity,
		"password": password,
	}})
	if err != nil {
		return err
	}
	secret, ok := untis.StringFrom(result)
	if !ok || secret == "" {
		return &untis.DecodeError{What: "app shared secret", Err: errors.New("result is not a string")}
	}
	c.appSecret = secret

	return nil
}

// Restore rebuilds client state from persisted credentials, skipping the
// network round trips.
func (c *Client) Restore(creds untis.Credentials) {
	c.Identity = creds.Identity
	c.appSecret = creds.AppSecret
	if creds.PersonID != 0 || creds.KlasseID != 0 {
		c.session = &Session{
			PersonID:   creds.PersonID,
			PersonType: creds.PersonType,
			KlasseID:   creds.KlasseID,
		}
	}
}

// Logout closes the classic session; errors are reported but the local
// state is dropped either way.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.Call(ctx, "logout", []any{})
	c.session = nil
	c.appSecret = ""

	return err
}

func (c *Client) Session() *Session { return c.session }

func (c *Client) AppSecret() string { return c.appSecret }

func (c *Client) Authenticated() bool {
	return c.appSecret != "" || (c.session != nil && c.session.SessionID != "")
}

// authParams builds the auth block every 2017-era method expects.
func (c *Client) authParams(now time.Time) map[string]any {
	return map[string]any{
		"user":       c.Identity,
		"otp":        TOTP(c.appSecret, now),
		"clientTime": now.UnixMilli(),
	}
}
