// Client for the legacy single-endpoint RPC protocol. Two fallback axes
// are kept orthogonal: transport failures walk the candidate URLs, and
// method-not-found answers walk the per-operation candidate method names.
package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/untis"
	"github.com/google/uuid"
)

type Client struct {
	HTTP       *http.Client
	URLs       []string // candidate endpoints of the classic servlet
	InternURLs []string // candidate endpoints of the 2017-era servlet
	School     string
	Identity   string
	ClientName string

	// LastMethod is the method name that produced the latest successful
	// fallback-chain call.
	LastMethod string

	session   *Session
	appSecret string
}

// Session is the result of a classic authenticate call.
type Session struct {
	SessionID  string
	PersonType int64
	PersonID   int64
	KlasseID   int64
}

func NewClient(server, school, clientName string) *Client {
	return &Client{
		HTTP:       &http.Client{Timeout: 30 * time.Second},
		URLs:       untis.RPCURLs(server, school),
		InternURLs: untis.InternRPCURLs(server, school),
		School:     school,
		ClientName: clientName,
	}
}

type rpcRequest struct {
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	JSONRPC string `json:"jsonrpc"`
}

// Call issues one method call against the classic servlet.
func (c *Client) Call(ctx context.Context, method string, params any) (any, error) {
	return c.call(ctx, c.URLs, method, params)
}

// CallIntern issues one method call against the 2017-era servlet.
func (c *Client) CallIntern(ctx context.Context, method string, params any) (any, error) {
	return c.call(ctx, c.InternURLs, method, params)
}

// CallAuto routes the method to the servlet it belongs to.
func (c *Client) CallAuto(ctx context.Context, method string, params any) (any, error) {
	if IsInternMethod(method) {
		return c.CallIntern(ctx, method, params)
	}

	return c.Call(ctx, method, params)
}

func (c *Client) call(ctx context.Context, urls []string, method string, params any) (any, error) {
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(rpcRequest{
		ID:      uuid.NewString(),
		Method:  method,
		Params:  params,
		JSONRPC: "2.0",
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}
	var lastErr error
	for _, u := range urls {
		result, err := c.post(ctx, u, body)
		if err != nil {
			if untis.IsTransport(err) {
				lastErr = err
				continue
			}

			return nil, err
		}

		return result, nil
	}
	if lastErr == nil {
		lastErr = &untis.TransportError{URL: "", Err: errors.New("no endpoint configured")}
	}

	return nil, lastErr
}

func (c *Client) post(ctx context.Context, u string, body []byte) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Add("Content-Type", "application/json")
	if c.ClientName != "" {
		req.Header.Add("User-Agent", c.ClientName)
	}
	if c.session != nil && c.session.SessionID != "" {
		req.AddCookie(&http.Cookie{Name: "JSESSIONID", Value: c.session.SessionID})
		req.AddCookie(&http.Cookie{Name: "schoolname", Value: c.School})
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &untis.TransportError{URL: u, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &untis.TransportError{URL: u, Err: fmt.Errorf("response %s", resp.Status)}
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &untis.TransportError{URL: u, Err: err}
	}

	decoded, err := untis.DecodeRaw(raw)
	if err != nil {
		return nil, err
	}
	envelope, ok := untis.AsObject(decoded)
	if !ok {
		return nil, &untis.DecodeError{What: "rpc envelope", Err: errors.New("response is not an object")}
	}
	if errObj, ok := envelope.Object("error"); ok {
		code, _ := errObj.Int64("code")
		message, _ := errObj.String("message")

		return nil, &untis.ServerError{Code: code, Message: message}
	}
	result, ok := envelope["result"]
	if !ok {
		return nil, &untis.DecodeError{What: "rpc envelope", Err: errors.New("neither result nor error present")}
	}

	return result, nil
}

// CallFirst walks the candidate methods strictly in declared order. Only a
// method-not-found answer moves on to the next name; any other error stops
// the chain and surfaces unmasked. Running out of candidates yields
// ErrNoMethodLeft, which read operations translate to an empty result.
func (c *Client) CallFirst(ctx context.Context, methods []string, params func(method string) any) (any, string, error) {
	for _, method := range methods {
		result, err := c.CallAuto(ctx, method, params(method))
		if err != nil {
			var se *untis.ServerError
			if errors.As(err, &se) && se.IsMethodNotFound() {
				continue
			}

			return nil, method, err
		}
		c.LastMethod = method

		return result, method, nil
	}

	return nil, "", untis.ErrNoMethodLeft
}
