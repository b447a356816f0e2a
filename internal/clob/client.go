// Package clob is the small slice of the Polymarket CLOB API the preflight
// checks need: server time, L1 key derivation and an L2 authenticated call.
package clob

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const DefaultHost = "https://clob.polymarket.com"

type ApiKeyCreds struct {
	Key        string `json:"key"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

func (c ApiKeyCreds) Complete() bool {
	return c.Key != "" && c.Secret != "" && c.Passphrase != ""
}

type apiKeyRaw struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

type Client struct {
	host       string
	httpClient *http.Client
	chainID    int64
	privateKey *ecdsa.PrivateKey
	signer     common.Address
	creds      ApiKeyCreds
	now        func() time.Time
}

// NewClient builds a client for host (DefaultHost when blank). privateKey may
// be nil when only unauthenticated calls are made.
func NewClient(host string, chainID int64, privateKey *ecdsa.PrivateKey, creds ApiKeyCreds) (*Client, error) {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		host = DefaultHost
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		return nil, fmt.Errorf("clob host must be http(s), got %q", host)
	}
	c := &Client{
		host:       host,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		chainID:    chainID,
		privateKey: privateKey,
		creds:      creds,
		now:        time.Now,
	}
	if privateKey != nil {
		c.signer = crypto.PubkeyToAddress(privateKey.PublicKey)
	}
	return c, nil
}

func (c *Client) Host() string                  { return c.host }
func (c *Client) SignerAddress() common.Address { return c.signer }

func (c *Client) GetServerTime(ctx context.Context) (int64, error) {
	var ts int64
	if err := c.doJSON(ctx, http.MethodGet, "/time", nil, &ts); err != nil {
		return 0, err
	}
	return ts, nil
}

// DeriveApiKey asks the server for the credentials bound to the signer and nonce.
func (c *Client) DeriveApiKey(ctx context.Context, nonce uint64) (ApiKeyCreds, error) {
	if c.privateKey == nil {
		return ApiKeyCreds{}, fmt.Errorf("private key required to derive api key")
	}
	ts, err := c.GetServerTime(ctx)
	if err != nil {
		return ApiKeyCreds{}, fmt.Errorf("server time: %w", err)
	}
	sig, err := signClobAuth(c.privateKey, c.chainID, ts, nonce)
	if err != nil {
		return ApiKeyCreds{}, err
	}
	h := make(http.Header)
	h.Set("POLY_ADDRESS", c.signer.Hex())
	h.Set("POLY_SIGNATURE", sig)
	h.Set("POLY_TIMESTAMP", strconv.FormatInt(ts, 10))
	h.Set("POLY_NONCE", strconv.FormatUint(nonce, 10))

	var resp apiKeyRaw
	if err := c.doJSON(ctx, http.MethodGet, "/auth/derive-api-key", h, &resp); err != nil {
		return ApiKeyCreds{}, err
	}
	return ApiKeyCreds{Key: resp.APIKey, Secret: resp.Secret, Passphrase: resp.Passphrase}, nil
}

// ListApiKeys performs an L2 (HMAC) authenticated request, which only succeeds
// when key, secret and passphrase belong together and to the signer.
func (c *Client) ListApiKeys(ctx context.Context) ([]string, error) {
	const path = "/auth/api-keys"
	if !c.creds.Complete() {
		return nil, fmt.Errorf("api creds incomplete")
	}
	h, err := c.l2Headers(c.now().Unix(), http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, path, h, &raw); err != nil {
		return nil, err
	}
	return decodeKeyList(raw)
}

// decodeKeyList accepts either {"apiKeys": [...]} or a bare array.
func decodeKeyList(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var keys []string
		if err := json.Unmarshal(raw, &keys); err != nil {
			return nil, fmt.Errorf("decode api keys: %w", err)
		}
		return keys, nil
	}
	var wrapped struct {
		APIKeys []string `json:"apiKeys"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode api keys: %w", err)
	}
	return wrapped.APIKeys, nil
}

func (c *Client) l2Headers(timestamp int64, method, requestPath string, body []byte) (http.Header, error) {
	sig, err := signL2(c.creds.Secret, timestamp, method, requestPath, body)
	if err != nil {
		return nil, err
	}
	h := make(http.Header)
	h.Set("POLY_ADDRESS", c.signer.Hex())
	h.Set("POLY_SIGNATURE", sig)
	h.Set("POLY_TIMESTAMP", strconv.FormatInt(timestamp, 10))
	h.Set("POLY_API_KEY", c.creds.Key)
	h.Set("POLY_PASSPHRASE", c.creds.Passphrase)
	return h, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, headers http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.host+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode %s response: %w (body=%s)", path, err, strings.TrimSpace(string(b)))
	}
	return nil
}

type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("clob %s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Unauthorized reports a rejected credential rather than an outage.
func (e *StatusError) Unauthorized() bool {
	return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden
}
