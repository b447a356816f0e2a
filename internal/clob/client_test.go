package clob

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const testPK = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestClobAuthSignatureRecoversSigner(t *testing.T) {
	t.Parallel()

	pk, err := crypto.HexToECDSA(testPK)
	if err != nil {
		t.Fatal(err)
	}
	signer := crypto.PubkeyToAddress(pk.PublicKey)

	sigHex, err := signClobAuth(pk, 137, 1700000000, 0)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !strings.HasPrefix(sigHex, "0x") {
		t.Fatalf("signature should be 0x-prefixed: %q", sigHex)
	}
	raw := common.FromHex(sigHex)
	if len(raw) != 65 || (raw[64] != 27 && raw[64] != 28) {
		t.Fatalf("unexpected signature shape: len=%d v=%d", len(raw), raw[64])
	}
	raw[64] -= 27

	digest, err := clobAuthDigest(signer, 137, 1700000000, 0)
	if err != nil {
		t.Fatal(err)
	}
	pub, err := crypto.SigToPub(digest.Bytes(), raw)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got := crypto.PubkeyToAddress(*pub); got != signer {
		t.Fatalf("recovered %s want %s", got.Hex(), signer.Hex())
	}

	other, err := clobAuthDigest(signer, 80002, 1700000000, 0)
	if err != nil {
		t.Fatal(err)
	}
	if other == digest {
		t.Fatalf("digest must depend on chain id")
	}
}

func TestGetServerTime(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/time" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("1700000000"))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/", 137, nil, ApiKeyCreds{})
	if err != nil {
		t.Fatal(err)
	}
	ts, err := c.GetServerTime(context.Background())
	if err != nil {
		t.Fatalf("GetServerTime: %v", err)
	}
	if ts != 1700000000 {
		t.Fatalf("got %d", ts)
	}
}

func TestListApiKeys(t *testing.T) {
	t.Parallel()

	pk, err := crypto.HexToECDSA(testPK)
	if err != nil {
		t.Fatal(err)
	}
	creds := ApiKeyCreds{Key: "k-1", Secret: testSecret, Passphrase: "pass"}

	for _, body := range []string{`{"apiKeys":["k-1","k-2"]}`, `["k-1","k-2"]`} {
		body := body
		t.Run(body[:1], func(t *testing.T) {
			t.Parallel()
			var gotHeaders http.Header
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotHeaders = r.Header.Clone()
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			c, err := NewClient(srv.URL, 137, pk, creds)
			if err != nil {
				t.Fatal(err)
			}
			c.now = func() time.Time { return time.Unix(1000000, 0) }

			keys, err := c.ListApiKeys(context.Background())
			if err != nil {
				t.Fatalf("ListApiKeys: %v", err)
			}
			if len(keys) != 2 || keys[0] != "k-1" {
				t.Fatalf("keys: %v", keys)
			}
			if gotHeaders.Get("POLY_API_KEY") != "k-1" || gotHeaders.Get("POLY_PASSPHRASE") != "pass" {
				t.Fatalf("missing L2 headers: %v", gotHeaders)
			}
			if gotHeaders.Get("POLY_TIMESTAMP") != "1000000" {
				t.Fatalf("timestamp header: %q", gotHeaders.Get("POLY_TIMESTAMP"))
			}
			want, _ := signL2(testSecret, 1000000, http.MethodGet, "/auth/api-keys", nil)
			if gotHeaders.Get("POLY_SIGNATURE") != want {
				t.Fatalf("signature header: %q want %q", gotHeaders.Get("POLY_SIGNATURE"), want)
			}
			if gotHeaders.Get("POLY_ADDRESS") != c.SignerAddress().Hex() {
				t.Fatalf("address header: %q", gotHeaders.Get("POLY_ADDRESS"))
			}
		})
	}
}

func TestListApiKeys_Unauthorized(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Unauthorized/Invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	pk, _ := crypto.HexToECDSA(testPK)
	c, err := NewClient(srv.URL, 137, pk, ApiKeyCreds{Key: "k", Secret: testSecret, Passphrase: "p"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.ListApiKeys(context.Background())
	var se *StatusError
	if !errors.As(err, &se) || !se.Unauthorized() {
		t.Fatalf("expected unauthorized StatusError, got %v", err)
	}
}

func TestDeriveApiKey(t *testing.T) {
	t.Parallel()

	pk, _ := crypto.HexToECDSA(testPK)
	signer := crypto.PubkeyToAddress(pk.PublicKey)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/time":
			_, _ = w.Write([]byte("1700000000"))
		case "/auth/derive-api-key":
			if r.Header.Get("POLY_ADDRESS") != signer.Hex() || r.Header.Get("POLY_NONCE") != "0" {
				http.Error(w, "bad headers", http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(`{"apiKey":"key","secret":"sec","passphrase":"pp"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, 137, pk, ApiKeyCreds{})
	if err != nil {
		t.Fatal(err)
	}
	creds, err := c.DeriveApiKey(context.Background(), 0)
	if err != nil {
		t.Fatalf("DeriveApiKey: %v", err)
	}
	if creds != (ApiKeyCreds{Key: "key", Secret: "sec", Passphrase: "pp"}) {
		t.Fatalf("creds: %+v", creds)
	}
}

func TestNewClient_RejectsBadHost(t *testing.T) {
	t.Parallel()
	if _, err := NewClient("ftp://example.com", 137, nil, ApiKeyCreds{}); err == nil {
		t.Fatalf("expected error")
	}
	c, err := NewClient("  ", 137, nil, ApiKeyCreds{})
	if err != nil || c.Host() != DefaultHost {
		t.Fatalf("blank host should default: %v %v", c, err)
	}
}
