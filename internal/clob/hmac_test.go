package clob

import "testing"

const (
	testSecret = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="
	testSig    = "ZwAdJKvoYRlEKDkNMwd5BuwNNtg93kNaR_oU2HrfVvc="
)

func TestSignL2(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		secret string
	}{
		{"standard", testSecret},
		{"stray symbols dropped", "AAAAAAAAA^^AAAAAAAA<>AAAAA||AAAAAAAAAAAAAAAAAAAAA="},
		{"missing padding", "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			sig, err := signL2(tc.secret, 1000000, "test-sign", "/orders", []byte(`{"hash": "0x123"}`))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sig != testSig {
				t.Fatalf("signature mismatch: got %q want %q", sig, testSig)
			}
		})
	}
}

func TestSignL2_Base64URLSecret(t *testing.T) {
	t.Parallel()

	std, err := signL2("++/AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=", 1000000, "GET", "/auth/api-keys", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	url, err := signL2("--_AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", 1000000, "GET", "/auth/api-keys", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if std != url {
		t.Fatalf("expected base64url and base64 to match: %q vs %q", url, std)
	}
}

func TestDecodeSecret(t *testing.T) {
	t.Parallel()

	key, err := DecodeSecret(testSecret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(key) != 32 {
		t.Fatalf("key length: got %d want 32", len(key))
	}
	for _, bad := range []string{"", "   ", "^^^^"} {
		if _, err := DecodeSecret(bad); err == nil {
			t.Fatalf("DecodeSecret(%q): expected error", bad)
		}
	}
}
