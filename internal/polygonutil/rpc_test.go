package polygonutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	testOwner   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testToken   = common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")
	testSpender = common.HexToAddress("0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E")
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// fakeNode answers the handful of JSON-RPC methods ProbeRPC uses.
func fakeNode(t *testing.T, balance *big.Int, allowance *big.Int) *httptest.Server {
	t.Helper()
	word := func(x *big.Int) string {
		return fmt.Sprintf("0x%064x", x)
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var result any
		switch req.Method {
		case "eth_chainId":
			result = "0x89"
		case "eth_blockNumber":
			result = "0x3e8"
		case "eth_call":
			var call struct {
				Input string `json:"input"`
				Data  string `json:"data"`
			}
			_ = json.Unmarshal(req.Params[0], &call)
			input := call.Input
			if input == "" {
				input = call.Data
			}
			switch {
			case strings.HasPrefix(input, "0x"+common.Bytes2Hex(erc20BalanceOfSelector)):
				result = word(balance)
			case strings.HasPrefix(input, "0x"+common.Bytes2Hex(erc20AllowanceSelector)):
				result = word(allowance)
			default:
				result = "0x"
			}
		default:
			w.Header().Set("Content-Type", "application/json")
			_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":-32601,"message":"method not found"}}`, req.ID)
			return
		}
		resp, _ := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(resp)
	}))
}

func TestProbeRPC(t *testing.T) {
	t.Parallel()

	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	srv := fakeNode(t, big.NewInt(12_345_678), maxUint256)
	defer srv.Close()

	st, err := ProbeRPC(context.Background(), srv.URL, testOwner, testToken, []common.Address{testSpender, testSpender, {}})
	if err != nil {
		t.Fatalf("ProbeRPC: %v", err)
	}
	if st.ChainID != PolygonChainID {
		t.Fatalf("chain id: got %d", st.ChainID)
	}
	if st.BlockNumber != 1000 {
		t.Fatalf("block: got %d", st.BlockNumber)
	}
	if st.BalanceMicros != 12_345_678 {
		t.Fatalf("balance: got %d", st.BalanceMicros)
	}
	if len(st.Allowances) != 1 || st.Allowances[testSpender] != math.MaxUint64 {
		t.Fatalf("allowances: %v", st.Allowances)
	}
}

func TestProbeRPC_RejectsBadInput(t *testing.T) {
	t.Parallel()

	if _, err := ProbeRPC(context.Background(), "https://polygon-mainnet.example/v2/YOUR_KEY", testOwner, testToken, nil); err == nil {
		t.Fatalf("expected placeholder error")
	}
	if _, err := ProbeRPC(context.Background(), "https://rpc.example", common.Address{}, testToken, nil); err == nil {
		t.Fatalf("expected owner error")
	}
}

func TestValidateRPCURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in     string
		wantOK bool
	}{
		{"https://polygon-rpc.com", true},
		{"wss://polygon-mainnet.g.alchemy.com/v2/abc", true},
		{"http://127.0.0.1:8545", true},
		{"", false},
		{"polygon-rpc.com", false},
		{"ftp://polygon-rpc.com", false},
		{"https://polygon-mainnet.g.alchemy.com/v2/YOUR_KEY", false},
		{"https://", false},
	}
	for _, tc := range cases {
		err := ValidateRPCURL(tc.in)
		if (err == nil) != tc.wantOK {
			t.Fatalf("ValidateRPCURL(%q): err=%v wantOK=%v", tc.in, err, tc.wantOK)
		}
	}
}

func TestSaturateUint64(t *testing.T) {
	t.Parallel()

	over := new(big.Int).Add(new(big.Int).SetUint64(math.MaxUint64), big.NewInt(1))
	cases := []struct {
		name string
		in   *big.Int
		want uint64
	}{
		{"nil", nil, 0},
		{"negative", big.NewInt(-1), 0},
		{"fits", big.NewInt(42), 42},
		{"overflow", over, math.MaxUint64},
	}
	for _, tc := range cases {
		if got := saturateUint64(tc.in); got != tc.want {
			t.Fatalf("%s: got %d want %d", tc.name, got, tc.want)
		}
	}
}

func TestFormatMicros(t *testing.T) {
	t.Parallel()

	if got := FormatMicros(5_000_000); got != "5.000000" {
		t.Fatalf("got %q", got)
	}
	if got := FormatMicros(1_234); got != "0.001234" {
		t.Fatalf("got %q", got)
	}
	if got := FormatMicros(math.MaxUint64); got != "unlimited" {
		t.Fatalf("got %q", got)
	}
}

func TestUSDToMicros(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   float64
		want uint64
	}{
		{"five", 5, 5_000_000},
		{"cents", 0.1, 100_000},
		{"zero", 0, 0},
		{"negative", -3, 0},
		{"nan", math.NaN(), 0},
		{"huge", 1e30, math.MaxUint64},
		{"inf", math.Inf(1), math.MaxUint64},
	}
	for _, tc := range cases {
		if got := USDToMicros(tc.in); got != tc.want {
			t.Fatalf("%s: got %d want %d", tc.name, got, tc.want)
		}
	}
}

func TestPackAddressCall(t *testing.T) {
	t.Parallel()

	data := packAddressCall(erc20AllowanceSelector, testOwner, testSpender)
	if len(data) != 4+64 {
		t.Fatalf("len: %d", len(data))
	}
	if !bytes.Equal(data[4+12:4+32], testOwner.Bytes()) {
		t.Fatalf("owner not left-padded into first word")
	}
}

func TestContractsFor(t *testing.T) {
	t.Parallel()

	c, err := ContractsFor(PolygonChainID)
	if err != nil {
		t.Fatalf("ContractsFor: %v", err)
	}
	if c.Collateral != testToken {
		t.Fatalf("collateral: got %s", c.Collateral.Hex())
	}
	if got := c.Spenders(false); len(got) != 1 || got[0] != c.Exchange {
		t.Fatalf("spenders: %v", got)
	}
	if got := c.Spenders(true); len(got) != 2 {
		t.Fatalf("neg-risk spenders: %v", got)
	}
	if _, err := ContractsFor(1); err == nil {
		t.Fatalf("expected error for unsupported chain")
	}
}
