// Package polygonutil holds the Polygon RPC and contract lookups the doctor
// command runs against the configured account.
package polygonutil

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const (
	PolygonChainID = 137

	// USDCTokenDecimals is the collateral token's decimal places.
	USDCTokenDecimals = 6
	usdcUnit          = 1_000_000
)

var (
	erc20BalanceOfSelector = crypto.Keccak256([]byte("balanceOf(address)"))[:4]
	erc20AllowanceSelector = crypto.Keccak256([]byte("allowance(address,address)"))[:4]
)

// ValidateRPCURL accepts http(s) and ws(s) endpoints and rejects the
// template placeholder.
func ValidateRPCURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("polygon RPC URL missing")
	}
	if strings.Contains(raw, "YOUR_KEY") {
		return fmt.Errorf("polygon RPC URL still contains placeholder YOUR_KEY")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("polygon RPC URL: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("polygon RPC URL must be http(s):// or ws(s)://, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("polygon RPC URL has no host: %q", raw)
	}
	return nil
}

// RPCStatus is what a single round of probe calls learned about the node and
// the account.
type RPCStatus struct {
	ChainID       int64
	BlockNumber   uint64
	Collateral    common.Address
	BalanceMicros uint64
	// Allowances saturate at MaxUint64; unlimited approvals are common.
	Allowances map[common.Address]uint64
}

// ProbeRPC dials rpcURL, reads the chain id and head, then the owner's
// collateral balance and its allowance for each spender.
func ProbeRPC(ctx context.Context, rpcURL string, owner, token common.Address, spenders []common.Address) (RPCStatus, error) {
	if err := ValidateRPCURL(rpcURL); err != nil {
		return RPCStatus{}, err
	}
	if (owner == common.Address{}) {
		return RPCStatus{}, fmt.Errorf("owner address missing")
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return RPCStatus{}, fmt.Errorf("dial polygon RPC: %w", err)
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return RPCStatus{}, fmt.Errorf("eth_chainId: %w", err)
	}
	head, err := client.BlockNumber(ctx)
	if err != nil {
		return RPCStatus{}, fmt.Errorf("eth_blockNumber: %w", err)
	}
	st := RPCStatus{ChainID: chainID.Int64(), BlockNumber: head, Collateral: token}

	callUint256 := func(data []byte) (*big.Int, error) {
		out, err := client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
		if err != nil {
			return nil, err
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("empty result")
		}
		return new(big.Int).SetBytes(out), nil
	}

	bal, err := callUint256(packAddressCall(erc20BalanceOfSelector, owner))
	if err != nil {
		return st, fmt.Errorf("balanceOf(%s): %w", owner.Hex(), err)
	}
	if !bal.IsUint64() {
		return st, fmt.Errorf("collateral balance overflows uint64")
	}
	st.BalanceMicros = bal.Uint64()

	st.Allowances = make(map[common.Address]uint64, len(spenders))
	for _, sp := range spenders {
		if _, ok := st.Allowances[sp]; ok || (sp == common.Address{}) {
			continue
		}
		a, err := callUint256(packAddressCall(erc20AllowanceSelector, owner, sp))
		if err != nil {
			return st, fmt.Errorf("allowance(%s,%s): %w", owner.Hex(), sp.Hex(), err)
		}
		st.Allowances[sp] = saturateUint64(a)
	}
	return st, nil
}

func packAddressCall(selector []byte, addrs ...common.Address) []byte {
	data := make([]byte, 0, 4+32*len(addrs))
	data = append(data, selector...)
	for _, a := range addrs {
		data = append(data, common.LeftPadBytes(a.Bytes(), 32)...)
	}
	return data
}

func saturateUint64(x *big.Int) uint64 {
	if x == nil || x.Sign() <= 0 {
		return 0
	}
	if x.IsUint64() {
		return x.Uint64()
	}
	return math.MaxUint64
}

// USDToMicros converts a dollar amount to collateral base units, clamping
// to the uint64 range. NaN and non-positive amounts are zero.
func USDToMicros(usd float64) uint64 {
	if math.IsNaN(usd) || usd <= 0 {
		return 0
	}
	m := math.Round(usd * usdcUnit)
	if m >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(m)
}

// FormatMicros renders a base-unit amount with USDCTokenDecimals places,
// "unlimited" at saturation.
func FormatMicros(v uint64) string {
	if v == math.MaxUint64 {
		return "unlimited"
	}
	return fmt.Sprintf("%d.%0*d", v/usdcUnit, USDCTokenDecimals, v%usdcUnit)
}
