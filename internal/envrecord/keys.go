// Package envrecord reads and checks the KEY=VALUE environment file the
// trading bot consumes.
package envrecord

const (
	KeyPrivateKey    = "PK"
	KeyAPIKey        = "CLOB_API_KEY"
	KeySecret        = "CLOB_SECRET"
	KeyPassphrase    = "CLOB_PASS_PHRASE"
	KeyAPIURL        = "CLOB_API_URL"
	KeyChainID       = "CHAIN_ID"
	KeySignatureType = "SIGNATURE_TYPE"
	KeyFunder        = "FUNDER"
	KeyBotToken      = "BOT_TOKEN"
	KeyChatID        = "CHAT_ID"
	KeyRPCURL        = "RPC_URL"
	KeyNegRisk       = "IS_NEG_RISK_MARKET"
	KeyAmountUSD     = "AMOUNT_USD"
	KeyAddress       = "ADDRESS"
)

type Key struct {
	Name        string
	Required    bool
	Default     string
	Placeholder string
	Description string
}

// Keys is the documented key set, in template order.
var Keys = []Key{
	{Name: KeyPrivateKey, Required: true, Placeholder: "your_private_key_here", Description: "Wallet private key (hex, 0x optional)"},
	{Name: KeyAPIKey, Required: true, Placeholder: "your_api_key_here", Description: "CLOB API key"},
	{Name: KeySecret, Required: true, Placeholder: "your_api_secret_here", Description: "CLOB API secret (base64)"},
	{Name: KeyPassphrase, Required: true, Placeholder: "your_api_passphrase_here", Description: "CLOB API passphrase"},
	{Name: KeyAPIURL, Default: "https://clob.polymarket.com", Description: "CLOB endpoint"},
	{Name: KeyChainID, Default: "137", Description: "Chain id (137 Polygon mainnet)"},
	{Name: KeySignatureType, Description: "0 EOA, 1 email/magic proxy, 2 browser proxy"},
	{Name: KeyFunder, Description: "Proxy wallet holding funds (for signature types 1 and 2)"},
	{Name: KeyBotToken, Description: "Telegram bot token (optional)"},
	{Name: KeyChatID, Description: "Telegram chat id (optional)"},
	{Name: KeyRPCURL, Placeholder: "https://polygon-mainnet.g.alchemy.com/v2/YOUR_KEY", Description: "Polygon RPC endpoint"},
	{Name: KeyNegRisk, Default: "true", Description: "Target market uses the neg-risk exchange"},
	{Name: KeyAmountUSD, Default: "5", Description: "Default trade size in USD"},
	{Name: KeyAddress, Description: "Wallet address used by the split tools"},
}

func lookupKey(name string) (Key, bool) {
	for _, k := range Keys {
		if k.Name == name {
			return k, true
		}
	}
	return Key{}, false
}
