package envrecord

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-playground/validator/v10"

	"poly-bootstrap/internal/clob"
	"poly-bootstrap/internal/polygonutil"
)

var ErrMissingRequired = errors.New("missing required environment keys")

// MaxAmountUSD bounds AMOUNT_USD so its USDC base-unit value fits a uint64.
const MaxAmountUSD = 1_000_000

// MissingKeysError names every absent required key, in declared order.
type MissingKeysError struct {
	Keys []string
}

func (e *MissingKeysError) Error() string {
	return "missing required environment keys: " + strings.Join(e.Keys, ", ")
}

func (e *MissingKeysError) Is(target error) bool { return target == ErrMissingRequired }

type Problem struct {
	Key     string
	Message string
	Warning bool
}

func (p Problem) String() string { return p.Key + ": " + p.Message }

// InvalidValuesError carries the non-warning problems found after all
// required keys were present.
type InvalidValuesError struct {
	Problems []Problem
}

func (e *InvalidValuesError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.String())
	}
	return "invalid environment values: " + strings.Join(parts, "; ")
}

// Settings is the typed record, populated only when Check finds no errors.
type Settings struct {
	PrivateKey    *ecdsa.PrivateKey
	Signer        common.Address
	Funder        common.Address
	Address       common.Address
	Creds         clob.ApiKeyCreds
	ClobURL       string
	ChainID       int64
	SignatureType int
	RPCURL        string
	NegRisk       bool
	AmountUSD     float64
	BotToken      string
	ChatID        string
}

// Owner is the address that holds collateral: FUNDER when set, else the signer.
func (s *Settings) Owner() common.Address {
	if (s.Funder != common.Address{}) {
		return s.Funder
	}
	return s.Signer
}

type CheckResult struct {
	Missing  []string
	Problems []Problem
	Settings *Settings
}

func (c CheckResult) Warnings() []Problem {
	var out []Problem
	for _, p := range c.Problems {
		if p.Warning {
			out = append(out, p)
		}
	}
	return out
}

// Err is nil when the record is usable; warnings do not count.
func (c CheckResult) Err() error {
	if len(c.Missing) > 0 {
		return &MissingKeysError{Keys: append([]string(nil), c.Missing...)}
	}
	var bad []Problem
	for _, p := range c.Problems {
		if !p.Warning {
			bad = append(bad, p)
		}
	}
	if len(bad) > 0 {
		return &InvalidValuesError{Problems: bad}
	}
	return nil
}

// fields mirrors Keys; field order decides report order.
type fields struct {
	PrivateKey    string `env:"PK" validate:"required,hexadecimal"`
	APIKey        string `env:"CLOB_API_KEY" validate:"required"`
	Secret        string `env:"CLOB_SECRET" validate:"required"`
	Passphrase    string `env:"CLOB_PASS_PHRASE" validate:"required"`
	APIURL        string `env:"CLOB_API_URL" validate:"required,http_url"`
	ChainID       string `env:"CHAIN_ID" validate:"required,number"`
	SignatureType string `env:"SIGNATURE_TYPE" validate:"omitempty,oneof=0 1 2"`
	Funder        string `env:"FUNDER" validate:"omitempty,eth_addr"`
	BotToken      string `env:"BOT_TOKEN"`
	ChatID        string `env:"CHAT_ID"`
	RPCURL        string `env:"RPC_URL" validate:"omitempty,url"`
	NegRisk       string `env:"IS_NEG_RISK_MARKET" validate:"omitempty,boolean"`
	AmountUSD     string `env:"AMOUNT_USD" validate:"omitempty,numeric"`
	Address       string `env:"ADDRESS" validate:"omitempty,eth_addr"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("env")
	})
	return v
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "http_url":
		return "must be an http(s) URL"
	case "url":
		return "must be a URL"
	case "number":
		return "must be an integer"
	case "numeric":
		return "must be a number"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "eth_addr":
		return "must be a 0x-prefixed 20-byte hex address"
	case "boolean":
		return "must be true or false"
	case "hexadecimal":
		return "must be a hex private key"
	}
	return "failed " + fe.Tag()
}

// ParsePrivateKey decodes a hex secp256k1 key with or without a 0x or 0X
// prefix.
func ParsePrivateKey(raw string) (*ecdsa.PrivateKey, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 2 && raw[0] == '0' && (raw[1] == 'x' || raw[1] == 'X') {
		raw = raw[2:]
	}
	return crypto.HexToECDSA(raw)
}

// Check validates the record: first presence of every required key, then
// the format and consistency of every value that is set.
func (r *Record) Check() CheckResult {
	f := fields{
		PrivateKey:    r.Get(KeyPrivateKey),
		APIKey:        r.Get(KeyAPIKey),
		Secret:        r.Get(KeySecret),
		Passphrase:    r.Get(KeyPassphrase),
		APIURL:        r.Get(KeyAPIURL),
		ChainID:       r.Get(KeyChainID),
		SignatureType: r.Get(KeySignatureType),
		Funder:        r.Get(KeyFunder),
		BotToken:      r.Get(KeyBotToken),
		ChatID:        r.Get(KeyChatID),
		RPCURL:        r.Get(KeyRPCURL),
		NegRisk:       r.Get(KeyNegRisk),
		AmountUSD:     r.Get(KeyAmountUSD),
		Address:       r.Get(KeyAddress),
	}

	var res CheckResult
	flagged := map[string]bool{}
	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			res.Problems = append(res.Problems, Problem{Key: "record", Message: err.Error()})
			return res
		}
		for _, fe := range verrs {
			flagged[fe.Field()] = true
			if fe.Tag() == "required" {
				res.Missing = append(res.Missing, fe.Field())
				continue
			}
			res.Problems = append(res.Problems, Problem{Key: fe.Field(), Message: tagMessage(fe)})
		}
	}

	s := &Settings{
		Creds:    clob.ApiKeyCreds{Key: f.APIKey, Secret: f.Secret, Passphrase: f.Passphrase},
		ClobURL:  strings.TrimRight(f.APIURL, "/"),
		RPCURL:   f.RPCURL,
		BotToken: f.BotToken,
		ChatID:   f.ChatID,
	}
	bad := func(key, format string, args ...any) {
		res.Problems = append(res.Problems, Problem{Key: key, Message: fmt.Sprintf(format, args...)})
	}
	warn := func(key, format string, args ...any) {
		res.Problems = append(res.Problems, Problem{Key: key, Message: fmt.Sprintf(format, args...), Warning: true})
	}

	if f.PrivateKey != "" && !flagged[KeyPrivateKey] {
		pk, err := ParsePrivateKey(f.PrivateKey)
		if err != nil {
			bad(KeyPrivateKey, "not a valid secp256k1 private key")
		} else {
			s.PrivateKey = pk
			s.Signer = crypto.PubkeyToAddress(pk.PublicKey)
		}
	}
	if f.Secret != "" {
		if _, err := clob.DecodeSecret(f.Secret); err != nil {
			bad(KeySecret, "%v", err)
		}
	}
	if !flagged[KeyChainID] && f.ChainID != "" {
		id, err := strconv.ParseInt(f.ChainID, 10, 64)
		if err != nil || id <= 0 {
			bad(KeyChainID, "must be a positive integer")
		} else {
			s.ChainID = id
			if _, err := polygonutil.ContractsFor(id); err != nil {
				warn(KeyChainID, "no exchange deployment known for chain %d", id)
			}
		}
	}
	if f.SignatureType != "" && !flagged[KeySignatureType] {
		s.SignatureType, _ = strconv.Atoi(f.SignatureType)
		if s.SignatureType != 0 && f.Funder == "" {
			warn(KeyFunder, "SIGNATURE_TYPE %d usually needs FUNDER set to the proxy wallet", s.SignatureType)
		}
	}
	if f.Funder != "" && !flagged[KeyFunder] {
		s.Funder = common.HexToAddress(f.Funder)
	}
	if f.Address != "" && !flagged[KeyAddress] {
		s.Address = common.HexToAddress(f.Address)
		if s.PrivateKey != nil && s.Address != s.Signer {
			warn(KeyAddress, "%s does not match the PK signer %s", s.Address.Hex(), s.Signer.Hex())
		}
	}
	if f.RPCURL != "" && !flagged[KeyRPCURL] {
		if err := polygonutil.ValidateRPCURL(f.RPCURL); err != nil {
			bad(KeyRPCURL, "%v", err)
		}
	}
	if f.NegRisk != "" && !flagged[KeyNegRisk] {
		s.NegRisk, _ = strconv.ParseBool(f.NegRisk)
	}
	if f.AmountUSD != "" && !flagged[KeyAmountUSD] {
		amt, err := strconv.ParseFloat(f.AmountUSD, 64)
		switch {
		case err != nil || amt <= 0:
			bad(KeyAmountUSD, "must be a positive number")
		case amt > MaxAmountUSD:
			bad(KeyAmountUSD, "must not exceed %d", MaxAmountUSD)
		default:
			s.AmountUSD = amt
		}
	}
	if (f.BotToken == "") != (f.ChatID == "") {
		warn(KeyBotToken, "BOT_TOKEN and CHAT_ID must be set together; telegram alerts disabled")
	}

	if res.Err() == nil {
		res.Settings = s
	}
	return res
}
