package clob

import (
	"crypto/ecdsa"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const clobAuthMessage = "This message attests that I control the given wallet"

var (
	eip712DomainTypeHash = crypto.Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId)"))
	clobAuthTypeHash     = crypto.Keccak256Hash([]byte("ClobAuth(address address,string timestamp,uint256 nonce,string message)"))

	bytes32Ty = mustABIType("bytes32")
	addressTy = mustABIType("address")
	uint256Ty = mustABIType("uint256")
)

func mustABIType(t string) abi.Type {
	ty, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return ty
}

// encodeHash abi-encodes values as 32-byte words and hashes the result.
// Dynamic strings must already be replaced by their keccak256.
func encodeHash(types []abi.Type, values ...any) (common.Hash, error) {
	args := make(abi.Arguments, len(types))
	for i, ty := range types {
		args[i] = abi.Argument{Type: ty}
	}
	packed, err := args.Pack(values...)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(packed), nil
}

func clobAuthDigest(signer common.Address, chainID, timestamp int64, nonce uint64) (common.Hash, error) {
	domain, err := encodeHash(
		[]abi.Type{bytes32Ty, bytes32Ty, bytes32Ty, uint256Ty},
		eip712DomainTypeHash,
		crypto.Keccak256Hash([]byte("ClobAuthDomain")),
		crypto.Keccak256Hash([]byte("1")),
		big.NewInt(chainID),
	)
	if err != nil {
		return common.Hash{}, err
	}
	structHash, err := encodeHash(
		[]abi.Type{bytes32Ty, addressTy, bytes32Ty, uint256Ty, bytes32Ty},
		clobAuthTypeHash,
		signer,
		crypto.Keccak256Hash([]byte(strconv.FormatInt(timestamp, 10))),
		new(big.Int).SetUint64(nonce),
		crypto.Keccak256Hash([]byte(clobAuthMessage)),
	)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash([]byte{0x19, 0x01}, domain.Bytes(), structHash.Bytes()), nil
}

// signClobAuth produces the L1 POLY_SIGNATURE header value (v in {27,28}).
func signClobAuth(pk *ecdsa.PrivateKey, chainID, timestamp int64, nonce uint64) (string, error) {
	digest, err := clobAuthDigest(crypto.PubkeyToAddress(pk.PublicKey), chainID, timestamp, nonce)
	if err != nil {
		return "", err
	}
	sig, err := crypto.Sign(digest.Bytes(), pk)
	if err != nil {
		return "", err
	}
	sig[64] += 27
	return "0x" + common.Bytes2Hex(sig), nil
}
