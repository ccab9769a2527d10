package chainws

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ERC-20 function selectors.
const (
	selBalanceOf = "0x70a08231"
	selDecimals  = "0x313ce567"
	selSymbol    = "0x95d89b41"
)

// TokenInfo describes the watched token on one chain.
type TokenInfo struct {
	Symbol   string
	Decimals uint8
}

func ethCall(ctx context.Context, url, to, data string) ([]byte, error) {
	result, err := Call(ctx, url, "eth_call", []any{
		map[string]any{"to": to, "data": data},
		"latest",
	})
	if err != nil {
		return nil, err
	}
	var hexOut string
	if err := json.Unmarshal(result, &hexOut); err != nil {
		return nil, fmt.Errorf("parse eth_call result: %w", err)
	}
	return common.FromHex(hexOut), nil
}

// QueryTokenInfo reads symbol and decimals from the token contract.
func QueryTokenInfo(ctx context.Context, url, token string) (TokenInfo, error) {
	symRaw, err := ethCall(ctx, url, token, selSymbol)
	if err != nil {
		return TokenInfo{}, fmt.Errorf("symbol: %w", err)
	}
	symbol, err := decodeABIString(symRaw)
	if err != nil {
		return TokenInfo{}, fmt.Errorf("symbol: %w", err)
	}

	decRaw, err := ethCall(ctx, url, token, selDecimals)
	if err != nil {
		return TokenInfo{}, fmt.Errorf("decimals: %w", err)
	}
	if len(decRaw) == 0 {
		return TokenInfo{}, fmt.Errorf("decimals: empty result")
	}
	decimals := new(big.Int).SetBytes(decRaw)
	if !decimals.IsUint64() || decimals.Uint64() > 77 {
		return TokenInfo{}, fmt.Errorf("decimals out of range: %s", decimals)
	}

	return TokenInfo{Symbol: symbol, Decimals: uint8(decimals.Uint64())}, nil
}

// QueryBalance reads balanceOf(wallet) from the token contract.
func QueryBalance(ctx context.Context, url, token, wallet string) (*big.Int, error) {
	data := selBalanceOf + padAddress(wallet)
	out, err := ethCall(ctx, url, token, data)
	if err != nil {
		return nil, fmt.Errorf("balanceOf: %w", err)
	}
	return new(big.Int).SetBytes(out), nil
}

// padAddress left-pads an address to a 32-byte ABI word, without 0x.
func padAddress(address string) string {
	addr := common.HexToAddress(address)
	return "000000000000000000000000" + strings.ToLower(common.Bytes2Hex(addr.Bytes()))
}

// decodeABIString decodes a dynamically-encoded string return value
// (offset word, length word, then the bytes).
func decodeABIString(out []byte) (string, error) {
	if len(out) < 64 {
		return "", fmt.Errorf("abi string too short: %d bytes", len(out))
	}
	offset := new(big.Int).SetBytes(out[:32])
	if !offset.IsUint64() || offset.Uint64()+32 > uint64(len(out)) {
		return "", fmt.Errorf("abi string offset out of range")
	}
	start := offset.Uint64()
	length := new(big.Int).SetBytes(out[start : start+32])
	if !length.IsUint64() || start+32+length.Uint64() > uint64(len(out)) {
		return "", fmt.Errorf("abi string length out of range")
	}
	return string(out[start+32 : start+32+length.Uint64()]), nil
}

// FormatAmount renders a raw token amount using the token's decimals,
// trimming trailing zeros ("1.5", not "1.500000000000000000").
func FormatAmount(amount *big.Int, decimals uint8) string {
	if decimals == 0 {
		return amount.String()
	}
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(amount, divisor, new(big.Int))

	if frac.Sign() == 0 {
		return whole.String()
	}
	fracStr := strings.TrimRight(
		fmt.Sprintf("%0*s", decimals, frac.String()),
		"0",
	)
	return whole.String() + "." + fracStr
}
