package chainws

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func transferLog() *Log {
	return &Log{
		Address: "0x9ff62d1FC52A907B6DCbA8077c2DDCA6E6a9d3e1",
		Topics: []string{
			TransferTopic,
			"0x000000000000000000000000aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			"0x000000000000000000000000bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		},
		Data:            "0x0000000000000000000000000000000000000000000000000de0b6b3a7640000",
		TransactionHash: "0xabc123",
		LogIndex:        "0x2",
	}
}

func TestDecodeTransfer(t *testing.T) {
	tr, err := DecodeTransfer(transferLog())
	if err != nil {
		t.Fatalf("DecodeTransfer failed: %v", err)
	}

	wantFrom := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	wantTo := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	if tr.From != wantFrom {
		t.Errorf("from = %s, want %s", tr.From, wantFrom)
	}
	if tr.To != wantTo {
		t.Errorf("to = %s, want %s", tr.To, wantTo)
	}
	// 0xde0b6b3a7640000 = 10^18
	if tr.Amount.Cmp(big.NewInt(1e18)) != 0 {
		t.Errorf("amount = %s, want 10^18", tr.Amount)
	}
	if tr.EventID() != "0xabc123:0x2" {
		t.Errorf("event id = %s", tr.EventID())
	}
}

func TestDecodeTransfer_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Log)
	}{
		{"missing indexed topic", func(lg *Log) { lg.Topics = lg.Topics[:2] }},
		{"wrong topic0", func(lg *Log) { lg.Topics[0] = "0x" + strings.Repeat("00", 32) }},
		{"short data", func(lg *Log) { lg.Data = "0x01" }},
		{"short topic", func(lg *Log) { lg.Topics[1] = "0xaaaa" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lg := transferLog()
			tt.mutate(lg)
			if _, err := DecodeTransfer(lg); err == nil {
				t.Error("expected decode error")
			}
		})
	}
}

func TestDecodeTransfer_RemovedFlag(t *testing.T) {
	lg := transferLog()
	lg.Removed = true
	tr, err := DecodeTransfer(lg)
	if err != nil {
		t.Fatalf("DecodeTransfer failed: %v", err)
	}
	if !tr.Removed {
		t.Error("removed flag lost in decode")
	}
}

func TestDecodeABIString(t *testing.T) {
	// Standard ABI encoding of "FORT": offset 0x20, length 4, padded bytes.
	out := common.FromHex(
		"0x0000000000000000000000000000000000000000000000000000000000000020" +
			"0000000000000000000000000000000000000000000000000000000000000004" +
			"464f525400000000000000000000000000000000000000000000000000000000")

	got, err := decodeABIString(out)
	if err != nil {
		t.Fatalf("decodeABIString failed: %v", err)
	}
	if got != "FORT" {
		t.Errorf("got %q, want FORT", got)
	}
}

func TestDecodeABIString_Truncated(t *testing.T) {
	for _, hex := range []string{
		"0x",
		"0x0000000000000000000000000000000000000000000000000000000000000020",
	} {
		if _, err := decodeABIString(common.FromHex(hex)); err == nil {
			t.Errorf("expected error for %s", hex)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount   string
		decimals uint8
		want     string
	}{
		{"1000000000000000000", 18, "1"},
		{"1500000000000000000", 18, "1.5"},
		{"1", 18, "0.000000000000000001"},
		{"12345", 0, "12345"},
		{"12345678", 6, "12.345678"},
		{"0", 18, "0"},
	}
	for _, tt := range tests {
		amount, ok := new(big.Int).SetString(tt.amount, 10)
		if !ok {
			t.Fatalf("bad test amount %s", tt.amount)
		}
		if got := FormatAmount(amount, tt.decimals); got != tt.want {
			t.Errorf("FormatAmount(%s, %d) = %s, want %s",
				tt.amount, tt.decimals, got, tt.want)
		}
	}
}

func TestPadAddress(t *testing.T) {
	got := padAddress("0x9ff62d1FC52A907B6DCbA8077c2DDCA6E6a9d3e1")
	want := "0000000000000000000000009ff62d1fc52a907b6dcba8077c2ddca6e6a9d3e1"
	if got != want {
		t.Errorf("padAddress = %s, want %s", got, want)
	}
	if len(got) != 64 {
		t.Errorf("padded word length = %d, want 64", len(got))
	}
}
