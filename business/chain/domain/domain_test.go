package domain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestTxID_Equal(t *testing.T) {
	tests := []struct {
		a, b TxID
		want bool
	}{
		{"0xABCDEF", "0xabcdef", true},
		{"0xabc", "0xabd", false},
		{"", "", true},
	}
	for _, tt := range tests {
		if got := tt.a.Equal(tt.b); got != tt.want {
			t.Errorf("%q.Equal(%q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestTxID_Short(t *testing.T) {
	id := TxIDFromHash(common.HexToHash("0x1234"))
	if got := id.Short(); got != "0x0000…1234" {
		t.Errorf("Short() = %q", got)
	}
	if TxID("0xab").Short() != "0xab" {
		t.Error("short ids are returned unchanged")
	}
}

func TestBlock_ContainsTx(t *testing.T) {
	b := &Block{Transactions: []TxID{"0xAAA", "0xBbB"}}

	if !b.ContainsTx("0xbbb") {
		t.Error("expected case-insensitive match")
	}
	if b.ContainsTx("0xccc") {
		t.Error("unexpected match")
	}
	if b.ContainsTx("") {
		t.Error("empty id never matches")
	}
}

func TestParseCadence(t *testing.T) {
	for _, c := range Cadences {
		got, err := ParseCadence(c.String())
		if err != nil || got != c {
			t.Errorf("ParseCadence(%q) = %v, %v", c.String(), got, err)
		}
	}
	if _, err := ParseCadence("turbo"); err == nil {
		t.Error("expected error for unknown cadence")
	}
	if Cadence(9).Valid() {
		t.Error("Cadence(9) should be invalid")
	}
}
