package flashblocks

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/fd1az/flashblocks-catcher/business/chain/domain"
)

func TestQuantity_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    Quantity
		wantErr bool
	}{
		{in: `12345`, want: 12345},
		{in: `"12345"`, want: 12345},
		{in: `"0x3039"`, want: 12345},
		{in: `"0X3039"`, want: 12345},
		{in: `null`, want: 0},
		{in: `"0xzz"`, wantErr: true},
		{in: `"abc"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var q Quantity
			err := json.Unmarshal([]byte(tt.in), &q)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && q != tt.want {
				t.Errorf("got %d, want %d", q, tt.want)
			}
		})
	}
}

func TestTxEntry_UnmarshalJSON(t *testing.T) {
	raw := hexutil.MustDecode("0x02f8700182014580843b9aca00825208940000000000000000000000000000000000000000808080c0")
	hash := common.HexToHash("0xabababababababababababababababababababababababababababababababab")

	tests := []struct {
		name string
		in   string
		want common.Hash
	}{
		{name: "raw transaction", in: `"` + hexutil.Encode(raw) + `"`, want: crypto.Keccak256Hash(raw)},
		{name: "bare hash", in: `"` + hash.Hex() + `"`, want: hash},
		{name: "object", in: `{"hash":"` + hash.Hex() + `","from":"0x00"}`, want: hash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e TxEntry
			if err := json.Unmarshal([]byte(tt.in), &e); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if e.Hash != tt.want {
				t.Errorf("hash = %s, want %s", e.Hash, tt.want)
			}
			if !e.TxID().Equal(domain.TxIDFromHash(tt.want)) {
				t.Errorf("TxID = %s", e.TxID())
			}
		})
	}
}

const basePayload = `{
	"payload_id": "0x03a1",
	"index": 0,
	"base": {
		"parent_hash": "0x1111111111111111111111111111111111111111111111111111111111111111",
		"block_number": "0x1b4",
		"gas_limit": "0x1c9c380",
		"timestamp": "0x665f0000"
	},
	"diff": {
		"block_hash": "0x2222222222222222222222222222222222222222222222222222222222222222",
		"gas_used": "0xa410",
		"transactions": ["0x02f8700182014580843b9aca00825208940000000000000000000000000000000000000000808080c0"]
	},
	"metadata": {"block_number": 436}
}`

func TestDecodePayload(t *testing.T) {
	p, err := DecodePayload([]byte(basePayload))
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if p.PayloadID != "0x03a1" || p.Index != 0 {
		t.Errorf("payload = %+v", p)
	}
	if p.Base == nil || p.Base.BlockNumber != 436 || p.Base.GasLimit != 30_000_000 {
		t.Errorf("base = %+v", p.Base)
	}
	if p.Diff.GasUsed != 42000 || len(p.Diff.Transactions) != 1 {
		t.Errorf("diff = %+v", p.Diff)
	}
	if p.Metadata.BlockNumber == nil || *p.Metadata.BlockNumber != 436 {
		t.Errorf("metadata = %+v", p.Metadata)
	}
}

func TestDecodePayload_Rejects(t *testing.T) {
	for _, in := range []string{`not json`, `{}`, `{"jsonrpc":"2.0","id":1,"result":"0x1"}`, `[1,2]`} {
		if _, err := DecodePayload([]byte(in)); err == nil {
			t.Errorf("DecodePayload(%q) should fail", in)
		}
	}
}

func mustDecode(t *testing.T, s string) *Payload {
	t.Helper()
	p, err := DecodePayload([]byte(s))
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	return p
}

func diffPayload(id string, index int, blockHash string, txs ...string) string {
	list, _ := json.Marshal(txs)
	if txs == nil {
		list = []byte("[]")
	}
	return `{"payload_id":"` + id + `","index":` + itoa(index) +
		`,"diff":{"block_hash":"` + blockHash + `","gas_used":"0x0","transactions":` + string(list) + `}}`
}

func itoa(i int) string {
	b, _ := json.Marshal(i)
	return string(b)
}

func TestMerger(t *testing.T) {
	m := NewMerger()

	b, err := m.Merge(mustDecode(t, basePayload))
	if err != nil {
		t.Fatalf("Merge(base): %v", err)
	}
	if b.Cadence != domain.Flash || b.Number != 436 || b.Index != 0 {
		t.Errorf("base block = %+v", b)
	}
	if b.ParentHash != common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111") {
		t.Errorf("ParentHash = %s", b.ParentHash)
	}
	if b.GasLimit != 30_000_000 || b.Timestamp.Unix() != 0x665f0000 {
		t.Errorf("base fields = %d %v", b.GasLimit, b.Timestamp)
	}

	tx := "0xabababababababababababababababababababababababababababababababab"
	b, err = m.Merge(mustDecode(t, diffPayload("0x03a1", 1, "0x3333333333333333333333333333333333333333333333333333333333333333", tx)))
	if err != nil {
		t.Fatalf("Merge(diff): %v", err)
	}
	if b.Number != 436 || b.Index != 1 || b.GasLimit != 30_000_000 {
		t.Errorf("diff block = %+v", b)
	}
	if len(b.Transactions) != 1 || !b.ContainsTx(domain.TxID(tx)) {
		t.Errorf("transactions = %v", b.Transactions)
	}
	if b.Identity() == (domain.BlockIdentity{Cadence: domain.Flash, Number: 436, Hash: common.HexToHash("0x2222222222222222222222222222222222222222222222222222222222222222")}) {
		t.Error("each flashblock needs its own identity")
	}

	// Diff of a payload whose base was never seen.
	_, err = m.Merge(mustDecode(t, diffPayload("0x0bbb", 3, "0x4444444444444444444444444444444444444444444444444444444444444444")))
	if !errors.Is(err, ErrMissingBase) {
		t.Errorf("err = %v, want ErrMissingBase", err)
	}

	m.Reset()
	_, err = m.Merge(mustDecode(t, diffPayload("0x03a1", 2, "0x5555555555555555555555555555555555555555555555555555555555555555")))
	if !errors.Is(err, ErrMissingBase) {
		t.Errorf("after Reset err = %v, want ErrMissingBase", err)
	}
}

func TestMerger_MetadataWithoutBase(t *testing.T) {
	m := NewMerger()
	p := mustDecode(t, `{"payload_id":"0x1","index":4,"diff":{"block_hash":"0x6666666666666666666666666666666666666666666666666666666666666666"},"metadata":{"block_number":"0x10"}}`)

	b, err := m.Merge(p)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if b.Number != 16 || b.GasLimit != 0 {
		t.Errorf("block = %+v", b)
	}
}
