// Package flashblocks consumes the flashblock WebSocket stream.
package flashblocks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/fd1az/flashblocks-catcher/business/chain/domain"
)

// Payload is one flashblock message. Base is only sent with index 0 of a
// payload; every later index carries just its diff.
type Payload struct {
	PayloadID string   `json:"payload_id"`
	Index     uint64   `json:"index"`
	Base      *Base    `json:"base,omitempty"`
	Diff      Diff     `json:"diff"`
	Metadata  Metadata `json:"metadata"`
}

// Base describes the block a payload builds.
type Base struct {
	ParentHash  common.Hash `json:"parent_hash"`
	BlockNumber Quantity    `json:"block_number"`
	GasLimit    Quantity    `json:"gas_limit"`
	Timestamp   Quantity    `json:"timestamp"`
}

// Diff is what one flashblock adds to the block.
type Diff struct {
	BlockHash    common.Hash `json:"block_hash"`
	GasUsed      Quantity    `json:"gas_used"`
	Transactions []TxEntry   `json:"transactions"`
}

// Metadata carries auxiliary fields; only the block number is used.
type Metadata struct {
	BlockNumber *Quantity `json:"block_number,omitempty"`
}

// Quantity decodes a JSON number, a decimal string or a 0x hex string.
type Quantity uint64

// UnmarshalJSON implements json.Unmarshaler.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}

	var (
		v   uint64
		err error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err = strconv.ParseUint(s[2:], 16, 64)
	} else {
		v, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil {
		return fmt.Errorf("quantity %q: %w", s, err)
	}
	*q = Quantity(v)
	return nil
}

// TxEntry is a diff transaction: raw signed bytes, a bare hash, or an
// object with a hash field.
type TxEntry struct {
	Raw  hexutil.Bytes
	Hash common.Hash
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *TxEntry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			Hash common.Hash `json:"hash"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		e.Hash = obj.Hash
		return nil
	}

	if err := json.Unmarshal(data, &e.Raw); err != nil {
		return err
	}
	if len(e.Raw) == common.HashLength {
		e.Hash = common.BytesToHash(e.Raw)
	} else {
		e.Hash = crypto.Keccak256Hash(e.Raw)
	}
	return nil
}

// TxID returns the transaction hash as a TxID.
func (e TxEntry) TxID() domain.TxID {
	return domain.TxIDFromHash(e.Hash)
}

// DecodePayload parses a stream message.
func DecodePayload(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if p.PayloadID == "" && p.Base == nil && p.Diff.BlockHash == (common.Hash{}) {
		return nil, fmt.Errorf("not a flashblock message")
	}
	return &p, nil
}
