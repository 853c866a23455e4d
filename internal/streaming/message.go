package streaming

import (
	"encoding/json"
	"errors"
)

type MessageType string

const (
	MessageTypeTransfer MessageType = "transfer"
)

// Message is the Kafka payload for one decoded token event. Value is a decimal
// string so amounts wider than 64 bits survive JSON.
type Message struct {
	Type        MessageType `json:"type"`
	ChainID     uint64      `json:"chain_id"`
	TraceID     string      `json:"trace_id,omitempty"`
	TxHash      string      `json:"tx_hash"`
	LogIndex    uint64      `json:"log_index"`
	BlockNumber uint64      `json:"block_number"`
	Timestamp   uint64      `json:"timestamp"`
	From        string      `json:"from"`
	To          string      `json:"to"`
	Value       string      `json:"value"`
}

func Encode(msg Message) ([]byte, error) {
	if msg.Type == "" {
		return nil, errors.New("message type is required")
	}
	if msg.ChainID == 0 {
		return nil, errors.New("chain_id is required")
	}
	if msg.TxHash == "" {
		return nil, errors.New("tx_hash is required")
	}
	return json.Marshal(msg)
}

func Decode(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Type == "" {
		return Message{}, errors.New("message type is missing")
	}
	if msg.ChainID == 0 {
		return Message{}, errors.New("chain_id is missing")
	}
	if msg.TxHash == "" {
		return Message{}, errors.New("tx_hash is missing")
	}
	return msg, nil
}
