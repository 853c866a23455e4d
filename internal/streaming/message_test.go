package streaming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeRequiresIdentity(t *testing.T) {
	_, err := Encode(Message{ChainID: 1, TxHash: "0x1"})
	assert.EqualError(t, err, "message type is required")

	_, err = Encode(Message{Type: MessageTypeTransfer, TxHash: "0x1"})
	assert.EqualError(t, err, "chain_id is required")

	_, err = Encode(Message{Type: MessageTypeTransfer, ChainID: 1})
	assert.EqualError(t, err, "tx_hash is required")
}

func TestDecodeKeepsWideValues(t *testing.T) {
	payload := []byte(`{"type":"transfer","chain_id":1,"tx_hash":"0xabc","from":"0xa","to":"0xb","value":"340282366920938463463374607431768211456","timestamp":1700000000}`)

	msg, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, "340282366920938463463374607431768211456", msg.Value)
	assert.Equal(t, uint64(1700000000), msg.Timestamp)
}

func TestDecodeRejectsIncompleteMessages(t *testing.T) {
	_, err := Decode([]byte(`{"type":"transfer","tx_hash":"0x1"}`))
	assert.EqualError(t, err, "chain_id is missing")

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}
