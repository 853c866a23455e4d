package application

import (
	"math/big"
	"strings"

	"transfertracker/internal/domain"

	"github.com/cockroachdb/errors"
)

// TransferTopic is keccak256("Transfer(address,address,uint256)").
const TransferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

var ErrNotTransfer = errors.New("log is not an erc20 transfer")

// DecodeTransferLog turns a raw Transfer log into an event. Logs with another
// signature, or the four-topic ERC-721 shape, return ErrNotTransfer.
func DecodeTransferLog(entry domain.LogEntry, timestamp uint64) (domain.TransferEvent, error) {
	if len(entry.Topics) == 0 || !strings.EqualFold(entry.Topics[0], TransferTopic) {
		return domain.TransferEvent{}, ErrNotTransfer
	}
	if len(entry.Topics) != 3 {
		return domain.TransferEvent{}, ErrNotTransfer
	}
	from, err := decodeTopicAddress(entry.Topics[1])
	if err != nil {
		return domain.TransferEvent{}, err
	}
	to, err := decodeTopicAddress(entry.Topics[2])
	if err != nil {
		return domain.TransferEvent{}, err
	}
	value, err := decodeUint256(entry.Data)
	if err != nil {
		return domain.TransferEvent{}, errors.Wrapf(err, "tx %s log %d", entry.TxHash, entry.LogIndex)
	}
	return domain.TransferEvent{
		ChainID:         entry.ChainID,
		TransactionHash: entry.TxHash,
		LogIndex:        entry.LogIndex,
		Params: domain.TransferParams{
			From:  from,
			To:    to,
			Value: value,
		},
		Block: domain.EventBlock{
			Number:    entry.BlockNumber,
			Timestamp: timestamp,
		},
	}, nil
}

func decodeTopicAddress(topic string) (string, error) {
	if !strings.HasPrefix(topic, "0x") || len(topic) != 66 {
		return "", errors.Newf("invalid topic address: %s", topic)
	}
	return "0x" + topic[26:], nil
}

func decodeUint256(data string) (*big.Int, error) {
	clean := strings.TrimPrefix(data, "0x")
	if len(clean) < 64 {
		return nil, errors.Newf("invalid data length: %d", len(clean))
	}
	value := new(big.Int)
	if _, ok := value.SetString(clean[:64], 16); !ok {
		return nil, errors.New("failed to parse uint256")
	}
	return value, nil
}
