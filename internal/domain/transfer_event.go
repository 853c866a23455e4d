package domain

import "math/big"

// TransferParams holds the decoded arguments of an ERC-20 Transfer event.
type TransferParams struct {
	From  string
	To    string
	Value *big.Int
}

// EventBlock is the block metadata carried with an event.
type EventBlock struct {
	Number    uint64
	Timestamp uint64
}

// TransferEvent is a Transfer log already filtered to the tracked token contract.
type TransferEvent struct {
	ChainID         uint64
	TransactionHash string
	LogIndex        uint64
	Params          TransferParams
	Block           EventBlock
}
