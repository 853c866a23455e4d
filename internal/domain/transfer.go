package domain

import "math/big"

// Transfer is the indexed record of one token transfer. ID is the hex-encoded
// hash of the originating transaction.
type Transfer struct {
	ID        string
	From      string
	To        string
	Value     *big.Int
	Timestamp uint64
}
