package domain

import "github.com/btcsuite/btcd/btcutil"

// SendMax is the amount placeholder for a tx spending the whole balance.
const SendMax = "!"

// Tx is a transaction successfully built by a TxBuilder.
type Tx interface {
	// EstimatedSize returns the virtual size of the signed tx.
	EstimatedSize() int64
	// Fee returns the fee paid and whether it is known.
	Fee() (btcutil.Amount, bool)
	// OutputValue is the amount sent to the destinations, change excluded.
	OutputValue() btcutil.Amount
	LockTime() uint32
	SetRBF(enabled bool)
	RBF() bool
}

// DialogState is the mutable state of one editing session.
type DialogState struct {
	Tx                Tx
	NotEnoughFunds    bool
	NoDynFeeEstimates bool
	NeedsUpdate       bool
}

// OutputValue is either an amount in satoshis or SendMax.
type OutputValue struct {
	Amount btcutil.Amount
	Max    bool
}

func (v OutputValue) String() string {
	if v.Max {
		return SendMax
	}
	return v.Amount.String()
}
