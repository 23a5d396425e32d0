package txbuilder

import (
	"bytes"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// rbfSequence signals replaceability (BIP 125) while keeping the locktime enforced.
const rbfSequence = wire.MaxTxInSequenceNum - 2

// Tx is an unsigned tx built from the wallet utxos.
type Tx struct {
	msgTx       *wire.MsgTx
	prevouts    []*wire.TxOut
	fee         btcutil.Amount
	outputValue btcutil.Amount
	vsize       int64
}

func (t *Tx) EstimatedSize() int64 {
	return t.vsize
}

func (t *Tx) Fee() (btcutil.Amount, bool) {
	return t.fee, true
}

func (t *Tx) OutputValue() btcutil.Amount {
	return t.outputValue
}

func (t *Tx) LockTime() uint32 {
	return t.msgTx.LockTime
}

func (t *Tx) SetRBF(enabled bool) {
	sequence := uint32(wire.MaxTxInSequenceNum - 1)
	if enabled {
		sequence = rbfSequence
	}
	for _, in := range t.msgTx.TxIn {
		in.Sequence = sequence
	}
}

func (t *Tx) RBF() bool {
	for _, in := range t.msgTx.TxIn {
		if in.Sequence < wire.MaxTxInSequenceNum-1 {
			return true
		}
	}
	return false
}

func (t *Tx) MsgTx() *wire.MsgTx {
	return t.msgTx.Copy()
}

func (t *Tx) Txid() string {
	return t.msgTx.TxHash().String()
}

// Hex returns the serialized unsigned tx.
func (t *Tx) Hex() (string, error) {
	var buf bytes.Buffer
	if err := t.msgTx.Serialize(&buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

// Psbt returns the tx as a base64 PSBT ready to be signed. Segwit inputs carry the utxo they
// spend; legacy ones need the full previous tx, which the wallet file doesn't provide.
func (t *Tx) Psbt() (string, error) {
	ptx, err := psbt.NewFromUnsignedTx(t.msgTx.Copy())
	if err != nil {
		return "", err
	}
	for i, prevout := range t.prevouts {
		if txscript.IsPayToPubKeyHash(prevout.PkScript) {
			continue
		}
		ptx.Inputs[i].WitnessUtxo = prevout
	}
	return ptx.B64Encode()
}
