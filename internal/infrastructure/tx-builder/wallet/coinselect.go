package txbuilder

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/coinset"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
)

const (
	defaultMaxInputs = 20
	minChangeAmount  = 1000
)

// Utxo is a spendable output of the wallet.
type Utxo struct {
	Txid          string `json:"txid"`
	Vout          uint32 `json:"vout"`
	Value         int64  `json:"value"`
	Script        string `json:"script"`
	Confirmations int64  `json:"confirmations"`
}

// selectable implements coinset.Coin interface
type selectable struct {
	hash     chainhash.Hash
	index    uint32
	value    btcutil.Amount
	pkScript []byte
	numConfs int64
}

func newSelectable(utxo Utxo) (*selectable, error) {
	hash, err := chainhash.NewHashFromStr(utxo.Txid)
	if err != nil {
		return nil, fmt.Errorf("invalid utxo txid %s: %w", utxo.Txid, err)
	}
	if utxo.Value <= 0 {
		return nil, fmt.Errorf("invalid value for utxo %s:%d", utxo.Txid, utxo.Vout)
	}
	script, err := hex.DecodeString(utxo.Script)
	if err != nil {
		return nil, fmt.Errorf("invalid script for utxo %s:%d: %w", utxo.Txid, utxo.Vout, err)
	}
	return &selectable{
		hash:     *hash,
		index:    utxo.Vout,
		value:    btcutil.Amount(utxo.Value),
		pkScript: script,
		numConfs: utxo.Confirmations,
	}, nil
}

func (u *selectable) Value() btcutil.Amount {
	return u.value
}

func (u *selectable) ValueAge() int64 {
	return int64(u.value) * u.numConfs
}

func (u *selectable) PkScript() []byte {
	return u.pkScript
}

func (u *selectable) Hash() *chainhash.Hash {
	return &u.hash
}

func (u *selectable) Index() uint32 {
	return u.index
}

func (u *selectable) NumConfs() int64 {
	return u.numConfs
}

// inputCounts groups coins by script type for size estimation. Unknown scripts count as p2wpkh.
type inputCounts struct {
	p2pkh, p2tr, p2wpkh, nestedP2wpkh int
}

func countInputs(coins []coinset.Coin) inputCounts {
	var counts inputCounts
	for _, coin := range coins {
		script := coin.PkScript()
		switch {
		case txscript.IsPayToPubKeyHash(script):
			counts.p2pkh++
		case txscript.IsPayToTaproot(script):
			counts.p2tr++
		case txscript.IsPayToScriptHash(script):
			counts.nestedP2wpkh++
		default:
			counts.p2wpkh++
		}
	}
	return counts
}

func totalValue(coins []coinset.Coin) btcutil.Amount {
	var total btcutil.Amount
	for _, coin := range coins {
		total += coin.Value()
	}
	return total
}
