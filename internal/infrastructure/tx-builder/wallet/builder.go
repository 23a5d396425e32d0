package txbuilder

import (
	"bytes"
	"context"
	"fmt"

	"github.com/arkade-os/txeditor/internal/core/domain"
	"github.com/arkade-os/txeditor/internal/core/ports"
	"github.com/arkade-os/txeditor/pkg/errors"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/coinset"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type Option func(*txBuilder)

// WithChangeAddress sets where the change goes. Required unless spending the whole balance.
func WithChangeAddress(address string) Option {
	return func(b *txBuilder) {
		b.changeAddress = address
	}
}

func WithLockTime(lockTime uint32) Option {
	return func(b *txBuilder) {
		b.lockTime = lockTime
	}
}

func WithMaxInputs(maxInputs int) Option {
	return func(b *txBuilder) {
		b.maxInputs = maxInputs
	}
}

func WithRelayFee(relayFeePerKb btcutil.Amount) Option {
	return func(b *txBuilder) {
		b.relayFeePerKb = relayFeePerKb
	}
}

type txBuilder struct {
	network    *chaincfg.Params
	coins      []coinset.Coin
	destScript []byte
	amount     domain.OutputValue
	selector   ports.FeeTargetSelector
	available  btcutil.Amount

	changeAddress string
	lockTime      uint32
	maxInputs     int
	relayFeePerKb btcutil.Amount
}

// NewTxBuilder returns a builder of txs paying amount to destination out of the given utxos.
// The selector provides the feerate when the editor asks for the dynamic estimate.
func NewTxBuilder(
	network *chaincfg.Params, utxos []Utxo, destination string, amount domain.OutputValue,
	selector ports.FeeTargetSelector, opts ...Option,
) (ports.TxBuilder, error) {
	if network == nil {
		return nil, fmt.Errorf("missing network")
	}
	if !amount.Max && amount.Amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	destAddr, err := btcutil.DecodeAddress(destination, network)
	if err != nil {
		return nil, fmt.Errorf("invalid destination address: %w", err)
	}
	if !destAddr.IsForNet(network) {
		return nil, fmt.Errorf("destination address is not for %s", network.Name)
	}
	destScript, err := txscript.PayToAddrScript(destAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to build destination script: %w", err)
	}

	coins := make([]coinset.Coin, 0, len(utxos))
	var available btcutil.Amount
	for _, utxo := range utxos {
		coin, err := newSelectable(utxo)
		if err != nil {
			return nil, err
		}
		coins = append(coins, coin)
		available += coin.Value()
	}

	b := &txBuilder{
		network:       network,
		coins:         coins,
		destScript:    destScript,
		amount:        amount,
		selector:      selector,
		available:     available,
		maxInputs:     defaultMaxInputs,
		relayFeePerKb: txrules.DefaultRelayFeePerKb,
	}
	for _, opt := range opts {
		opt(b)
	}

	if !amount.Max && len(b.changeAddress) <= 0 {
		return nil, fmt.Errorf("missing change address")
	}
	if b.maxInputs <= 0 {
		return nil, fmt.Errorf("max inputs must be positive")
	}

	return b, nil
}

func (b *txBuilder) MakeTx(ctx context.Context, estimator domain.FeeEstimator) ports.BuildResult {
	tx, err := b.makeTx(ctx, estimator)
	if err != nil {
		log.WithError(err).Debug("failed to build tx")
		return ports.ClassifyBuildError(err)
	}
	return ports.Built(tx)
}

func (b *txBuilder) makeTx(ctx context.Context, estimator domain.FeeEstimator) (*Tx, error) {
	if estimator == nil {
		var err error
		if estimator, err = b.dynamicEstimator(ctx); err != nil {
			return nil, err
		}
	}

	if b.amount.Max {
		return b.sendMax(estimator)
	}
	return b.send(estimator)
}

func (b *txBuilder) dynamicEstimator(ctx context.Context) (domain.FeeEstimator, error) {
	if b.selector == nil {
		return nil, errors.NO_DYNAMIC_FEE_ESTIMATES.New("no fee target selector")
	}
	feeratePerKb, err := b.selector.FeeratePerKb(ctx)
	if err != nil {
		if errors.NO_DYNAMIC_FEE_ESTIMATES.Is(err) {
			return nil, err
		}
		return nil, errors.NO_DYNAMIC_FEE_ESTIMATES.Wrap(err)
	}
	return domain.FeeratePerKb(decimal.NewFromInt(feeratePerKb)), nil
}

// sendMax spends every utxo to the destination, the fee being taken out of the amount.
func (b *txBuilder) sendMax(estimator domain.FeeEstimator) (*Tx, error) {
	if len(b.coins) <= 0 {
		return nil, b.insufficientFunds(0)
	}

	output := wire.NewTxOut(0, b.destScript)
	outputs := []*wire.TxOut{output}
	vsize := b.estimateSize(b.coins, outputs, 0)
	fee := btcutil.Amount(estimator.EstimateFee(vsize))

	amount := b.available - fee
	if amount <= 0 || txrules.IsDustAmount(amount, len(b.destScript), b.relayFeePerKb) {
		return nil, b.insufficientFunds(fee + txrules.GetDustThreshold(len(b.destScript), b.relayFeePerKb))
	}
	output.Value = int64(amount)

	return b.newTx(b.coins, outputs, fee, amount, vsize), nil
}

// send selects the coins paying amount plus the fee of the tx spending them. A change below the
// dust threshold is added to the fee.
func (b *txBuilder) send(estimator domain.FeeEstimator) (*Tx, error) {
	amount := b.amount.Amount
	if txrules.IsDustAmount(amount, len(b.destScript), b.relayFeePerKb) {
		return nil, fmt.Errorf("amount %s is below the dust threshold", amount)
	}

	changeScript, err := b.changeScript()
	if err != nil {
		return nil, err
	}

	outputs := []*wire.TxOut{wire.NewTxOut(int64(amount), b.destScript)}

	var (
		selected []coinset.Coin
		fee      btcutil.Amount
		vsize    int64
	)
	for {
		coins, err := b.selectCoins(amount + fee)
		if err != nil {
			return nil, b.insufficientFunds(amount + fee)
		}
		selected = coins
		vsize = b.estimateSize(selected, outputs, len(changeScript))
		required := btcutil.Amount(estimator.EstimateFee(vsize))
		if required <= fee {
			fee = required
			break
		}
		fee = required
	}

	change := totalValue(selected) - amount - fee
	if change > 0 && !txrules.IsDustAmount(change, len(changeScript), b.relayFeePerKb) {
		outputs = append(outputs, wire.NewTxOut(int64(change), changeScript))
	} else {
		fee += change
		vsize = b.estimateSize(selected, outputs, 0)
		if change > 0 {
			log.Debugf("adding dust change of %s to the fee", change)
		}
	}

	return b.newTx(selected, outputs, fee, amount, vsize), nil
}

func (b *txBuilder) selectCoins(target btcutil.Amount) ([]coinset.Coin, error) {
	selector := coinset.MinNumberCoinSelector{
		MaxInputs:       b.maxInputs,
		MinChangeAmount: minChangeAmount,
	}
	coins, err := selector.CoinSelect(target, b.coins)
	if err != nil {
		// Accept a change too small to be worth an output, it goes to the fee.
		selector.MinChangeAmount = 0
		if coins, err = selector.CoinSelect(target, b.coins); err != nil {
			return nil, err
		}
	}
	return coins.Coins(), nil
}

func (b *txBuilder) changeScript() ([]byte, error) {
	addr, err := btcutil.DecodeAddress(b.changeAddress, b.network)
	if err != nil || !addr.IsForNet(b.network) {
		return nil, errors.ADDRESS_CORRUPTION.New("invalid change address %s", b.changeAddress).
			WithMetadata(errors.AddressCorruptionMetadata{Address: b.changeAddress})
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, errors.ADDRESS_CORRUPTION.Wrap(err).
			WithMetadata(errors.AddressCorruptionMetadata{Address: b.changeAddress})
	}
	if bytes.Equal(script, b.destScript) {
		return nil, errors.ADDRESS_CORRUPTION.New(
			"change address %s is the destination address", b.changeAddress,
		).WithMetadata(errors.AddressCorruptionMetadata{Address: b.changeAddress})
	}
	return script, nil
}

func (b *txBuilder) estimateSize(
	coins []coinset.Coin, outputs []*wire.TxOut, changeScriptSize int,
) int64 {
	counts := countInputs(coins)
	return int64(txsizes.EstimateVirtualSize(
		counts.p2pkh, counts.p2tr, counts.p2wpkh, counts.nestedP2wpkh, outputs, changeScriptSize,
	))
}

func (b *txBuilder) insufficientFunds(required btcutil.Amount) error {
	return errors.INSUFFICIENT_FUNDS.New(
		"not enough funds: required %s, available %s", required, b.available,
	).WithMetadata(errors.InsufficientFundsMetadata{
		Required:  int64(required),
		Available: int64(b.available),
	})
}

func (b *txBuilder) newTx(
	coins []coinset.Coin, outputs []*wire.TxOut, fee, amount btcutil.Amount, vsize int64,
) *Tx {
	msgTx := wire.NewMsgTx(2)
	prevouts := make([]*wire.TxOut, 0, len(coins))
	for _, coin := range coins {
		in := wire.NewTxIn(wire.NewOutPoint(coin.Hash(), coin.Index()), nil, nil)
		in.Sequence = wire.MaxTxInSequenceNum - 1
		msgTx.AddTxIn(in)
		prevouts = append(prevouts, wire.NewTxOut(int64(coin.Value()), coin.PkScript()))
	}
	for _, out := range outputs {
		msgTx.AddTxOut(out)
	}
	msgTx.LockTime = b.lockTime

	return &Tx{
		msgTx:       msgTx,
		prevouts:    prevouts,
		fee:         fee,
		outputValue: amount,
		vsize:       vsize,
	}
}
