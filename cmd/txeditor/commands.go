package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arkade-os/txeditor/internal/core/application"
	"github.com/arkade-os/txeditor/internal/core/domain"
	"github.com/arkade-os/txeditor/internal/core/ports"
	"github.com/arkade-os/txeditor/internal/infrastructure/feetarget"
	txbuilder "github.com/arkade-os/txeditor/internal/infrastructure/tx-builder/wallet"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

var (
	quoteCommand = cli.Command{
		Name:  "quote",
		Usage: "Build a tx from the wallet utxos and show its fee quote",
		Action: func(ctx *cli.Context) error {
			return quote(ctx)
		},
		Flags: []cli.Flag{
			walletFlag,
			toFlag,
			amountFlag,
			maxFlag,
			feeFlag,
			feerateFlag,
			feeLevelFlag,
			lockTimeFlag,
			maxInputsFlag,
			rbfFlag,
			acceptFlag,
			previewFlag,
		},
	}
	targetsCommand = cli.Command{
		Name:  "targets",
		Usage: "List the positions of the fee target selector",
		Action: func(ctx *cli.Context) error {
			return targets(ctx)
		},
	}
	prefsCommand = cli.Command{
		Name:  "prefs",
		Usage: "Show or change the fee editor preferences",
		Subcommands: cli.Commands{
			{
				Name:  "show",
				Usage: "Show the current preferences",
				Action: func(ctx *cli.Context) error {
					return showPrefs(ctx)
				},
			},
			{
				Name:  "set",
				Usage: "Set a preference",
				Flags: []cli.Flag{keyFlag, valueFlag},
				Action: func(ctx *cli.Context) error {
					return setPref(ctx)
				},
			},
			{
				Name:  "toggle",
				Usage: "Toggle a boolean preference",
				Flags: []cli.Flag{keyFlag},
				Action: func(ctx *cli.Context) error {
					return togglePref(ctx)
				},
			},
			{
				Name:  "reset",
				Usage: "Restore the default preferences",
				Action: func(ctx *cli.Context) error {
					return cfg.RepoManager().Preferences().Clear(ctx.Context)
				},
			},
		},
	}
)

type walletFile struct {
	Utxos         []txbuilder.Utxo `mapstructure:"utxos"`
	ChangeAddress string           `mapstructure:"change_address"`
}

type quoteResult struct {
	View  application.View `json:"view"`
	Txid  string           `json:"txid,omitempty"`
	TxHex string           `json:"txHex,omitempty"`
	Psbt  string           `json:"psbt,omitempty"`
}

func quote(ctx *cli.Context) error {
	amount := ctx.Int64(amountFlag.Name)
	sendMax := ctx.Bool(maxFlag.Name)
	if sendMax == (amount > 0) {
		return fmt.Errorf("either --amount or --max must be given")
	}
	if ctx.Bool(acceptFlag.Name) && ctx.Bool(previewFlag.Name) {
		return fmt.Errorf("cannot use --accept and --preview at the same time")
	}

	wallet, err := readWallet(ctx.String(walletFlag.Name))
	if err != nil {
		return err
	}

	outputValue := domain.OutputValue{Amount: btcutil.Amount(amount), Max: sendMax}
	opts := []txbuilder.Option{txbuilder.WithChangeAddress(wallet.ChangeAddress)}
	if ctx.IsSet(lockTimeFlag.Name) {
		opts = append(opts, txbuilder.WithLockTime(uint32(ctx.Uint64(lockTimeFlag.Name))))
	}
	if ctx.IsSet(maxInputsFlag.Name) {
		opts = append(opts, txbuilder.WithMaxInputs(ctx.Int(maxInputsFlag.Name)))
	}
	builder, err := cfg.TxBuilder(wallet.Utxos, ctx.String(toFlag.Name), outputValue, opts...)
	if err != nil {
		return err
	}

	editor, err := cfg.Editor(builder, outputValue)
	if err != nil {
		return err
	}
	defer editor.Cancel()

	if err := cfg.Notifier().RegisterHandler(ports.UserError, func(payload []byte) {
		var msg application.UserErrorMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			log.WithError(err).Warn("invalid user error notification")
			return
		}
		if msg.SessionId != editor.Id() {
			return
		}
		log.WithField("code", msg.Code).
			WithField("status", msg.Status).
			WithField("metadata", msg.Metadata).
			Warn(msg.Message)
	}); err != nil {
		return err
	}

	if err := editor.Open(ctx.Context); err != nil {
		return err
	}
	if err := applyFeeInputs(ctx, editor); err != nil {
		return err
	}
	// Fee edits only mark the tx dirty, rebuild it before quoting.
	if err := editor.Tick(ctx.Context); err != nil {
		return err
	}
	view := editor.Update(ctx.Context)

	result := quoteResult{View: view}
	if ctx.Bool(acceptFlag.Name) || ctx.Bool(previewFlag.Name) {
		tx, err := acceptTx(ctx.Context, editor, ctx.Bool(previewFlag.Name))
		if err != nil {
			return err
		}
		tx.SetRBF(ctx.Bool(rbfFlag.Name))
		txHex, err := tx.Hex()
		if err != nil {
			return err
		}
		ptx, err := tx.Psbt()
		if err != nil {
			return err
		}
		result.Txid = tx.Txid()
		result.TxHex = txHex
		result.Psbt = ptx
	}

	return printJSON(result)
}

func applyFeeInputs(ctx *cli.Context, editor *application.Editor) error {
	if ctx.IsSet(feeLevelFlag.Name) {
		if err := editor.SelectFeeTarget(ctx.Context, ctx.Int(feeLevelFlag.Name)); err != nil {
			return err
		}
	}
	if ctx.IsSet(feerateFlag.Name) {
		feerate, err := decimal.NewFromString(ctx.String(feerateFlag.Name))
		if err != nil {
			return fmt.Errorf("invalid feerate: %s", err)
		}
		if err := editor.EditFeerate(ctx.Context, &feerate, true); err != nil {
			return err
		}
	}
	if ctx.IsSet(feeFlag.Name) {
		fee := ctx.Int64(feeFlag.Name)
		if err := editor.EditFee(ctx.Context, &fee, true); err != nil {
			return err
		}
	}
	return nil
}

func acceptTx(ctx context.Context, editor *application.Editor, preview bool) (*txbuilder.Tx, error) {
	accept := editor.Accept
	if preview {
		accept = editor.Preview
	}
	if err := accept(); err != nil {
		return nil, err
	}

	tx, err := editor.Run(ctx)
	if err != nil {
		return nil, err
	}
	walletTx, ok := tx.(*txbuilder.Tx)
	if !ok {
		return nil, fmt.Errorf("unexpected tx type %T", tx)
	}
	return walletTx, nil
}

func readWallet(path string) (*walletFile, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read wallet file: %s", err)
	}

	wallet := &walletFile{}
	if err := v.Unmarshal(wallet); err != nil {
		return nil, fmt.Errorf("invalid wallet file: %s", err)
	}
	if len(wallet.Utxos) <= 0 {
		return nil, fmt.Errorf("wallet file has no utxos")
	}
	return wallet, nil
}

type targetInfo struct {
	Pos          int    `json:"pos"`
	Dynamic      bool   `json:"dynamic"`
	Label        string `json:"label"`
	FeeratePerKb *int64 `json:"feeratePerKb"`
	Current      bool   `json:"current"`
}

func targets(ctx *cli.Context) error {
	prefs, err := loadPrefs(ctx.Context)
	if err != nil {
		return err
	}

	selector := cfg.FeeTargetSelector()
	current, err := selector.Current(ctx.Context)
	if err != nil {
		return err
	}

	count := len(feetarget.StaticFeerates)
	if prefs.DynamicFees {
		count = len(feetarget.EtaTargets)
		if prefs.MempoolFees {
			count = len(feetarget.DepthTargets)
		}
	}

	list := make([]targetInfo, 0, count)
	for pos := 0; pos < count; pos++ {
		target, err := selector.Select(ctx.Context, pos)
		if err != nil {
			return err
		}
		list = append(list, targetInfo{
			Pos:          pos,
			Dynamic:      target.Dynamic,
			Label:        targetLabel(prefs, pos),
			FeeratePerKb: target.FeeratePerKb,
			Current:      pos == current.Pos,
		})
	}
	return printJSON(list)
}

func targetLabel(prefs *domain.Preferences, pos int) string {
	switch {
	case !prefs.DynamicFees:
		return fmt.Sprintf("%d sat/kvB", feetarget.StaticFeerates[pos])
	case prefs.MempoolFees:
		return feetarget.DepthTargetText(feetarget.DepthTargets[pos])
	default:
		return feetarget.EtaTargetText(feetarget.EtaTargets[pos])
	}
}

func showPrefs(ctx *cli.Context) error {
	prefs, err := loadPrefs(ctx.Context)
	if err != nil {
		return err
	}

	values := make(map[string]string)
	for _, key := range prefs.Keys() {
		value, err := prefs.Get(key)
		if err != nil {
			return err
		}
		values[key] = value
	}
	return printJSON(values)
}

func setPref(ctx *cli.Context) error {
	prefs, err := loadPrefs(ctx.Context)
	if err != nil {
		return err
	}
	if err := prefs.Set(ctx.String(keyFlag.Name), ctx.String(valueFlag.Name)); err != nil {
		return err
	}
	prefs.UpdatedAt = time.Now()
	return cfg.RepoManager().Preferences().Upsert(ctx.Context, *prefs)
}

func togglePref(ctx *cli.Context) error {
	prefs, err := loadPrefs(ctx.Context)
	if err != nil {
		return err
	}
	value, err := prefs.Toggle(ctx.String(keyFlag.Name))
	if err != nil {
		return err
	}
	prefs.UpdatedAt = time.Now()
	if err := cfg.RepoManager().Preferences().Upsert(ctx.Context, *prefs); err != nil {
		return err
	}
	fmt.Printf("%s: %t\n", ctx.String(keyFlag.Name), value)
	return nil
}

func loadPrefs(ctx context.Context) (*domain.Preferences, error) {
	prefs, err := cfg.RepoManager().Preferences().Get(ctx)
	if err != nil {
		return nil, err
	}
	if prefs == nil {
		prefs = domain.NewPreferences()
	}
	return prefs, nil
}
