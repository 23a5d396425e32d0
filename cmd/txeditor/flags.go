package main

import (
	"github.com/urfave/cli/v2"
)

const (
	walletFlagName    = "wallet"
	toFlagName        = "to"
	amountFlagName    = "amount"
	maxFlagName       = "max"
	feeFlagName       = "fee"
	feerateFlagName   = "feerate"
	feeLevelFlagName  = "fee-level"
	lockTimeFlagName  = "locktime"
	maxInputsFlagName = "max-inputs"
	rbfFlagName       = "rbf"
	acceptFlagName    = "accept"
	previewFlagName   = "preview"
	keyFlagName       = "key"
	valueFlagName     = "value"
)

var (
	walletFlag = &cli.StringFlag{
		Name:     walletFlagName,
		Usage:    "path of the wallet file (json, yaml or toml) listing utxos and change address",
		Required: true,
	}
	toFlag = &cli.StringFlag{
		Name:     toFlagName,
		Usage:    "destination address",
		Required: true,
	}
	amountFlag = &cli.Int64Flag{
		Name:  amountFlagName,
		Usage: "amount to send in sats",
	}
	maxFlag = &cli.BoolFlag{
		Name:  maxFlagName,
		Usage: "send the whole balance",
	}
	feeFlag = &cli.Int64Flag{
		Name:  feeFlagName,
		Usage: "absolute fee in sats",
	}
	feerateFlag = &cli.StringFlag{
		Name:  feerateFlagName,
		Usage: "feerate in sat/vbyte",
	}
	feeLevelFlag = &cli.IntFlag{
		Name:  feeLevelFlagName,
		Usage: "position of the fee target slider",
		Value: -1,
	}
	lockTimeFlag = &cli.Uint64Flag{
		Name:  lockTimeFlagName,
		Usage: "tx locktime",
	}
	maxInputsFlag = &cli.IntFlag{
		Name:  maxInputsFlagName,
		Usage: "maximum number of utxos spent by the tx",
	}
	rbfFlag = &cli.BoolFlag{
		Name:  rbfFlagName,
		Usage: "signal replace-by-fee",
		Value: true,
	}
	acceptFlag = &cli.BoolFlag{
		Name:  acceptFlagName,
		Usage: "accept the quoted tx and print it in hex and psbt format",
	}
	previewFlag = &cli.BoolFlag{
		Name:  previewFlagName,
		Usage: "accept the quoted tx for preview and print it in hex and psbt format",
	}
	keyFlag = &cli.StringFlag{
		Name:     keyFlagName,
		Usage:    "preference key",
		Required: true,
	}
	valueFlag = &cli.StringFlag{
		Name:     valueFlagName,
		Usage:    "preference value",
		Required: true,
	}
)
