package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/arkade-os/txeditor/internal/config"
	"github.com/arkade-os/txeditor/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var (
	Version string
	cfg     *config.Config
)

func main() {
	app := cli.NewApp()
	app.Version = Version
	app.Name = "txeditor"
	app.Usage = "quote and tune the fee of bitcoin transactions"
	app.Commands = append(
		app.Commands,
		&quoteCommand,
		&prefsCommand,
		&targetsCommand,
		&versionCommand,
	)
	app.Flags = config.Flags
	app.Before = func(ctx *cli.Context) error {
		if ctx.Args().First() == versionCommand.Name {
			return nil
		}

		c, err := config.LoadConfig(ctx)
		if err != nil {
			return fmt.Errorf("invalid config: %s", err)
		}
		log.SetLevel(log.Level(c.LogLevel))
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid config: %s", err)
		}
		log.Debugf("config: %s", c)

		cfg = c
		return nil
	}
	app.After = func(_ *cli.Context) error {
		if cfg != nil {
			cfg.Close()
		}
		return nil
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Println(fmt.Errorf("error: %v", err))
		if typed, ok := errors.FromError(err); ok {
			// nolint:all
			printJSON(errorDetails{
				Code:     typed.CodeName(),
				Status:   typed.GrpcCode().String(),
				Metadata: typed.Metadata(),
			})
		}
		os.Exit(1)
	}
}

type errorDetails struct {
	Code     string            `json:"code"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

var versionCommand = cli.Command{
	Name:  "version",
	Usage: "Show the version of the tool",
	Action: func(ctx *cli.Context) error {
		fmt.Println(Version)
		return nil
	},
}

func printJSON(resp interface{}) error {
	jsonBytes, err := json.MarshalIndent(resp, "", "\t")
	if err != nil {
		return err
	}
	fmt.Println(string(jsonBytes))
	return nil
}
