package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/pkg/errors"
	"github.com/rigado/hciuart"
	"github.com/rigado/hciuart/bridge"
	"github.com/rigado/hciuart/config"
	"github.com/rigado/hciuart/linux/hci/socket"
	"github.com/rigado/hciuart/timesync"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "hciuart"
	app.Usage = "bridge an HCI controller to a host over an H:4 UART"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config, c", Usage: "configuration file (yaml, json or toml)", EnvVar: config.EnvPrefix + "_CONFIG"},
		cli.StringFlag{Name: "uart", Usage: "host serial device, overrides uart.path"},
		cli.UintFlag{Name: "baud", Usage: "host serial baud rate, overrides uart.baud"},
		cli.IntFlag{Name: "hci", Value: -2, Usage: "hci device index, -1 for the first available"},
		cli.StringFlag{Name: "log-level", Usage: "trace, debug, info, warn or error"},
		cli.BoolFlag{Name: "verbose, v", Usage: "trace logging, overrides --log-level"},
	}
	app.Action = run
	app.Commands = []cli.Command{
		{
			Name:   "run",
			Usage:  "run the bridge until interrupted",
			Action: run,
		},
		{
			Name:   "config",
			Usage:  "print the effective configuration",
			Action: dumpConfig,
		},
		{
			Name:  "devices",
			Usage: "list hci controllers",
			Action: func(c *cli.Context) error {
				ids, err := socket.Devices()
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Printf("hci%d\n", id)
				}
				return nil
			},
		},
		{
			Name:  "vendor-opcode",
			Usage: "print the opcode of the ISO timesync vendor command",
			Action: func(c *cli.Context) error {
				fmt.Printf("0x%04x\n", timesync.OpIsoTimesync)
				return nil
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("hciuart: %v", err)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.GlobalString("config"))
	if err != nil {
		return nil, err
	}

	if p := c.GlobalString("uart"); p != "" {
		cfg.Uart.Path = p
	}
	if b := c.GlobalUint("baud"); b != 0 {
		cfg.Uart.Baud = b
	}
	if id := c.GlobalInt("hci"); id != -2 {
		cfg.Controller.HCIDev = id
	}
	if l := c.GlobalString("log-level"); l != "" {
		cfg.Log.Level = l
	}
	return cfg, cfg.Validate()
}

func dumpConfig(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	return cfg.Dump(os.Stdout)
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	if err := hciuart.SetLogLevel(cfg.Log.Level); err != nil {
		return errors.Wrapf(err, "log level %q", cfg.Log.Level)
	}
	if c.GlobalBool("verbose") {
		hciuart.SetLogLevelMax()
	}
	hciuart.SetLogOutput(cfg.Log.File)
	lg := hciuart.GetLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = hciuart.WithSigHandler(ctx, cancel)

	b, err := bridge.New(cfg, bridge.Hardware{}, hciuart.OptErrorHandler(func(err error) {
		if errors.Cause(err) == context.Canceled {
			return
		}
		lg.Errorf("bridge: %v", err)
		cancel()
	}))
	if err != nil {
		return err
	}
	if err := b.Start(ctx); err != nil {
		return errors.Wrap(err, "can't start bridge")
	}

	<-ctx.Done()
	st := b.Stats()
	lg.Infof("stopping: rx %d packets, %d forwarded, %d handled, %d submit errors, %d sent",
		st.Framer.Packets, st.Forwarded, st.Handled, st.SubmitErrors, st.Sent)
	return b.Close()
}
