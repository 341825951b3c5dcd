package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/lorjala/lesc"
	"github.com/lorjala/lesc/bond"
	"github.com/lorjala/lesc/pairing"
	"github.com/lorjala/lesc/sim"
	"github.com/lorjala/lesc/uart"
)

func main() {
	app := cli.NewApp()
	app.Name = "lescpair"
	app.Usage = "run one LE Secure Connections passkey pairing between two adapters"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "central-port",
			Usage: "serial port of the initiating device",
		},
		cli.StringFlag{
			Name:  "peripheral-port",
			Usage: "serial port of the responding device",
		},
		cli.UintFlag{
			Name:  "baud",
			Value: 1000000,
			Usage: "serial baud rate",
		},
		cli.DurationFlag{
			Name:  "timeout",
			Value: pairing.DefaultAuthTimeout,
			Usage: "overall deadline for the pairing attempt",
		},
		cli.StringFlag{
			Name:  "bond-file",
			Usage: "persist the resulting bond to this file (simulator only)",
		},
		cli.StringFlag{
			Name:  "identity",
			Usage: "advertising name to pair against, random when empty",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "debug logging",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.Bool("debug") {
		lesc.SetLogLevelMax()
	}

	central, peripheral, err := adapters(c)
	if err != nil {
		return err
	}

	status, err := pairing.Run(pairing.Config{
		Central:     central,
		Peripheral:  peripheral,
		Identity:    c.String("identity"),
		AuthTimeout: c.Duration("timeout"),
	})
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("pairing failed: %v", err), 1)
	}

	fmt.Printf("pairing succeeded, bonded=%v\n", status.Bonded)
	return nil
}

// adapters builds the two endpoints: serial-attached devices when both
// ports are given, the in-process simulator otherwise.
func adapters(c *cli.Context) (lesc.Adapter, lesc.Adapter, error) {
	cp, pp := c.String("central-port"), c.String("peripheral-port")

	if cp == "" && pp == "" {
		var opts []sim.Option
		if f := c.String("bond-file"); f != "" {
			opts = append(opts, sim.WithBondStore(bond.NewStore(f)))
		}
		m := sim.NewMedium(opts...)
		return m.NewAdapter(), m.NewAdapter(), nil
	}

	if cp == "" || pp == "" {
		return nil, nil, cli.NewExitError("both --central-port and --peripheral-port are required for serial devices", 1)
	}

	central, err := serialAdapter(cp, c.Uint("baud"))
	if err != nil {
		return nil, nil, err
	}
	peripheral, err := serialAdapter(pp, c.Uint("baud"))
	if err != nil {
		central.Close()
		return nil, nil, err
	}
	return central, peripheral, nil
}

func serialAdapter(port string, baud uint) (*uart.Adapter, error) {
	rw, err := uart.OpenPort(port, baud)
	if err != nil {
		return nil, err
	}
	a, err := uart.NewAdapter(rw)
	if err != nil {
		rw.Close()
		return nil, err
	}
	return a, nil
}
