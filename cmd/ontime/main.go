package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ontime:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "ontime",
		HelpName:  "ontime",
		Usage:     "run commands at the times listed in today's plan",
		UsageText: "ontime [options] [command]",
		Version:   version,
		Flags:     globalFlags,
		Action:    runDaemon,
		Commands: []cli.Command{
			{
				Name:   "check",
				Usage:  "parse today's plan and show what each event would do now",
				Action: check,
			},
			{
				Name:   "history",
				Usage:  "show recently dispatched commands",
				Action: showHistory,
				Flags: []cli.Flag{
					cli.IntFlag{
						Name:  "limit, n",
						Value: 20,
						Usage: "number of runs to show",
					},
				},
			},
		},
	}
}
