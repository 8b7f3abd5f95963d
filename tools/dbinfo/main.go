package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Run with `go run ./tools/dbinfo info <segment file>`

func main() {
	app := &cli.App{
		Name:      "Chainbase Segment Toolbox",
		HelpName:  "dbinfo",
		Usage:     "A set of utilities to inspect database segment files",
		Copyright: "(c) 2024 Fantom Foundation",
		Flags:     []cli.Flag{},
		Commands: []*cli.Command{
			&getInfoCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
