package main

import (
	"os"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
)

var (
	log = logging.Logger("storage_market")
)

func main() {
	if err := logging.SetLogLevel("*", "info"); err != nil {
		log.Fatal(err)
	}
	app := &cli.App{
		Name:    "storage_market",
		Usage:   "decentralized storage marketplace node",
		Version: "1.0.0",
		Flags:   []cli.Flag{},
		Commands: []*cli.Command{
			cmdInitDb,
			cmdServe,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
