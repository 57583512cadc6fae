package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"taxed-token-ledger/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		logrus.Error(err)
		os.Exit(cli.GetExitCode(err))
	}
}
