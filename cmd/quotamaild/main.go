package main

import (
	"os"

	"github.com/quotamail/quotamail/internal/cli"
)

func main() {
	cli.InitCLI()
	os.Exit(cli.ExecuteWithErrorCode(os.Args[1:]))
}
