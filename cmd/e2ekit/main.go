package main

import (
	"os"

	"github.com/kuitang/e2ekit/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
