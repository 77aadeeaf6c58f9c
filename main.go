package main

import (
	"os"

	"github.com/quicktypofix/quicktypofix/internal/cli"
)

func main() {
	code, _ := cli.Run(os.Args, nil)
	os.Exit(code)
}
