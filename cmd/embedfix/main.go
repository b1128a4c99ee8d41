package main

import (
	"os"

	"github.com/embedfixer/embedfixer/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
