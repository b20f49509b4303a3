package main

import (
	"os"

	"github.com/quangtb/stockvn/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
