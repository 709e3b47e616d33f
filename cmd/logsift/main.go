package main

import (
	"os"

	"github.com/suykerbuyk/logsift/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
