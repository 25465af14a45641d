package main

import (
	"os"

	"github.com/omniql-engine/chatdb/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
