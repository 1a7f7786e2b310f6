package main

import (
	"os"

	"github.com/andewx/dieselshare/cmd/sharedemo/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
