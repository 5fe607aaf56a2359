package main

import (
	"os"

	"github.com/kramelec/eRPC/cmd/erpcd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
