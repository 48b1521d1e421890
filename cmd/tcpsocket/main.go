package main

import (
	"os"

	"github.com/TheSmallBoat/tcpsocket/cmd/tcpsocket/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
