package main

import (
	"fmt"
	"os"

	"github.com/cuihairu/gamelib/internal/cli"
)

func main() {
	if err := cli.NewRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gamelib:", err)
		os.Exit(1)
	}
}
