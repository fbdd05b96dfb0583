package main

import (
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/skylark-uav/skylark/cmd/skylark-exec/app"
)

func main() {
	if err := app.NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
