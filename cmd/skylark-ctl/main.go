package main

import (
	"os"

	"github.com/skylark-uav/skylark/cmd/skylark-ctl/app"
)

func main() {
	if err := app.NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
