package main

import (
	"context"

	"exthash/pkg/cli"
)

var rootCmd = cli.Init("exthash", "Interactive shell over a folder of extendible hash indexes")

func main() {
	initRoot()
	initServe()
	rootCmd.MustExecute(context.Background())
}
