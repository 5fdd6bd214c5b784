package main

import (
	"os"

	"github.com/conneroisu/sitesmith/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
