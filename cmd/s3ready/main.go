// Package main is the entry point for the s3ready validator.
package main

import (
	"os"

	"github.com/kumasuke/s3ready/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
