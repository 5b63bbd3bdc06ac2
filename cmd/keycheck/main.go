package main

import (
	"os"

	"git.sr.ht/~jakintosh/keycheck/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
