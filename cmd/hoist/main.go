package main

import (
	"fmt"
	"os"

	"github.com/mgeovany/hoist/internal/cli"
)

func main() {
	if err := cli.Execute(os.Args[1:]); err != nil {
		if !cli.Reported(err) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
