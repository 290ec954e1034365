package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/example/rig/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd, rt := cli.NewRootCmd()
	defer rt.Close()

	if err := rootCmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
