package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rl1809/commerce-core/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		var reported *cli.ReportedError
		if !errors.As(err, &reported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
