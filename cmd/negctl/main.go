package main

import (
	"fmt"
	"os"

	"github.com/negwm/negwm/internal/ui"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.Red("error:"), err)
		os.Exit(1)
	}
}
