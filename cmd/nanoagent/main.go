package main

import (
	"fmt"
	"os"

	"github.com/soyeahso/nanoagent/internal/cli"
	"github.com/tillberg/autorestart"
)

func main() {
	// Re-exec when the binary is rebuilt in place.
	go autorestart.RestartOnChange()

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "nanoagent:", err)
		os.Exit(1)
	}
}
