// Entry point for the operator CLI
package main

import (
	"fmt"
	"os"

	"attendance.service/internal/cli"
	"attendance.service/internal/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cli.NewRootCommand(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}
