package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/asilva/triage/internal/app"
	"github.com/asilva/triage/internal/config"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "path to config file")
	flag.Parse()

	if err := app.Run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "triage:", err)
		os.Exit(1)
	}
}
