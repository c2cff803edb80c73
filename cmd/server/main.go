// Package main is the entry point for the td3pattern API server
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/james-see/td3pattern/pkg/api"
	"github.com/james-see/td3pattern/pkg/config"
)

func main() {
	configPath := flag.String("config", "", "Config file (default ~/.config/td3pattern/config.yaml)")
	port := flag.Int("port", 0, "Server port (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.ServerPort = *port
	}

	fmt.Printf("Starting td3pattern API server on port %d...\n", cfg.ServerPort)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", cfg.ServerPort)

	if err := api.StartServer(cfg.ServerPort); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return config.DefaultConfig(), nil
		}
	}
	return config.Load(path)
}
