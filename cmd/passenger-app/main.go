package main

import (
	"log"

	"ride-hail-client/internal/common/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	cfg.Print()

	if err := Run(cfg); err != nil {
		log.Fatalf("❌ Passenger app failed: %v", err)
	}
}
