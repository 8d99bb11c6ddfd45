// Migrate applies database migrations up or down.
// Usage: migrate [up|down] (default up). Requires DATABASE_URL.
package main

import (
	"log"
	"os"

	"sessiongate/internal/config"
	"sessiongate/internal/db/migrate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	direction := "up"
	if len(os.Args) > 1 {
		direction = os.Args[1]
	}

	if err := migrate.Run(cfg.DatabaseURL, direction); err != nil {
		log.Fatalf("migrate %s: %v", direction, err)
	}
	log.Printf("migrate %s: done", direction)
}
