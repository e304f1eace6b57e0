// dbmigrate applies, rolls back, or inspects the schema version of a
// courtengine database using the migration set embedded in the store
// package. The server migrates up automatically on startup; this tool
// exists for rollbacks and version checks.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"

	"github.com/codr1/courtengine/internal/store"
)

func main() {
	var (
		dbPath  = flag.String("db", "", "Path to the SQLite database")
		command = flag.String("command", "", "Command to run (up, down, version)")
	)
	flag.Parse()

	if *dbPath == "" || *command == "" {
		log.Println("Both flags are required:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	m, err := store.Migrator(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open migrator: %v", err)
	}
	defer m.Close()

	switch *command {
	case "up":
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		log.Println("Database is up to date")

	case "down":
		if err := m.Steps(-1); err != nil {
			log.Fatalf("Failed to roll back: %v", err)
		}
		log.Println("Rolled back one migration")

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			log.Fatalf("Failed to read version: %v", err)
		}
		log.Printf("Current version: %d, dirty: %v", version, dirty)

	default:
		log.Fatalf("Unknown command: %s", *command)
	}
}
