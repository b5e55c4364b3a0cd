package store

import (
	"fmt"
	"log"
	"os"
)

// RunMigrateCommand handles the 'migrate' subcommand dispatching.
func RunMigrateCommand(args []string, dbPath string) {
	if len(args) < 1 {
		printMigrateHelp()
		os.Exit(1)
	}

	// Open without running migrations: the operator drives them here.
	s, err := OpenWithoutMigrations(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer s.Close()

	switch args[0] {
	case "up":
		log.Printf("Running migrations...")
		if err := s.MigrateUp(); err != nil {
			log.Fatalf("Migration up failed: %v", err)
		}
		log.Println("All migrations applied")
		logMigrateVersion(s)

	case "down":
		log.Printf("Rolling back one migration...")
		if err := s.MigrateDown(); err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
		log.Println("Migration rolled back")
		logMigrateVersion(s)

	case "status":
		version, dirty, err := s.MigrateVersion()
		if err != nil {
			log.Fatalf("Failed to get migration status: %v", err)
		}
		fmt.Printf("Current version: %d\n", version)
		fmt.Printf("Dirty: %v\n", dirty)
		if dirty {
			fmt.Println("WARNING: a migration failed mid-execution; inspect the database before retrying")
		}

	case "help":
		printMigrateHelp()

	default:
		fmt.Printf("Unknown migrate action: %s\n\n", args[0])
		printMigrateHelp()
		os.Exit(1)
	}
}

func logMigrateVersion(s *Store) {
	version, dirty, err := s.MigrateVersion()
	if err != nil {
		log.Printf("failed to read migration version: %v", err)
		return
	}
	log.Printf("Current version: %d (dirty: %v)", version, dirty)
}

func printMigrateHelp() {
	fmt.Println(`Usage: peakline migrate [-db <path>] <action>

Actions:
  up      Apply all pending migrations
  down    Roll back one migration
  status  Show current schema version
  help    Show this help`)
}
