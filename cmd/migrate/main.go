package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"groupdesk/internal/config"
	"groupdesk/internal/database"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mongodb"
)

const migrationsDir = "internal/database/migrations"

func main() {
	var (
		command = flag.String("command", "", "Migration command: up, down, version, force, create")
		steps   = flag.Int("steps", 0, "Number of migration steps (for up/down)")
		version = flag.Int("version", 0, "Migration version (for force)")
		name    = flag.String("name", "", "Migration name (for create)")
	)
	flag.Parse()

	if *command == "" {
		fmt.Println("Usage: go run ./cmd/migrate -command [up|down|version|force|create] [options]")
		fmt.Println("Commands:")
		fmt.Println("  up             - Apply all pending index migrations")
		fmt.Println("  down           - Roll back migrations")
		fmt.Println("  version        - Show current migration version")
		fmt.Println("  force          - Force set migration version")
		fmt.Println("  create         - Create new migration files")
		fmt.Println("")
		fmt.Println("Options:")
		fmt.Println("  -steps N       - Number of steps for up/down")
		fmt.Println("  -version N     - Version number for force")
		fmt.Println("  -name NAME     - Migration name for create")
		os.Exit(1)
	}

	if *command == "create" {
		if *name == "" {
			log.Fatal("Migration name required for create command")
		}
		if err := createMigration(migrationsDir, *name); err != nil {
			log.Fatalf("Failed to create migration: %v", err)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db := database.New(cfg.Database)
	client, err := db.Connect(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.Close(context.Background()); err != nil {
			log.Printf("Failed to close database connection: %v", err)
		}
	}()

	driver, err := mongodb.WithInstance(client, &mongodb.Config{DatabaseName: cfg.Database.Name})
	if err != nil {
		log.Fatalf("Failed to create migration driver: %v", err)
	}

	src, err := database.MigrationSource()
	if err != nil {
		log.Fatalf("Failed to open migrations: %v", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "mongodb", driver)
	if err != nil {
		log.Fatalf("Failed to create migration instance: %v", err)
	}

	switch *command {
	case "up":
		if *steps > 0 {
			err = m.Steps(*steps)
		} else {
			err = m.Up()
		}
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("No migrations to apply")
		} else if err != nil {
			log.Fatalf("Migration up failed: %v", err)
		} else {
			fmt.Println("Migrations applied successfully")
		}

	case "down":
		n := *steps
		if n <= 0 {
			n = 1
		}
		err = m.Steps(-n)
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("No migrations to roll back")
		} else if err != nil {
			log.Fatalf("Migration down failed: %v", err)
		} else {
			fmt.Println("Migrations rolled back successfully")
		}

	case "version":
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("No migrations applied")
			return
		}
		if err != nil {
			log.Fatalf("Failed to get version: %v", err)
		}
		fmt.Printf("Current version: %d\n", v)
		if dirty {
			fmt.Println("Database is in dirty state")
		} else {
			fmt.Println("Database is clean")
		}

	case "force":
		if *version == 0 {
			log.Fatal("Version number required for force command")
		}
		if err := m.Force(*version); err != nil {
			log.Fatalf("Force migration failed: %v", err)
		}
		fmt.Printf("Migration version forced to %d\n", *version)

	default:
		log.Fatalf("Unknown command: %s", *command)
	}
}

func createMigration(dir, name string) error {
	next := nextMigrationNumber(dir)
	up := filepath.Join(dir, fmt.Sprintf("%06d_%s.up.json", next, name))
	down := filepath.Join(dir, fmt.Sprintf("%06d_%s.down.json", next, name))

	for _, path := range []string{up, down} {
		if err := os.WriteFile(path, []byte("[]\n"), 0o644); err != nil {
			return err
		}
	}

	fmt.Printf("Created migration files:\n  %s\n  %s\n", up, down)
	return nil
}

// nextMigrationNumber returns the version after the highest one in dir.
func nextMigrationNumber(dir string) int {
	files, err := os.ReadDir(dir)
	if err != nil {
		return 1
	}

	maxNum := 0
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		var num int
		if _, err := fmt.Sscanf(file.Name(), "%d_", &num); err == nil && num > maxNum {
			maxNum = num
		}
	}
	return maxNum + 1
}
