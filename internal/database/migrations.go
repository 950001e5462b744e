package database

import (
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.json
var migrationFiles embed.FS

// MigrationSource exposes the embedded index migrations to golang-migrate.
// Each file is a JSON array of MongoDB commands.
func MigrationSource() (source.Driver, error) {
	driver, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	return driver, nil
}
