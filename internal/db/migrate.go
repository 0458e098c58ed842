package db

import (
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunMigrations applies all pending migrations from migrationsPath.
func RunMigrations(migrationsPath string, config Config) error {
	m, err := migrate.New("file://"+migrationsPath, config.MigrateURL())
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			log.Printf("[DB] migration source close: %v", srcErr)
		}
		if dbErr != nil {
			log.Printf("[DB] migration db close: %v", dbErr)
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Println("[DB] schema up to date")
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Println("[DB] migrations applied")
	return nil
}
