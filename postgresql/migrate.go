package postgresql

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	log "github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var fs embed.FS

// Migrate applies all embedded migrations that are not applied yet.
func Migrate(databaseUrl string) error {
	m, err := newMigrate(databaseUrl)
	if err != nil {
		return err
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("could not get current database migration version: %w", err)
	}
	log.Printf("Current database version is %d, dirty = %t", version, dirty)

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Printf("Database is up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	return nil
}

// MigrateDown reverts all migrations. Used by tests.
func MigrateDown(databaseUrl string) error {
	m, err := newMigrate(databaseUrl)
	if err != nil {
		return err
	}
	defer m.Close()

	err = m.Down()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to revert database migrations: %w", err)
	}

	return nil
}

func newMigrate(databaseUrl string) (*migrate.Migrate, error) {
	d, err := iofs.New(fs, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to find embedded migrations folder: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", d, databaseUrl)
	if err != nil {
		return nil, fmt.Errorf("could not connect to db for migrations: %w", err)
	}
	m.Log = &MigrationLogger{}
	return m, nil
}

type MigrationLogger struct {
}

func (l *MigrationLogger) Printf(format string, v ...interface{}) {
	log.Printf("Applied migration "+format, v...)
}

// Verbose should return true when verbose logging output is wanted
func (l *MigrationLogger) Verbose() bool {
	return false
}
