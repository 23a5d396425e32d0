package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/arkade-os/txeditor/internal/core/domain"
	"github.com/arkade-os/txeditor/internal/core/ports"
	badgerdb "github.com/arkade-os/txeditor/internal/infrastructure/db/badger"
	inmemorydb "github.com/arkade-os/txeditor/internal/infrastructure/db/inmemory"
	pgdb "github.com/arkade-os/txeditor/internal/infrastructure/db/postgres"
	redisdb "github.com/arkade-os/txeditor/internal/infrastructure/db/redis"
	sqlitedb "github.com/arkade-os/txeditor/internal/infrastructure/db/sqlite"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	log "github.com/sirupsen/logrus"
)

//go:embed sqlite/migration/*
var migrations embed.FS

//go:embed postgres/migration/*
var pgMigration embed.FS

var preferencesStoreTypes = map[string]func(...interface{}) (domain.PreferencesRepository, error){
	"badger":   badgerdb.NewPreferencesRepository,
	"inmemory": inmemorydb.NewPreferencesRepository,
	"redis":    redisdb.NewPreferencesRepository,
	"sqlite":   sqlitedb.NewPreferencesRepository,
	"postgres": pgdb.NewPreferencesRepository,
}

const (
	sqliteDbFile = "sqlite.db"
)

type ServiceConfig struct {
	DataStoreType   string
	DataStoreConfig []interface{}
}

type service struct {
	preferencesStore domain.PreferencesRepository
}

func NewService(config ServiceConfig) (ports.RepoManager, error) {
	preferencesStoreFactory, ok := preferencesStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid data store type: %s", config.DataStoreType)
	}

	var preferencesStore domain.PreferencesRepository
	var err error

	switch config.DataStoreType {
	case "badger", "inmemory", "redis":
		preferencesStore, err = preferencesStoreFactory(config.DataStoreConfig...)
		if err != nil {
			return nil, fmt.Errorf("failed to open preferences store: %s", err)
		}

	case "postgres":
		if len(config.DataStoreConfig) != 2 {
			return nil, fmt.Errorf("invalid data store config for postgres")
		}

		dsn, ok := config.DataStoreConfig[0].(string)
		if !ok {
			return nil, fmt.Errorf("invalid DSN for postgres")
		}

		autoCreate, ok := config.DataStoreConfig[1].(bool)
		if !ok {
			return nil, fmt.Errorf("invalid autocreate flag for postgres")
		}

		db, err := pgdb.OpenDb(dsn, autoCreate)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres db: %s", err)
		}

		pgDriver, err := migratepg.WithInstance(db, &migratepg.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to init postgres migration driver: %s", err)
		}

		if err := runMigrations(pgMigration, "postgres/migration", "postgres", pgDriver); err != nil {
			return nil, fmt.Errorf("failed to run postgres migrations: %s", err)
		}

		preferencesStore, err = preferencesStoreFactory(db)
		if err != nil {
			return nil, fmt.Errorf("failed to open preferences store: %s", err)
		}

	case "sqlite":
		if len(config.DataStoreConfig) != 1 {
			return nil, fmt.Errorf("invalid data store config")
		}

		baseDir, ok := config.DataStoreConfig[0].(string)
		if !ok {
			return nil, fmt.Errorf("invalid base directory")
		}

		db, err := openSqlite(baseDir)
		if err != nil {
			return nil, err
		}

		preferencesStore, err = preferencesStoreFactory(db)
		if err != nil {
			return nil, fmt.Errorf("failed to open preferences store: %s", err)
		}
	}

	return &service{preferencesStore}, nil
}

func (s *service) Preferences() domain.PreferencesRepository {
	return s.preferencesStore
}

func (s *service) Close() {
	s.preferencesStore.Close()
}

// openSqlite opens the db file in baseDir, or an in-memory db if baseDir is empty, and brings
// its schema up to date.
func openSqlite(baseDir string) (*sql.DB, error) {
	dbFile := ":memory:"
	if len(baseDir) > 0 {
		dbFile = filepath.Join(baseDir, sqliteDbFile)
	}
	db, err := sqlitedb.OpenDb(dbFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %s", err)
	}

	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to init driver: %s", err)
	}

	if err := runMigrations(migrations, "sqlite/migration", "txeditordb", driver); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %s", err)
	}
	return db, nil
}

func runMigrations(fs embed.FS, path, dbName string, driver database.Driver) error {
	source, err := iofs.New(fs, path)
	if err != nil {
		return fmt.Errorf("failed to embed migrations: %s", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, dbName, driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %s", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is in a dirty migration state; manual intervention required")
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return err
	}
	log.Debugf("migrated %s db from version %d", dbName, version)
	return nil
}
