package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

type PgFlackRepository struct {
	conn *sql.DB
}

func NewPgFlackRepository(dsn string) (*PgFlackRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgFlackRepository{conn: db}, nil
}

// Migrate applies any pending schema migrations from path.
func (db *PgFlackRepository) Migrate(path string) error {
	driver, err := migratepg.WithInstance(db.conn, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("migrate driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+path, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}

	return nil
}

func (db *PgFlackRepository) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *PgFlackRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
