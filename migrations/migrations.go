// Package migrations embeds the goose SQL migrations for the content bot
// schema (processed_items, daily_stats, channel_checks).
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

const dialect = "sqlite3"

// FS holds the embedded migration files.
//
//go:embed *.sql
var FS embed.FS

// Run brings the schema up to the latest version.
func Run(db *sql.DB) error {
	goose.SetBaseFS(FS)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
