package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var files embed.FS

// Run применяет все миграции из sql/, встроенные в бинарник
func Run(db *sql.DB) error {
	goose.SetBaseFS(files)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	slog.Info("running migrations", slog.String("dir", "sql"))
	if err := goose.Up(db, "sql"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
