package migrations

import (
	"database/sql"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// Run applies every pending migration from dir.
func Run(db *sql.DB, dir string, log *zap.Logger) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	log.Info("applying migrations", zap.String("dir", dir))
	return goose.Up(db, dir)
}
