package main

import (
	"errors"
	"flag"
	"log"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/dmatch/dmatch-api/pkg/config"
	"github.com/dmatch/dmatch-api/pkg/database"
	"github.com/dmatch/dmatch-api/pkg/logger"
)

// migrate applies or rolls back the SQL files under migrations/.
//
//	go run ./cmd/migrate -direction up
//	go run ./cmd/migrate -direction down -steps 1
func main() {
	direction := flag.String("direction", "up", "up, down or version")
	steps := flag.Int("steps", 0, "number of migrations to apply; 0 means all (up only)")
	dir := flag.String("dir", "migrations", "directory holding *.up.sql and *.down.sql files")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	m, err := migrate.New("file://"+*dir, database.URL(cfg.Database))
	if err != nil {
		logr.Fatal("failed to open migrations", zap.Error(err))
	}
	defer m.Close()

	switch *direction {
	case "up":
		if *steps > 0 {
			err = m.Steps(*steps)
		} else {
			err = m.Up()
		}
	case "down":
		if *steps <= 0 {
			logr.Fatal("down requires -steps > 0")
		}
		err = m.Steps(-*steps)
	case "version":
	default:
		logr.Fatal("unknown direction", zap.String("direction", *direction))
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logr.Fatal("migration failed", zap.String("direction", *direction), zap.Error(err))
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		logr.Fatal("failed to read schema version", zap.Error(err))
	}
	logr.Info("schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
}
