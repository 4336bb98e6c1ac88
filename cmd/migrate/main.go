package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/config"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/telemetry"
)

func main() {
	var (
		action = flag.String("action", "up", "up, down or version")
		steps  = flag.Int("steps", 0, "number of migrations (0 = all)")
		dir    = flag.String("dir", "migrations", "migrations directory")
	)
	flag.Parse()

	cfg, err := config.Load(os.Getenv("NEXNUM_CONFIG"))
	if err != nil {
		panic(err)
	}
	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	m, err := migrate.New("file://"+*dir, cfg.Database.URL)
	if err != nil {
		logger.Fatal("migrator init failed", zap.Error(err))
	}
	defer m.Close()

	switch *action {
	case "up":
		if *steps > 0 {
			err = m.Steps(*steps)
		} else {
			err = m.Up()
		}
	case "down":
		if *steps > 0 {
			err = m.Steps(-*steps)
		} else {
			err = m.Down()
		}
	case "version":
		version, dirty, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			logger.Fatal("version lookup failed", zap.Error(verr))
		}
		fmt.Printf("version=%d dirty=%v\n", version, dirty)
		return
	default:
		logger.Fatal("unknown action", zap.String("action", *action))
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal("migration failed", zap.Error(err))
	}
	logger.Info("migrations applied", zap.String("action", *action))
}
