// Command migrate applies or rolls back the embedded database schema.
//
//	migrate up | down [steps] | version
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	migrations "example.com/wellness/db/migrations"
	"example.com/wellness/internal/config"
	"example.com/wellness/internal/logging"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat).Named("migrate")
	defer func() { _ = logger.Sync() }()

	cmd, args := "up", []string(nil)
	if len(os.Args) > 1 {
		cmd, args = os.Args[1], os.Args[2:]
	}
	if err := run(cfg.PostgresURL, cmd, args, logger); err != nil {
		logger.Fatal("migration failed", zap.String("command", cmd), zap.Error(err))
	}
}

func run(databaseURL, cmd string, args []string, logger *zap.Logger) error {
	m, err := migrations.New(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		steps := 1
		if len(args) > 0 {
			if steps, err = strconv.Atoi(args[0]); err != nil || steps <= 0 {
				return fmt.Errorf("down: steps must be a positive integer")
			}
		}
		err = m.Steps(-steps)
	case "version":
	default:
		return fmt.Errorf("unknown command %q (want up, down or version)", cmd)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		logger.Info("schema is empty")
	case err != nil:
		return err
	default:
		logger.Info("schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
	}
	return nil
}
