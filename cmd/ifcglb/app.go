package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/matiasleandrokruk/ifcglb/internal/domain/conversion"
	"github.com/matiasleandrokruk/ifcglb/internal/infra/builtin"
	"github.com/matiasleandrokruk/ifcglb/internal/infra/config"
	"github.com/matiasleandrokruk/ifcglb/internal/infra/eventbus"
	"github.com/matiasleandrokruk/ifcglb/internal/infra/logging"
	"github.com/matiasleandrokruk/ifcglb/internal/infra/sqlite"
	"github.com/matiasleandrokruk/ifcglb/internal/native"
)

// configFlags are accepted by every command that loads configuration.
type configFlags struct {
	envFile    string
	configFile string
}

func (c *configFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	fs.StringVar(&c.configFile, "config", "", "YAML or TOML config file (overrides CONFIG_FILE)")
}

// load resolves the configuration and builds the logger.
func (c *configFlags) load() (config.Config, *zap.Logger, error) {
	if err := config.LoadDotEnv(c.envFile); err != nil {
		return config.Config{}, nil, err
	}
	if c.configFile != "" {
		if err := os.Setenv("CONFIG_FILE", c.configFile); err != nil {
			return config.Config{}, nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}

// newConverter selects the backend. A native library that fails to load is
// only a warning: requests report it until the library becomes loadable.
func newConverter(cfg config.Config, log *zap.Logger) conversion.Converter {
	if cfg.Converter == config.ConverterBuiltin {
		log.Info("using builtin converter")
		return builtin.New()
	}

	native.SetLibraryPath(cfg.LibraryPath)
	if err := native.EnsureLoaded(); err != nil {
		log.Warn("failed to load native library", zap.String("path", native.LibraryPath()), zap.Error(err))
	} else {
		log.Info("native library loaded", zap.String("path", native.LibraryPath()))
	}
	return native.Converter{}
}

// openStore opens and migrates the history database.
func openStore(path string, log *zap.Logger) (*sql.DB, error) {
	db, err := sqlite.NewDB(path)
	if err != nil {
		return nil, err
	}
	if err := sqlite.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	v, err := sqlite.MigrationVersion(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	log.Debug("history database ready", zap.String("path", path), zap.Int("schema_version", v))
	return db, nil
}

func newService(db *sql.DB, conv conversion.Converter, bus eventbus.EventBus, cfg config.Config, log *zap.Logger) *conversion.Service {
	return conversion.NewService(db, conv, bus, log, conversion.Config{
		MaxConcurrent: cfg.MaxConcurrent,
		QueueTimeout:  cfg.QueueTimeout.Std(),
	})
}
