package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"telecloud/internal/config"
)

const migrationsSource = "file://migrations"

func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			down, _ := cmd.Flags().GetBool("down")
			if down {
				return rollbackMigrations(cfg)
			}
			return runMigrations(cfg)
		},
	}

	cmd.Flags().Bool("down", false, "Roll back every migration")

	return cmd
}

func newMigrate(cfg *config.Config) (*migrate.Migrate, error) {
	var m *migrate.Migrate
	var err error

	for i := 0; i < 5; i++ {
		m, err = migrate.New(migrationsSource, cfg.Database.MigrationURL())
		if err == nil {
			return m, nil
		}
		log.Warn().Err(err).Int("attempt", i+1).Msg("failed to create migrate instance")
		time.Sleep(5 * time.Second)
	}

	return nil, fmt.Errorf("failed to create migrate instance after retries: %w", err)
}

func runMigrations(cfg *config.Config) error {
	m, err := newMigrate(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		log.Warn().Uint("version", version).Msg("found dirty database state, forcing version")
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, _, _ = m.Version()
	log.Info().Uint("version", version).Msg("migrations applied")

	return nil
}

func rollbackMigrations(cfg *config.Config) error {
	m, err := newMigrate(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}

	log.Info().Msg("migrations rolled back")
	return nil
}
