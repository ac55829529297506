package main

import (
	"fmt"

	"github.com/zulandar/storyforge/internal/config"
	"github.com/zulandar/storyforge/internal/credential"
	"github.com/zulandar/storyforge/internal/db"
	"github.com/zulandar/storyforge/internal/settings"
	"gorm.io/gorm"
)

// loadConfig reads the config file. A missing file yields the defaults.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openStore connects to the configured database, makes sure the schema is
// current and returns a settings store using the configured secret backend.
// The caller closes the returned handle with db.Close.
func openStore(cfg *config.Config) (*gorm.DB, *settings.Store, error) {
	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Init(gormDB); err != nil {
		db.Close(gormDB)
		return nil, nil, err
	}

	var secrets credential.Store
	if cfg.Secrets.Backend == "keyring" {
		ring, err := credential.Open(cfg.Secrets.KeyringDir)
		if err != nil {
			db.Close(gormDB)
			return nil, nil, err
		}
		secrets = ring
	}
	return gormDB, settings.New(gormDB, secrets), nil
}
