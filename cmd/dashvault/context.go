package main

import (
	"context"
	"strings"
	"sync"

	"dashvault/internal/api"
	"dashvault/internal/catalog"
	"dashvault/internal/config"
)

// commandContext carries the lazily loaded configuration shared by every
// subcommand. Commands that touch the catalog open the shared SQLite store
// per invocation through withStore; the daemon sees their writes on its
// next poll tick.
type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) withStore(ctx context.Context, fn func(context.Context, *catalog.Store, *api.CatalogService) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := catalog.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, store, api.NewCatalogService(store))
}
