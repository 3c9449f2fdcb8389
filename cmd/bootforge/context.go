package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"bootforge/internal/api"
	"bootforge/internal/builder"
	"bootforge/internal/config"
	"bootforge/internal/history"
	"bootforge/internal/logging"
	"bootforge/internal/manifest"
	"bootforge/internal/preview"
)

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

// withPortal assembles an in-process portal around the loaded config and
// runs fn against it, closing the history store afterwards.
func (c *commandContext) withPortal(fn func(*api.Portal) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger := logging.NewNop()
	store := manifest.NewStore()
	runs, err := history.Open(cfg)
	if err != nil {
		return err
	}
	defer runs.Close()

	portal := api.NewPortal(cfg, store,
		builder.New(cfg, store, logger),
		preview.New(cfg, logger),
		runs, logger)
	return fn(portal)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
