package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBundle(); err != nil {
		return err
	}
	if err := c.validatePreview(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateBundle() error {
	if !strings.HasSuffix(c.Bundle.ManifestName, ".json") {
		return fmt.Errorf("bundle.manifest_name must end in .json, got %q", c.Bundle.ManifestName)
	}
	if strings.ContainsAny(c.Bundle.ManifestName, "/\\") {
		return errors.New("bundle.manifest_name must be a bare file name")
	}
	if c.Bundle.OutputLabel == "" {
		return errors.New("bundle.output_label must be set")
	}
	if c.Bundle.BuildTimeout < 0 {
		return errors.New("bundle.build_timeout must not be negative")
	}
	return nil
}

func (c *Config) validatePreview() error {
	if err := ensurePositiveMap(map[string]int{
		"preview.download_timeout": c.Preview.DownloadTimeout,
		"preview.decrypt_timeout":  c.Preview.DecryptTimeout,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for name, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, value)
		}
	}
	return nil
}
