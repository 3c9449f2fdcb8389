package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeBundle(); err != nil {
		return err
	}
	c.normalizePreview()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.PreviewDir) == "" {
		c.Paths.PreviewDir = filepath.Join(c.Paths.DataDir, "_preview")
	}
	if c.Paths.PreviewDir, err = expandPath(c.Paths.PreviewDir); err != nil {
		return fmt.Errorf("paths.preview_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeBundle() error {
	var err error
	c.Bundle.ManifestName = strings.TrimSpace(c.Bundle.ManifestName)
	if c.Bundle.ManifestName == "" {
		c.Bundle.ManifestName = defaultManifestName
	}
	if strings.TrimSpace(c.Bundle.ToolPath) != "" {
		if c.Bundle.ToolPath, err = expandPath(c.Bundle.ToolPath); err != nil {
			return fmt.Errorf("bundle.tool_path: %w", err)
		}
	}
	if strings.TrimSpace(c.Bundle.SourceDir) == "" {
		c.Bundle.SourceDir = c.Paths.DataDir
	}
	if c.Bundle.SourceDir, err = expandPath(c.Bundle.SourceDir); err != nil {
		return fmt.Errorf("bundle.source_dir: %w", err)
	}
	if strings.TrimSpace(c.Bundle.DestDir) == "" {
		c.Bundle.DestDir = c.Paths.DataDir
	}
	if c.Bundle.DestDir, err = expandPath(c.Bundle.DestDir); err != nil {
		return fmt.Errorf("bundle.dest_dir: %w", err)
	}
	c.Bundle.OutputLabel = strings.TrimSpace(c.Bundle.OutputLabel)
	if c.Bundle.OutputLabel == "" {
		c.Bundle.OutputLabel = defaultOutputLabel
	}
	if c.Bundle.DefaultPassphrase == "" {
		if value := os.Getenv("BOOTFORGE_PASSPHRASE"); value != "" {
			c.Bundle.DefaultPassphrase = value
		} else {
			c.Bundle.DefaultPassphrase = defaultPassphrase
		}
	}
	if c.Bundle.DefaultToken == "" {
		if value := os.Getenv("BOOTFORGE_TOKEN"); value != "" {
			c.Bundle.DefaultToken = value
		}
	}
	return nil
}

func (c *Config) normalizePreview() {
	c.Preview.DefaultURL = strings.TrimSpace(c.Preview.DefaultURL)
	if c.Preview.DefaultURL == "" {
		c.Preview.DefaultURL = strings.TrimSpace(os.Getenv("CLOUD_ENC_URL"))
	}
	if c.Preview.DefaultURL == "" {
		c.Preview.DefaultURL = defaultCloudURL
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
