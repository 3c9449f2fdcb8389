package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	PreviewDir string `toml:"preview_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
	APIToken   string `toml:"api_token"`
}

// Bundle contains configuration for manifest editing and builds.
type Bundle struct {
	ManifestName      string `toml:"manifest_name"`
	ToolPath          string `toml:"tool_path"`
	SourceDir         string `toml:"source_dir"`
	DestDir           string `toml:"dest_dir"`
	OutputLabel       string `toml:"output_label"`
	DefaultPassphrase string `toml:"default_passphrase"`
	DefaultToken      string `toml:"default_token"`
	BuildTimeout      int    `toml:"build_timeout"`
}

// Preview contains configuration for fetching the published bundle.
type Preview struct {
	DefaultURL      string `toml:"default_url"`
	DownloadTimeout int    `toml:"download_timeout"`
	DecryptTimeout  int    `toml:"decrypt_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for bootforge.
//
// Configuration sections by subsystem:
//   - Paths: data/preview/log directories and API bind address
//   - Bundle: manifest location, packaging tool, key-fallback policy
//   - Preview: published bundle URL and fetch/decrypt timeouts
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Bundle  Bundle  `toml:"bundle"`
	Preview Preview `toml:"preview"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/bootforge/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("bootforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the service writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.PreviewDir, c.Paths.LogDir, c.Bundle.DestDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ManifestPath returns the absolute location of the bundle manifest.
func (c *Config) ManifestPath() string {
	return filepath.Join(c.Paths.DataDir, c.Bundle.ManifestName)
}

// BuildTimeout returns the packaging-tool timeout; zero means unbounded.
func (c *Config) BuildTimeout() time.Duration {
	return time.Duration(c.Bundle.BuildTimeout) * time.Second
}

// DownloadTimeout returns the preview download timeout.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Preview.DownloadTimeout) * time.Second
}

// DecryptTimeout returns the hard wall-clock bound on the decrypt tool.
func (c *Config) DecryptTimeout() time.Duration {
	return time.Duration(c.Preview.DecryptTimeout) * time.Second
}

// KeyPolicy is the named fallback policy for packaging secrets. The
// defaults it holds are deployment-time configuration, and every
// substitution is reported to the caller so it can be logged.
type KeyPolicy struct {
	defaultPassphrase string
	defaultToken      string
}

// Keys returns the key-fallback policy configured for this deployment.
func (c *Config) Keys() KeyPolicy {
	return KeyPolicy{
		defaultPassphrase: c.Bundle.DefaultPassphrase,
		defaultToken:      c.Bundle.DefaultToken,
	}
}

// Passphrase resolves an explicit passphrase against the configured
// default, reporting whether the fallback was used.
func (p KeyPolicy) Passphrase(explicit string) (value string, usedDefault bool) {
	if trimmed := strings.TrimSpace(explicit); trimmed != "" {
		return trimmed, false
	}
	return p.defaultPassphrase, true
}

// Token resolves an explicit token against the configured default,
// reporting whether the fallback was used.
func (p KeyPolicy) Token(explicit string) (value string, usedDefault bool) {
	if trimmed := strings.TrimSpace(explicit); trimmed != "" {
		return trimmed, false
	}
	return p.defaultToken, true
}

// CreateSample writes the embedded sample configuration to target.
func CreateSample(target string) error {
	sample := sampleConfig
	if !strings.HasSuffix(sample, "\n") {
		sample += "\n"
	}
	if err := os.WriteFile(target, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// ExpandPath resolves tilde shortcuts and returns an absolute path.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
