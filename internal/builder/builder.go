// Package builder orchestrates bundle builds: it seals the secret token
// into the manifest, advances version fields, persists the manifest with a
// backup, writes a manifest-only archive, and invokes the external
// packaging tool.
//
// Failure ordering matters here. Preflight checks run before any mutation;
// once the manifest has been written, a later packaging failure does not
// roll it back. Callers must treat a failed build as "manifest state
// advanced, distributable artifact absent" and may re-run the tool step.
package builder

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"bootforge/internal/config"
	"bootforge/internal/envelope"
	"bootforge/internal/extproc"
	"bootforge/internal/logging"
	"bootforge/internal/manifest"
	"bootforge/internal/services"
	"bootforge/internal/version"
)

// Request carries the caller-selected build inputs. Empty passphrase or
// token fall back to the configured key policy.
type Request struct {
	Passphrase string
	Token      string
	BumpApp    bool
	BumpModel  bool
}

// VersionPair names the two manifest version dimensions.
type VersionPair struct {
	App   string
	Model string
}

// Delta reports the version change applied by a build.
type Delta struct {
	Current VersionPair
	Next    VersionPair
}

// Result reports a build outcome, including the packaging tool's captured
// streams. A Result accompanies most errors: by the time the tool runs the
// manifest mutation has already been committed.
type Result struct {
	OK        bool
	ExitCode  int
	Command   string
	Stdout    string
	Stderr    string
	TimedOut  bool
	Bump      Delta
	Artifacts []string
}

// Option configures the builder.
type Option func(*Builder)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec extproc.Executor) Option {
	return func(b *Builder) {
		if exec != nil {
			b.exec = exec
		}
	}
}

// WithClock overrides the version-bump date source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// Builder runs bundle builds. Builds on one Builder are serialized; the
// manifest store adds its own lock for the read-modify-write itself.
type Builder struct {
	cfg    *config.Config
	store  *manifest.Store
	logger *slog.Logger
	exec   extproc.Executor
	now    func() time.Time

	mu sync.Mutex
}

// New constructs a Builder.
func New(cfg *config.Config, store *manifest.Store, logger *slog.Logger, opts ...Option) *Builder {
	b := &Builder{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "builder"),
		exec:   extproc.New(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build executes the full build sequence. When the returned error is
// non-nil the Result still describes how far the build got.
func (b *Builder) Build(ctx context.Context, req Request) (*Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	manifestPath := b.cfg.ManifestPath()
	toolPath := b.cfg.Bundle.ToolPath

	if toolPath == "" {
		return nil, services.Wrap(services.ErrConfiguration, "builder", "preflight", "bundle.tool_path is not set", nil)
	}
	if _, err := os.Stat(toolPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "builder", "preflight", fmt.Sprintf("packaging tool not found at %s", toolPath), nil)
		}
		return nil, fmt.Errorf("stat packaging tool: %w", err)
	}
	if _, err := os.Stat(manifestPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "builder", "preflight", fmt.Sprintf("manifest not found at %s", manifestPath), nil)
		}
		return nil, fmt.Errorf("stat manifest: %w", err)
	}

	keys := b.cfg.Keys()
	passphrase, passDefault := keys.Passphrase(req.Passphrase)
	token, tokenDefault := keys.Token(req.Token)
	if passDefault {
		b.logger.Warn("using configured default passphrase",
			logging.String("policy", "key_fallback"))
	}
	if tokenDefault {
		b.logger.Info("using configured default token",
			logging.String("policy", "key_fallback"))
	}

	var delta Delta
	err := b.store.Update(manifestPath, func(doc *manifest.Document) error {
		sealed, err := envelope.Encrypt(token, passphrase)
		if err != nil {
			return err
		}
		doc.SetToken(sealed.String())

		curApp, curModel := doc.Versions()
		nextApp, nextModel := curApp, curModel
		if req.BumpApp {
			nextApp = version.BumpSemver(curApp)
		}
		if req.BumpModel {
			nextModel = version.BumpModelVersion(curModel, b.now())
		}
		doc.SetVersions(nextApp, nextModel)

		delta = Delta{
			Current: VersionPair{App: curApp, Model: curModel},
			Next:    VersionPair{App: nextApp, Model: nextModel},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	b.logger.Info("manifest updated",
		logging.String("path", manifestPath),
		logging.String("app_version", delta.Next.App),
		logging.String("model_version", delta.Next.Model))

	manifestArchive := filepath.Join(b.cfg.Bundle.DestDir, b.cfg.Bundle.OutputLabel+".manifest.zip")
	if err := writeManifestArchive(manifestArchive, manifestPath, b.cfg.Bundle.ManifestName); err != nil {
		return &Result{Bump: delta}, fmt.Errorf("write manifest archive: %w", err)
	}

	args := []string{
		"-u",
		"-s", b.cfg.Bundle.SourceDir,
		"-d", b.cfg.Bundle.DestDir,
		"-o", b.cfg.Bundle.OutputLabel,
	}
	if passphrase != "" {
		args = append(args, "-k", passphrase)
	}
	cmd := extproc.Command{
		Binary:  toolPath,
		Args:    args,
		Timeout: b.cfg.BuildTimeout(),
	}

	result := &Result{
		Command: cmd.CommandLine(),
		Bump:    delta,
		Artifacts: []string{
			manifestArchive,
			filepath.Join(b.cfg.Bundle.DestDir, b.cfg.Bundle.OutputLabel+".zip.enc"),
		},
	}

	procResult, err := b.exec.Run(ctx, cmd)
	result.ExitCode = procResult.ExitCode
	result.Stdout = procResult.Stdout
	result.Stderr = procResult.Stderr
	result.TimedOut = procResult.TimedOut
	if err != nil {
		return result, services.Wrap(services.ErrExternalTool, "builder", "package", "invoke packaging tool", err)
	}
	if procResult.TimedOut {
		return result, services.Wrap(services.ErrTimeout, "builder", "package", "packaging tool exceeded its time bound", nil)
	}
	if procResult.ExitCode != 0 {
		return result, services.Wrap(services.ErrExternalTool, "builder", "package",
			fmt.Sprintf("packaging tool exited with code %d", procResult.ExitCode), nil)
	}

	result.OK = true
	b.logger.Info("build complete",
		logging.String("label", b.cfg.Bundle.OutputLabel),
		logging.Duration("tool_duration", procResult.Duration))
	return result, nil
}

// writeManifestArchive produces the minimal manifest-only zip used for
// lightweight distribution.
func writeManifestArchive(archivePath, manifestPath, entryName string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	entry, err := zw.Create(entryName)
	if err != nil {
		_ = zw.Close()
		return err
	}
	in, err := os.Open(manifestPath)
	if err != nil {
		_ = zw.Close()
		return err
	}
	if _, err := io.Copy(entry, in); err != nil {
		_ = in.Close()
		_ = zw.Close()
		return err
	}
	_ = in.Close()
	if err := zw.Close(); err != nil {
		return err
	}
	return out.Close()
}
