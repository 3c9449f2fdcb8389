package api

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bootforge/internal/builder"
	"bootforge/internal/config"
	"bootforge/internal/history"
	"bootforge/internal/logging"
	"bootforge/internal/manifest"
	"bootforge/internal/preview"
	"bootforge/internal/services"
	"bootforge/internal/version"
)

// Portal exposes the operational surface shared by the CLI and the HTTP
// service: file listing and editing, version inspection, builds, preview
// fetches, and run history.
type Portal struct {
	cfg     *config.Config
	store   *manifest.Store
	builds  *builder.Builder
	fetcher *preview.Pipeline
	runs    *history.Store
	logger  *slog.Logger
	now     func() time.Time
}

// NewPortal wires the portal around its collaborators. The history store
// may be nil; recording then becomes a no-op.
func NewPortal(cfg *config.Config, store *manifest.Store, builds *builder.Builder, fetcher *preview.Pipeline, runs *history.Store, logger *slog.Logger) *Portal {
	return &Portal{
		cfg:     cfg,
		store:   store,
		builds:  builds,
		fetcher: fetcher,
		runs:    runs,
		logger:  logging.NewComponentLogger(logger, "portal"),
		now:     time.Now,
	}
}

// ListFiles returns the structured-data files in the data directory,
// sorted by name.
func (p *Portal) ListFiles() ([]FileInfo, error) {
	entries, err := os.ReadDir(p.cfg.Paths.DataDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list data directory: %w", err)
	}
	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Name:     entry.Name(),
			Size:     info.Size(),
			Modified: info.ModTime().Format(dateTimeFormat),
		})
	}
	return files, nil
}

// Versions reads the manifest and reports the current version pair plus
// the pair a build would advance to.
func (p *Portal) Versions() (*VersionDelta, error) {
	doc, err := p.store.Load(p.cfg.ManifestPath())
	if err != nil {
		return nil, err
	}
	app, model := doc.Versions()
	return &VersionDelta{
		Current: VersionPair{App: app, Model: model},
		Next: VersionPair{
			App:   version.BumpSemver(app),
			Model: version.BumpModelVersion(model, p.now()),
		},
	}, nil
}

// StatusVersions is the best-effort variant used on the status surface:
// any manifest problem degrades to empty strings instead of failing.
func (p *Portal) StatusVersions() VersionPair {
	doc, err := p.store.Load(p.cfg.ManifestPath())
	if err != nil {
		return VersionPair{}
	}
	app, model := doc.Versions()
	return VersionPair{App: app, Model: model}
}

// LoadFile returns the text of one data-directory file by base name.
func (p *Portal) LoadFile(name string) (string, error) {
	safe, err := manifest.SafeName(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(p.cfg.Paths.DataDir, safe))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", services.Wrap(services.ErrNotFound, "portal", "load file", fmt.Sprintf("no file named %s", safe), nil)
		}
		return "", fmt.Errorf("read %s: %w", safe, err)
	}
	return string(data), nil
}

// SaveFile validates and persists edited JSON under the data directory,
// backing up any pre-existing content.
func (p *Portal) SaveFile(name, content string) error {
	safe, err := manifest.SafeName(name)
	if err != nil {
		return err
	}
	doc, err := manifest.Decode([]byte(content))
	if err != nil {
		return err
	}
	return p.store.Save(filepath.Join(p.cfg.Paths.DataDir, safe), doc)
}

// Pretty reformats JSON text into the canonical on-disk shape.
func (p *Portal) Pretty(text string) (string, error) {
	return manifest.Pretty(text)
}

// Build runs a bundle build and records the outcome. The response is
// populated even when the build failed after committing manifest changes.
func (p *Portal) Build(ctx context.Context, req builder.Request) (*BuildResponse, error) {
	started := p.now()
	result, err := p.builds.Build(ctx, req)
	p.record(ctx, history.Run{
		Kind:       history.KindBuild,
		StartedAt:  started,
		FinishedAt: p.now(),
		OK:         err == nil,
		ExitCode:   exitCode(result),
		Detail:     buildDetail(result, err),
	})
	p.opLogger(ctx).Info("build handled",
		logging.Bool("ok", err == nil),
		logging.Duration("elapsed", p.now().Sub(started)))
	return FromBuildResult(result), err
}

// PreviewFetch runs the fetch pipeline and records the outcome.
func (p *Portal) PreviewFetch(ctx context.Context, req preview.FetchRequest) (*FetchResponse, error) {
	started := p.now()
	result, err := p.fetcher.Fetch(ctx, req)
	detail := ""
	if err != nil {
		detail = err.Error()
	} else {
		detail = fmt.Sprintf("%d entries, %d bytes", len(result.Entries), result.DownloadBytes)
	}
	p.record(ctx, history.Run{
		Kind:       history.KindFetch,
		StartedAt:  started,
		FinishedAt: p.now(),
		OK:         err == nil,
		Detail:     detail,
	})
	p.opLogger(ctx).Info("preview fetch handled",
		logging.Bool("ok", err == nil),
		logging.Duration("elapsed", p.now().Sub(started)))
	return FromFetchResult(result), err
}

// PreviewRead returns the text of one extracted entry.
func (p *Portal) PreviewRead(name string) (string, error) {
	return p.fetcher.ReadExtracted(name)
}

// History returns the most recent recorded runs, newest first.
func (p *Portal) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if p.runs == nil {
		return nil, nil
	}
	runs, err := p.runs.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	return FromRuns(runs), nil
}

// ManifestPath reports the configured manifest location.
func (p *Portal) ManifestPath() string {
	return p.cfg.ManifestPath()
}

// ManifestRaw returns the manifest's bytes and base name for passthrough
// serving.
func (p *Portal) ManifestRaw() ([]byte, string, error) {
	path := p.cfg.ManifestPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", services.Wrap(services.ErrNotFound, "portal", "manifest", "manifest file does not exist", nil)
		}
		return nil, "", fmt.Errorf("read manifest: %w", err)
	}
	return data, filepath.Base(path), nil
}

// record persists a history run. Failures are logged, never propagated;
// a broken history database must not fail the operation it describes.
func (p *Portal) record(ctx context.Context, run history.Run) {
	if p.runs == nil {
		return
	}
	if _, err := p.runs.Record(ctx, run); err != nil {
		p.opLogger(ctx).Warn("history record failed",
			logging.String("kind", run.Kind),
			logging.Error(err))
	}
}

// opLogger tags log lines with the caller's correlation identifier when
// the request came in over the HTTP surface.
func (p *Portal) opLogger(ctx context.Context) *slog.Logger {
	if id, ok := services.RequestIDFromContext(ctx); ok {
		return p.logger.With(logging.String(logging.FieldRequestID, id))
	}
	return p.logger
}

func exitCode(result *builder.Result) int {
	if result == nil {
		return 0
	}
	return result.ExitCode
}

func buildDetail(result *builder.Result, err error) string {
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("app %s -> %s, model %s -> %s",
		result.Bump.Current.App, result.Bump.Next.App,
		result.Bump.Current.Model, result.Bump.Next.Model)
}
