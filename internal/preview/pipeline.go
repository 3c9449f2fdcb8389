// Package preview fetches the published encrypted bundle, decrypts it via
// the external tool, and exposes the extracted structured-data entries for
// safe read-back.
//
// The archive and its entry names originate from an untrusted network
// source, so every path that touches the workspace goes through the
// traversal guard in Workspace.ResolveEntry.
package preview

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"bootforge/internal/config"
	"bootforge/internal/extproc"
	"bootforge/internal/logging"
	"bootforge/internal/services"
)

const (
	userAgent        = "bootforge/1.0"
	encryptedName    = "cloud.bundle.zip.enc"
	decryptedName    = "cloud.bundle.zip"
	structuredSuffix = ".json"
)

// FetchRequest selects what to fetch and how.
type FetchRequest struct {
	URL          string
	Passphrase   string
	ForceRefresh bool
}

// Entry describes one archive member.
type Entry struct {
	Name string
	Size uint64
}

// FetchResult reports a completed preview fetch.
type FetchResult struct {
	Entries        []Entry
	DownloadBytes  int64
	DecryptCommand string
	Stdout         string
	Stderr         string
}

// Option configures the pipeline.
type Option func(*Pipeline)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec extproc.Executor) Option {
	return func(p *Pipeline) {
		if exec != nil {
			p.exec = exec
		}
	}
}

// WithHTTPClient injects a custom download client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Pipeline) {
		if client != nil {
			p.client = client
		}
	}
}

// Pipeline owns the preview workspace. One fetch runs at a time; reads
// share the workspace with each other but never with a fetch in flight.
type Pipeline struct {
	cfg    *config.Config
	logger *slog.Logger
	exec   extproc.Executor
	client *http.Client
	ws     *Workspace

	mu sync.RWMutex
}

// New constructs a Pipeline.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "preview"),
		exec:   extproc.New(),
		client: &http.Client{Timeout: cfg.DownloadTimeout()},
		ws:     NewWorkspace(cfg.Paths.PreviewDir),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Workspace exposes the pipeline's workspace for listing helpers.
func (p *Pipeline) Workspace() *Workspace { return p.ws }

// Fetch downloads, decrypts, and indexes the published bundle. The
// returned error carries a services marker; when the decrypt tool ran, the
// FetchResult still holds its captured output.
func (p *Pipeline) Fetch(ctx context.Context, req FetchRequest) (*FetchResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	toolPath := p.cfg.Bundle.ToolPath
	if toolPath == "" {
		return nil, services.Wrap(services.ErrConfiguration, "preview", "preflight", "bundle.tool_path is not set", nil)
	}
	if _, err := os.Stat(toolPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "preview", "preflight", fmt.Sprintf("decryption tool not found at %s", toolPath), nil)
		}
		return nil, fmt.Errorf("stat decryption tool: %w", err)
	}

	if err := p.ws.Reset(); err != nil {
		return nil, err
	}

	url := strings.TrimSpace(req.URL)
	if url == "" {
		url = p.cfg.Preview.DefaultURL
	}

	encPath := filepath.Join(p.ws.Root(), encryptedName)
	zipPath := filepath.Join(p.ws.Root(), decryptedName)

	downloaded, err := p.download(ctx, url, encPath, req.ForceRefresh)
	if err != nil {
		return nil, err
	}
	p.logger.Info("bundle downloaded",
		logging.String("url", url),
		logging.Int64("bytes", downloaded))

	passphrase, usedDefault := p.cfg.Keys().Passphrase(req.Passphrase)
	if usedDefault {
		p.logger.Warn("using configured default passphrase",
			logging.String("policy", "key_fallback"))
	}

	args := []string{"--decrypt", "-i", encPath, "-O", zipPath}
	if passphrase != "" {
		args = append(args, "-k", passphrase)
	}
	cmd := extproc.Command{
		Binary:  toolPath,
		Args:    args,
		Timeout: p.cfg.DecryptTimeout(),
	}

	result := &FetchResult{
		DownloadBytes:  downloaded,
		DecryptCommand: cmd.CommandLine(),
	}

	procResult, err := p.exec.Run(ctx, cmd)
	result.Stdout = procResult.Stdout
	result.Stderr = procResult.Stderr
	if err != nil {
		return result, services.Wrap(services.ErrExternalTool, "preview", "decrypt", "invoke decryption tool", err)
	}
	if procResult.TimedOut {
		return result, services.Wrap(services.ErrTimeout, "preview", "decrypt", "decryption tool exceeded its time bound", nil)
	}
	if procResult.ExitCode != 0 {
		return result, services.Wrap(services.ErrExternalTool, "preview", "decrypt",
			fmt.Sprintf("decryption tool exited with code %d", procResult.ExitCode), nil)
	}

	entries, err := p.extract(zipPath)
	if err != nil {
		// Leave nothing half-extracted behind a failed attempt.
		_ = p.ws.Reset()
		return result, err
	}
	result.Entries = entries
	p.logger.Info("bundle indexed", logging.Int("entries", len(entries)))
	return result, nil
}

// ReadExtracted returns the text of one extracted structured-data entry.
func (p *Pipeline) ReadExtracted(name string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	path, err := p.ws.ResolveEntry(name)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(strings.ToLower(path), structuredSuffix) {
		return "", services.Wrap(services.ErrNotFound, "preview", "read", fmt.Sprintf("%s is not a structured-data entry", name), nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", services.Wrap(services.ErrNotFound, "preview", "read", fmt.Sprintf("no extracted entry named %s", name), nil)
		}
		return "", fmt.Errorf("read extracted entry: %w", err)
	}
	if !json.Valid(data) {
		return "", services.Wrap(services.ErrParse, "preview", "read", fmt.Sprintf("%s is not valid JSON", name), nil)
	}
	return string(data), nil
}

func (p *Pipeline) download(ctx context.Context, url, dest string, force bool) (int64, error) {
	if force {
		separator := "?"
		if strings.Contains(url, "?") {
			separator = "&"
		}
		url += separator + "ts=" + strconv.FormatInt(time.Now().UnixNano(), 10)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "preview", "download", fmt.Sprintf("invalid url %q", url), err)
	}
	httpReq.Header.Set("User-Agent", userAgent)
	if force {
		httpReq.Header.Set("Cache-Control", "no-cache")
		httpReq.Header.Set("Pragma", "no-cache")
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return 0, services.Wrap(services.ErrNetwork, "preview", "download", fmt.Sprintf("fetch %s", url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, services.Wrap(services.ErrNetwork, "preview", "download",
			fmt.Sprintf("fetch %s: unexpected status %d", url, resp.StatusCode), nil)
	}

	out, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("create download target: %w", err)
	}
	written, err := io.Copy(out, resp.Body)
	if err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return 0, services.Wrap(services.ErrNetwork, "preview", "download", fmt.Sprintf("read body from %s", url), err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dest)
		return 0, fmt.Errorf("finish download: %w", err)
	}
	return written, nil
}

// extract lists every archive entry and copies the structured-data ones
// into the workspace, preserving relative paths.
func (p *Pipeline) extract(zipPath string) ([]Entry, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, services.Wrap(services.ErrParse, "preview", "extract", "open decrypted archive", err)
	}
	defer zr.Close()

	entries := make([]Entry, 0, len(zr.File))
	for _, file := range zr.File {
		entries = append(entries, Entry{Name: file.Name, Size: file.UncompressedSize64})
		if file.FileInfo().IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(file.Name), structuredSuffix) {
			continue
		}

		target, err := p.ws.ResolveEntry(file.Name)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, fmt.Errorf("create entry directory: %w", err)
		}
		src, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open archive entry %q: %w", file.Name, err)
		}
		dst, err := os.Create(target)
		if err != nil {
			src.Close()
			return nil, fmt.Errorf("create extracted entry %q: %w", file.Name, err)
		}
		if _, err := io.Copy(dst, src); err != nil {
			src.Close()
			dst.Close()
			return nil, fmt.Errorf("extract entry %q: %w", file.Name, err)
		}
		src.Close()
		if err := dst.Close(); err != nil {
			return nil, fmt.Errorf("finish extracted entry %q: %w", file.Name, err)
		}
	}
	return entries, nil
}
