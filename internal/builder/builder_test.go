package builder_test

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bootforge/internal/builder"
	"bootforge/internal/config"
	"bootforge/internal/extproc"
	"bootforge/internal/logging"
	"bootforge/internal/manifest"
	"bootforge/internal/services"
)

type fakeExecutor struct {
	result extproc.Result
	err    error
	calls  []extproc.Command
}

func (f *fakeExecutor) Run(_ context.Context, cmd extproc.Command) (extproc.Result, error) {
	f.calls = append(f.calls, cmd)
	return f.result, f.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return cfg
}

func writeTool(t *testing.T, cfg *config.Config) string {
	t.Helper()
	toolPath := filepath.Join(cfg.Paths.DataDir, "payload.sh")
	if err := os.WriteFile(toolPath, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg.Bundle.ToolPath = toolPath
	return toolPath
}

func writeManifest(t *testing.T, cfg *config.Config, content string) {
	t.Helper()
	if err := os.WriteFile(cfg.ManifestPath(), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestBuildHappyPath(t *testing.T) {
	cfg := testConfig(t)
	writeTool(t, cfg)
	writeManifest(t, cfg, `{"appVersion":"1.2.3","modelVersion":"2024-01-01-beta","auth":{"token":"plain"}}`)

	today := time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC)
	exec := &fakeExecutor{result: extproc.Result{ExitCode: 0, Stdout: "packaged"}}
	b := builder.New(cfg, manifest.NewStore(), logging.NewNop(),
		builder.WithExecutor(exec), builder.WithClock(func() time.Time { return today }))

	result, err := b.Build(context.Background(), builder.Request{
		Passphrase: "secret",
		Token:      "hf_token",
		BumpApp:    true,
		BumpModel:  true,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !result.OK {
		t.Fatalf("expected OK result: %+v", result)
	}
	if result.Bump.Current.App != "1.2.3" || result.Bump.Next.App != "1.2.4" {
		t.Fatalf("unexpected app bump: %+v", result.Bump)
	}
	if result.Bump.Next.Model != "2024-03-05-beta" {
		t.Fatalf("unexpected model bump: %+v", result.Bump)
	}

	// Tool invocation contract.
	if len(exec.calls) != 1 {
		t.Fatalf("expected one tool call, got %d", len(exec.calls))
	}
	call := exec.calls[0]
	wantArgs := []string{"-u", "-s", cfg.Bundle.SourceDir, "-d", cfg.Bundle.DestDir, "-o", "app", "-k", "secret"}
	if strings.Join(call.Args, " ") != strings.Join(wantArgs, " ") {
		t.Fatalf("unexpected tool args: %v", call.Args)
	}

	// Manifest mutated on disk with envelope at both locations.
	data, err := os.ReadFile(cfg.ManifestPath())
	if err != nil {
		t.Fatal(err)
	}
	var raw struct {
		AppVersion string `json:"appVersion"`
		Auth       struct {
			Token    string `json:"token"`
			TokenEnc string `json:"token_enc"`
		} `json:"auth"`
		Tokens struct {
			App string `json:"app"`
		} `json:"tokens"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if raw.AppVersion != "1.2.4" {
		t.Fatalf("manifest version not bumped: %q", raw.AppVersion)
	}
	if !strings.HasPrefix(raw.Auth.TokenEnc, "aesgcm:v1:") {
		t.Fatalf("secret holder missing envelope: %q", raw.Auth.TokenEnc)
	}
	if raw.Auth.Token != "" {
		t.Fatalf("plaintext token not cleared: %q", raw.Auth.Token)
	}
	if raw.Tokens.App != raw.Auth.TokenEnc {
		t.Fatal("token registry should mirror the secret holder envelope")
	}

	// Backup of the pre-build manifest.
	backups, _ := filepath.Glob(cfg.ManifestPath() + ".bak.*")
	if len(backups) != 1 {
		t.Fatalf("expected one backup, got %v", backups)
	}

	// Manifest-only archive holds the updated manifest.
	archivePath := filepath.Join(cfg.Bundle.DestDir, "app.manifest.zip")
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		t.Fatalf("open manifest archive: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 1 || zr.File[0].Name != "appboot.json" {
		t.Fatalf("unexpected archive contents: %+v", zr.File)
	}
	for _, artifact := range result.Artifacts {
		if artifact == archivePath {
			return
		}
	}
	t.Fatalf("manifest archive missing from artifact list: %v", result.Artifacts)
}

func TestBuildSkipsUnrequestedBumps(t *testing.T) {
	cfg := testConfig(t)
	writeTool(t, cfg)
	writeManifest(t, cfg, `{"appVersion":"3","modelVersion":"7"}`)

	exec := &fakeExecutor{result: extproc.Result{ExitCode: 0}}
	b := builder.New(cfg, manifest.NewStore(), logging.NewNop(), builder.WithExecutor(exec))

	result, err := b.Build(context.Background(), builder.Request{BumpApp: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.Bump.Next.App != "4" {
		t.Fatalf("expected app bump: %+v", result.Bump)
	}
	if result.Bump.Next.Model != "7" {
		t.Fatalf("model version should pass through unchanged: %+v", result.Bump)
	}
}

func TestBuildAbsentVersionsStartFresh(t *testing.T) {
	cfg := testConfig(t)
	writeTool(t, cfg)
	writeManifest(t, cfg, `{}`)

	today := time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC)
	exec := &fakeExecutor{result: extproc.Result{ExitCode: 0}}
	b := builder.New(cfg, manifest.NewStore(), logging.NewNop(),
		builder.WithExecutor(exec), builder.WithClock(func() time.Time { return today }))

	result, err := b.Build(context.Background(), builder.Request{BumpApp: true, BumpModel: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.Bump.Next.App != "1.0.0" {
		t.Fatalf("unexpected app version: %+v", result.Bump)
	}
	if result.Bump.Next.Model != "1.0.0" {
		t.Fatalf("unexpected model version: %+v", result.Bump)
	}
}

func TestBuildPreflightFailsBeforeMutation(t *testing.T) {
	cfg := testConfig(t)
	writeManifest(t, cfg, `{"appVersion":"1"}`)
	cfg.Bundle.ToolPath = filepath.Join(cfg.Paths.DataDir, "missing-tool")

	b := builder.New(cfg, manifest.NewStore(), logging.NewNop(),
		builder.WithExecutor(&fakeExecutor{}))

	_, err := b.Build(context.Background(), builder.Request{BumpApp: true})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}

	data, _ := os.ReadFile(cfg.ManifestPath())
	if string(data) != `{"appVersion":"1"}` {
		t.Fatalf("manifest mutated despite preflight failure: %s", data)
	}
	backups, _ := filepath.Glob(cfg.ManifestPath() + ".bak.*")
	if len(backups) != 0 {
		t.Fatalf("backup created despite preflight failure: %v", backups)
	}
}

func TestBuildMissingManifest(t *testing.T) {
	cfg := testConfig(t)
	writeTool(t, cfg)

	b := builder.New(cfg, manifest.NewStore(), logging.NewNop(),
		builder.WithExecutor(&fakeExecutor{}))

	_, err := b.Build(context.Background(), builder.Request{})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestBuildToolFailureKeepsManifestMutation(t *testing.T) {
	cfg := testConfig(t)
	writeTool(t, cfg)
	writeManifest(t, cfg, `{"appVersion":"1.2.3"}`)

	exec := &fakeExecutor{result: extproc.Result{ExitCode: 2, Stderr: "bad key"}}
	b := builder.New(cfg, manifest.NewStore(), logging.NewNop(), builder.WithExecutor(exec))

	result, err := b.Build(context.Background(), builder.Request{BumpApp: true})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if result == nil || result.OK || result.ExitCode != 2 {
		t.Fatalf("expected failing result with exit code, got %+v", result)
	}
	if result.Stderr != "bad key" {
		t.Fatalf("expected captured stderr, got %q", result.Stderr)
	}
	if result.Bump.Next.App != "1.2.4" {
		t.Fatalf("bump delta should be reported even on tool failure: %+v", result.Bump)
	}

	// Manifest mutation stays committed.
	data, _ := os.ReadFile(cfg.ManifestPath())
	if !strings.Contains(string(data), `"appVersion": "1.2.4"`) {
		t.Fatalf("manifest should keep advanced state: %s", data)
	}
}

func TestBuildToolTimeout(t *testing.T) {
	cfg := testConfig(t)
	writeTool(t, cfg)
	writeManifest(t, cfg, `{"appVersion":"1"}`)

	exec := &fakeExecutor{result: extproc.Result{ExitCode: -1, TimedOut: true}}
	b := builder.New(cfg, manifest.NewStore(), logging.NewNop(), builder.WithExecutor(exec))

	result, err := b.Build(context.Background(), builder.Request{})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if result == nil || !result.TimedOut {
		t.Fatalf("expected timed-out result, got %+v", result)
	}
}

func TestBuildDefaultPassphrasePolicy(t *testing.T) {
	cfg := testConfig(t)
	writeTool(t, cfg)
	writeManifest(t, cfg, `{}`)

	exec := &fakeExecutor{result: extproc.Result{ExitCode: 0}}
	b := builder.New(cfg, manifest.NewStore(), logging.NewNop(), builder.WithExecutor(exec))

	if _, err := b.Build(context.Background(), builder.Request{}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	call := exec.calls[0]
	joined := strings.Join(call.Args, " ")
	if !strings.Contains(joined, "-k "+cfg.Bundle.DefaultPassphrase) {
		t.Fatalf("expected default passphrase passed to tool: %v", call.Args)
	}
}
