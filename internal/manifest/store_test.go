package manifest_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bootforge/internal/manifest"
	"bootforge/internal/services"
)

func TestStoreLoadMissing(t *testing.T) {
	store := manifest.NewStore()
	_, err := store.Load(filepath.Join(t.TempDir(), "absent.json"))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestStoreLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := manifest.NewStore().Load(path)
	if !errors.Is(err, services.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestStoreUpdateRejectsNullDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "null.json")
	if err := os.WriteFile(path, []byte("null"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := manifest.NewStore()
	if _, err := store.Load(path); !errors.Is(err, services.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}

	err := store.Update(path, func(doc *manifest.Document) error {
		doc.SetToken("aesgcm:v1:a:b:c:d")
		return nil
	})
	if !errors.Is(err, services.ErrParse) {
		t.Fatalf("expected parse error from update, got %v", err)
	}
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if string(data) != "null" {
		t.Fatalf("failed update must not rewrite the file: %q", data)
	}
}

func TestStoreSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appboot.json")
	store := manifest.NewStore()

	doc := manifest.New()
	doc.Set("name", "appboot")
	doc.Set("nested", map[string]any{"values": []any{"α", "β"}})
	doc.SetVersions("1.2.3", "2024-01-01-beta")
	if err := store.Save(path, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	app, model := loaded.Versions()
	if app != "1.2.3" || model != "2024-01-01-beta" {
		t.Fatalf("versions did not round-trip: %q %q", app, model)
	}
	first, err := doc.Encode()
	if err != nil {
		t.Fatal(err)
	}
	second, err := loaded.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Fatalf("round trip changed encoding:\n%s\nvs\n%s", first, second)
	}
}

func TestStoreSaveCreatesBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "appboot.json")
	original := []byte("{\n  \"appVersion\": \"1\"\n}\n")
	if err := os.WriteFile(path, original, 0o644); err != nil {
		t.Fatal(err)
	}

	store := manifest.NewStore()
	doc, err := store.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	doc.SetVersions("2", "2024-03-05")
	if err := store.Save(path, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	backups, err := filepath.Glob(path + ".bak.*")
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 1 {
		t.Fatalf("expected exactly one backup, got %v", backups)
	}
	content, err := os.ReadFile(backups[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != string(original) {
		t.Fatalf("backup does not hold previous content verbatim: %q", content)
	}
}

func TestStoreSaveNeverOverwritesBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "appboot.json")
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	frozen := time.Date(2024, time.March, 5, 12, 0, 0, 0, time.UTC)
	store := manifest.NewStore().WithClock(func() time.Time { return frozen })

	for i := 0; i < 3; i++ {
		doc, err := store.Load(path)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		doc.Set("rev", i)
		if err := store.Save(path, doc); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}

	backups, err := filepath.Glob(path + ".bak.*")
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 3 {
		t.Fatalf("expected three distinct backups for same-second saves, got %v", backups)
	}
}

func TestStoreUpdate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "appboot.json")
	if err := os.WriteFile(path, []byte(`{"appVersion":"1"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	store := manifest.NewStore()
	err := store.Update(path, func(doc *manifest.Document) error {
		doc.SetVersions("2", "3")
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	loaded, err := store.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	app, _ := loaded.Versions()
	if app != "2" {
		t.Fatalf("update not persisted: %q", app)
	}
}

func TestStoreUpdatePropagatesCallbackError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "appboot.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}

	sentinel := errors.New("mutation failed")
	err := manifest.NewStore().Update(path, func(*manifest.Document) error { return sentinel })
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected callback error, got %v", err)
	}

	backups, _ := filepath.Glob(path + ".bak.*")
	if len(backups) != 0 {
		t.Fatalf("failed update should not create backups: %v", backups)
	}
}
