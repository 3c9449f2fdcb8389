package manifest_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"bootforge/internal/manifest"
	"bootforge/internal/services"
)

func TestDecodePrefersCamelCase(t *testing.T) {
	doc, err := manifest.Decode([]byte(`{"appVersion":"1.2.3","model_version":"2024-01-01"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	app, model := doc.Versions()
	if app != "1.2.3" || model != "2024-01-01" {
		t.Fatalf("unexpected versions: %q %q", app, model)
	}
	if doc.AppStyle() != manifest.StyleCamel {
		t.Fatal("expected camelCase app style")
	}
	if doc.ModelStyle() != manifest.StyleSnake {
		t.Fatal("expected snake_case model style")
	}
}

func TestSetVersionsPreservesSpelling(t *testing.T) {
	doc, err := manifest.Decode([]byte(`{"app_version":"7","model_version":"3"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	doc.SetVersions("8", "4")

	encoded, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(encoded, &raw); err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if raw["app_version"] != "8" || raw["model_version"] != "4" {
		t.Fatalf("snake_case fields not updated: %v", raw)
	}
	if _, ok := raw["appVersion"]; ok {
		t.Fatal("camelCase spelling introduced alongside snake_case")
	}
}

func TestSetVersionsDefaultsToCamelCase(t *testing.T) {
	doc := manifest.New()
	doc.SetVersions("1.0.0", "2024-03-05")

	encoded, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(encoded, &raw); err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if raw["appVersion"] != "1.0.0" || raw["modelVersion"] != "2024-03-05" {
		t.Fatalf("expected camelCase defaults: %v", raw)
	}
}

func TestVersionsAbsentFieldsReadEmpty(t *testing.T) {
	doc, err := manifest.Decode([]byte(`{"name":"app"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	app, model := doc.Versions()
	if app != "" || model != "" {
		t.Fatalf("expected empty versions, got %q %q", app, model)
	}
}

func TestSetTokenWritesBothLocations(t *testing.T) {
	doc, err := manifest.Decode([]byte(`{"auth":{"token":"plaintext-secret"},"tokens":{"app":"old"}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	doc.SetToken("aesgcm:v1:a:b:c:d")

	encoded, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var raw struct {
		Auth struct {
			Token    string `json:"token"`
			TokenEnc string `json:"token_enc"`
		} `json:"auth"`
		Tokens struct {
			App string `json:"app"`
		} `json:"tokens"`
	}
	if err := json.Unmarshal(encoded, &raw); err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if raw.Auth.TokenEnc != "aesgcm:v1:a:b:c:d" {
		t.Fatalf("secret holder not updated: %q", raw.Auth.TokenEnc)
	}
	if raw.Auth.Token != "" {
		t.Fatalf("plaintext sibling not cleared: %q", raw.Auth.Token)
	}
	if raw.Tokens.App != "aesgcm:v1:a:b:c:d" {
		t.Fatalf("token registry not updated: %q", raw.Tokens.App)
	}
}

func TestSetTokenCreatesMissingObjects(t *testing.T) {
	doc := manifest.New()
	doc.SetToken("aesgcm:v1:a:b:c:d")
	if _, ok := doc.Get("auth"); !ok {
		t.Fatal("expected auth object to be created")
	}
	if _, ok := doc.Get("tokens"); !ok {
		t.Fatal("expected tokens object to be created")
	}
}

func TestDecodeInvalidJSON(t *testing.T) {
	_, err := manifest.Decode([]byte("{nope"))
	if !errors.Is(err, services.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestDecodeRejectsNonObjectDocuments(t *testing.T) {
	for _, input := range []string{"null", "[]", `"text"`, "7"} {
		if _, err := manifest.Decode([]byte(input)); !errors.Is(err, services.ErrParse) {
			t.Fatalf("Decode(%q): expected parse error, got %v", input, err)
		}
	}

	// A null document must be stopped at decode; mutations on a decoded
	// document always have a live field map to write into.
	doc, err := manifest.Decode([]byte("{}"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	doc.SetToken("aesgcm:v1:a:b:c:d")
}

func TestEncodeFormat(t *testing.T) {
	doc, err := manifest.Decode([]byte(`{"name":"héllo <app> 日本語"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	encoded, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	text := string(encoded)
	if !strings.Contains(text, "héllo <app> 日本語") {
		t.Fatalf("expected Unicode and angle brackets unescaped: %q", text)
	}
	if !strings.HasSuffix(text, "\n") || strings.HasSuffix(text, "\n\n") {
		t.Fatalf("expected exactly one trailing newline: %q", text)
	}
	if !strings.Contains(text, "\n  \"name\"") {
		t.Fatalf("expected two-space indentation: %q", text)
	}
}

func TestPretty(t *testing.T) {
	out, err := manifest.Pretty(`{"b":1,"a":[1,2]}`)
	if err != nil {
		t.Fatalf("Pretty: %v", err)
	}
	if !strings.Contains(out, "  \"a\"") {
		t.Fatalf("expected indented output: %q", out)
	}
	if _, err := manifest.Pretty("not json"); !errors.Is(err, services.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestSafeName(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"appboot.json", "appboot.json", false},
		{"dir/appboot.json", "appboot.json", false},
		{"..\\evil.json", "evil.json", false},
		{"appboot.txt", "", true},
		{"", "", true},
		{"   ", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := manifest.SafeName(tc.in)
			if tc.wantErr {
				if !errors.Is(err, services.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SafeName(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("SafeName(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
