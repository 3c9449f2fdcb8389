// Package manifest loads and persists the bundle manifest document.
//
// The manifest is a JSON object whose version fields historically appear
// under either camelCase or snake_case keys. The spelling present in the
// file is captured at load time and preserved on write; camelCase is the
// default for fields that are absent. Saves keep a timestamped backup of
// the previous content and emit stable two-space-indented JSON with
// Unicode left unescaped.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"bootforge/internal/services"
)

// FieldStyle identifies which key spelling is authoritative for a version
// field in a loaded document.
type FieldStyle int

const (
	StyleCamel FieldStyle = iota
	StyleSnake
)

const (
	appVersionCamel   = "appVersion"
	appVersionSnake   = "app_version"
	modelVersionCamel = "modelVersion"
	modelVersionSnake = "model_version"

	secretHolderKey  = "auth"
	secretPlainField = "token"
	secretEncField   = "token_enc"
	tokenRegistryKey = "tokens"
	tokenRegistryApp = "app"
)

// Document is a decoded manifest plus the key spellings chosen at load.
type Document struct {
	fields     map[string]any
	appStyle   FieldStyle
	modelStyle FieldStyle
}

// New returns an empty document using camelCase spellings.
func New() *Document {
	return &Document{fields: map[string]any{}}
}

// Decode parses raw manifest bytes, fixing the authoritative spelling for
// each version field. When both spellings are present camelCase wins, which
// matches the read-side precedence of every consumer.
func Decode(data []byte) (*Document, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, services.Wrap(services.ErrParse, "manifest", "decode", "invalid JSON", err)
	}
	// A JSON "null" unmarshals into a nil map without error; every later
	// mutation would then write into nil.
	if fields == nil {
		return nil, services.Wrap(services.ErrParse, "manifest", "decode", "document is not a JSON object", nil)
	}
	doc := &Document{fields: fields}
	if _, ok := fields[appVersionCamel]; !ok {
		if _, ok := fields[appVersionSnake]; ok {
			doc.appStyle = StyleSnake
		}
	}
	if _, ok := fields[modelVersionCamel]; !ok {
		if _, ok := fields[modelVersionSnake]; ok {
			doc.modelStyle = StyleSnake
		}
	}
	return doc, nil
}

// Versions returns the current application and model version strings.
// Absent fields read as empty strings.
func (d *Document) Versions() (appVersion, modelVersion string) {
	return d.stringField(appVersionCamel, appVersionSnake),
		d.stringField(modelVersionCamel, modelVersionSnake)
}

// SetVersions writes both version fields under their authoritative
// spellings.
func (d *Document) SetVersions(appVersion, modelVersion string) {
	d.fields[versionKey(d.appStyle, appVersionCamel, appVersionSnake)] = appVersion
	d.fields[versionKey(d.modelStyle, modelVersionCamel, modelVersionSnake)] = modelVersion
}

// AppStyle returns the spelling chosen for the application version field.
func (d *Document) AppStyle() FieldStyle { return d.appStyle }

// ModelStyle returns the spelling chosen for the model version field.
func (d *Document) ModelStyle() FieldStyle { return d.modelStyle }

// SetToken embeds the sealed token envelope at both canonical locations:
// the nested secret holder (clearing its plaintext sibling) and the flat
// token registry. Legacy bundle readers look in one or the other, so the
// duplication is part of the manifest contract.
func (d *Document) SetToken(sealed string) {
	holder := d.objectField(secretHolderKey)
	holder[secretEncField] = sealed
	holder[secretPlainField] = ""

	registry := d.objectField(tokenRegistryKey)
	registry[tokenRegistryApp] = sealed
}

// Get returns an arbitrary manifest field.
func (d *Document) Get(key string) (any, bool) {
	v, ok := d.fields[key]
	return v, ok
}

// Set stores an arbitrary manifest field.
func (d *Document) Set(key string, value any) {
	d.fields[key] = value
}

// Encode renders the document in the canonical persisted form.
func (d *Document) Encode() ([]byte, error) {
	return EncodeJSON(d.fields)
}

func (d *Document) stringField(camel, snake string) string {
	for _, key := range []string{camel, snake} {
		if v, ok := d.fields[key]; ok && v != nil {
			if s, ok := v.(string); ok {
				return s
			}
			return fmt.Sprint(v)
		}
	}
	return ""
}

func (d *Document) objectField(key string) map[string]any {
	if obj, ok := d.fields[key].(map[string]any); ok {
		return obj
	}
	obj := map[string]any{}
	d.fields[key] = obj
	return obj
}

func versionKey(style FieldStyle, camel, snake string) string {
	if style == StyleSnake {
		return snake
	}
	return camel
}

// EncodeJSON renders value with two-space indentation, unescaped Unicode,
// and exactly one trailing newline.
func EncodeJSON(value any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(value); err != nil {
		return nil, services.Wrap(services.ErrParse, "manifest", "encode", "marshal JSON", err)
	}
	// json.Encoder already terminates with a single newline.
	return buf.Bytes(), nil
}

// Pretty re-emits arbitrary JSON text in the canonical persisted form.
func Pretty(text string) (string, error) {
	var value any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return "", services.Wrap(services.ErrParse, "manifest", "pretty", "invalid JSON", err)
	}
	out, err := EncodeJSON(value)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// SafeName validates a caller-supplied data file name: base name only, no
// directory components, structured-data extension required.
func SafeName(name string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "", services.Wrap(services.ErrValidation, "manifest", "safe name", "empty file name", nil)
	}
	if !strings.HasSuffix(base, ".json") {
		return "", services.Wrap(services.ErrValidation, "manifest", "safe name", "only .json files are allowed", nil)
	}
	return base, nil
}
