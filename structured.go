package embedurl

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Format names a structured payload syntax understood by ValidateStructuredAs.
type Format int

const (
	// FormatJSON is strict JSON (RFC 8259), exactly one value.
	FormatJSON Format = iota

	// FormatJSONC is JSON extended with comments and trailing commas.
	FormatJSONC

	// FormatYAML is YAML 1.2.
	FormatYAML
)

// String returns the lowercase name of the format.
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatJSONC:
		return "jsonc"
	case FormatYAML:
		return "yaml"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	return f >= FormatJSON && f <= FormatYAML
}

// ParseFormat parses a format name.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return FormatJSON, nil
	case "jsonc":
		return FormatJSONC, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return 0, fmt.Errorf("embedurl: unknown format %q", name)
	}
}

// ValidateStructured checks that data is a single well-formed JSON value.
// The parsed value is discarded: call sites keep the raw bytes and run
// their own typed decode, which can fail independently.
func ValidateStructured(data []byte) error {
	return ValidateStructuredAs(FormatJSON, data)
}

// ValidateStructuredAs checks that data is well formed in the given format.
// Failures wrap ErrValidation together with the parser error.
func ValidateStructuredAs(format Format, data []byte) error {
	var v any
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &v)
	case FormatJSONC:
		err = json.Unmarshal(jsonc.ToJSON(data), &v)
	case FormatYAML:
		err = yaml.Unmarshal(data, &v)
	default:
		return fmt.Errorf("%w: unsupported format %s", ErrValidation, format)
	}
	if err != nil {
		return fmt.Errorf("%w: invalid %s content: %w", ErrValidation, format, err)
	}
	return nil
}

// ToJSON checks data in the given format and returns it as strict JSON.
// JSON input is returned unchanged. JSONC has its comments and trailing
// commas removed; YAML is decoded and re-encoded, so it must use string
// mapping keys.
func ToJSON(format Format, data []byte) ([]byte, error) {
	if err := ValidateStructuredAs(format, data); err != nil {
		return nil, err
	}
	switch format {
	case FormatJSONC:
		return jsonc.ToJSON(data), nil
	case FormatYAML:
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("%w: invalid yaml content: %w", ErrValidation, err)
		}
		out, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: yaml content has no JSON form: %w", ErrValidation, err)
		}
		return out, nil
	default:
		return data, nil
	}
}
