// Package gen turns cached resources into Go source files.
//
// A generated file declares one identifier holding the resource: a string
// constant, a byte slice, raw JSON, or a typed value decoded from JSON at
// package initialization. It is meant to be driven from go generate.
package gen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"go/format"
	"go/token"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/meigma/embedurl"
	"github.com/meigma/embedurl/codec"
)

// ErrInvalidOptions is returned when Options cannot describe a valid file.
var ErrInvalidOptions = errors.New("gen: invalid options")

// Kind selects the Go construct emitted for a resource.
type Kind int

const (
	// String emits a string constant. The resource must be UTF-8 and
	// stored without encoding.
	String Kind = iota

	// Bytes emits a []byte variable holding the cache entry as stored,
	// compressed if an encoding was requested.
	Bytes

	// JSON emits json.RawMessage, or a value of Options.Type decoded at
	// package initialization.
	JSON
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Bytes:
		return "bytes"
	case JSON:
		return "json"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind parses a kind name.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(name) {
	case "", "string", "str":
		return String, nil
	case "bytes":
		return Bytes, nil
	case "json":
		return JSON, nil
	default:
		return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidOptions, name)
	}
}

// Options describes one generated file.
type Options struct {
	// Package is the package clause of the generated file.
	Package string

	// Name is the identifier declared for the resource.
	Name string

	// URL is the resource location.
	URL string

	// Encoding is applied to the cache entry. Only Bytes accepts an
	// encoding other than None.
	Encoding codec.Kind

	// Kind selects the emitted construct.
	Kind Kind

	// Type is a Go type expression for typed JSON, such as "[]Post" or
	// "map[string]any". Empty emits json.RawMessage.
	Type string

	// Schema is an optional JSON Schema document the payload must satisfy.
	Schema []byte

	// Format is the syntax of a JSON resource. JSONC and YAML payloads are
	// converted to strict JSON before they are checked and embedded.
	Format embedurl.Format

	// Imports lists extra import paths needed by Type.
	Imports []string
}

// Validate reports whether o describes a file Generate can write. It does
// not look at the resource content.
func (o Options) Validate() error {
	if !token.IsIdentifier(o.Package) {
		return fmt.Errorf("%w: package %q is not an identifier", ErrInvalidOptions, o.Package)
	}
	if !token.IsIdentifier(o.Name) {
		return fmt.Errorf("%w: name %q is not an identifier", ErrInvalidOptions, o.Name)
	}
	if !o.Encoding.Valid() {
		return fmt.Errorf("%w: unknown encoding %s", ErrInvalidOptions, o.Encoding)
	}
	if o.Kind != Bytes && o.Encoding != codec.None {
		return fmt.Errorf("%w: kind %s cannot use encoding %s", ErrInvalidOptions, o.Kind, o.Encoding)
	}
	if o.Kind != JSON && (o.Type != "" || len(o.Schema) > 0) {
		return fmt.Errorf("%w: type and schema require kind json", ErrInvalidOptions)
	}
	if !o.Format.Valid() {
		return fmt.Errorf("%w: unknown format %s", ErrInvalidOptions, o.Format)
	}
	if o.Kind != JSON && o.Format != embedurl.FormatJSON {
		return fmt.Errorf("%w: format %s requires kind json", ErrInvalidOptions, o.Format)
	}
	return nil
}

// FromStore fetches the resource described by opts through store and
// returns the generated source.
func FromStore(ctx context.Context, store *embedurl.Store, namespace string, opts Options) ([]byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	content, err := store.ReadFile(ctx, namespace, opts.URL, opts.Encoding)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := Generate(&buf, content, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Generate writes a Go source file embedding content, the bytes of a cache
// entry, to w.
func Generate(w io.Writer, content []byte, opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	content, err := check(content, opts)
	if err != nil {
		return err
	}

	var src bytes.Buffer
	fmt.Fprintf(&src, "// Code generated by embedurl. DO NOT EDIT.\n")
	if opts.URL != "" {
		fmt.Fprintf(&src, "// Source: %s\n", opts.URL)
	}
	if opts.Encoding != codec.None {
		fmt.Fprintf(&src, "// Encoding: %s\n", opts.Encoding)
	}
	if opts.Format != embedurl.FormatJSON {
		fmt.Fprintf(&src, "// Converted from: %s\n", opts.Format)
	}
	fmt.Fprintf(&src, "\npackage %s\n\n", opts.Package)

	imports := slices.Clone(opts.Imports)
	if opts.Kind == JSON {
		imports = append(imports, "encoding/json")
	}
	slices.Sort(imports)
	imports = slices.Compact(imports)
	if len(imports) > 0 {
		src.WriteString("import (\n")
		for _, path := range imports {
			fmt.Fprintf(&src, "\t%s\n", strconv.Quote(path))
		}
		src.WriteString(")\n\n")
	}

	literal := strconv.Quote(string(content))
	switch opts.Kind {
	case String:
		fmt.Fprintf(&src, "const %s = %s\n", opts.Name, literal)
	case Bytes:
		fmt.Fprintf(&src, "var %s = []byte(%s)\n", opts.Name, literal)
	case JSON:
		if opts.Type == "" {
			fmt.Fprintf(&src, "var %s = json.RawMessage(%s)\n", opts.Name, literal)
			break
		}
		raw := rawName(opts.Name)
		fmt.Fprintf(&src, "const %s = %s\n\n", raw, literal)
		fmt.Fprintf(&src, "var %s = func() %s {\n", opts.Name, opts.Type)
		fmt.Fprintf(&src, "\tvar v %s\n", opts.Type)
		fmt.Fprintf(&src, "\tif err := json.Unmarshal([]byte(%s), &v); err != nil {\n", raw)
		fmt.Fprintf(&src, "\t\tpanic(%s + err.Error())\n", strconv.Quote("embedurl: decode "+opts.Name+": "))
		src.WriteString("\t}\n\treturn v\n}()\n")
	default:
		return fmt.Errorf("%w: unknown kind %s", ErrInvalidOptions, opts.Kind)
	}

	formatted, err := format.Source(src.Bytes())
	if err != nil {
		return fmt.Errorf("%w: format generated source: %w", ErrInvalidOptions, err)
	}
	if _, err := w.Write(formatted); err != nil {
		return fmt.Errorf("%w: %w", embedurl.ErrIO, err)
	}
	return nil
}

// WriteFile generates source into path, replacing it only when the content
// changed so that file timestamps stay stable across runs.
func WriteFile(path string, content []byte, opts Options) error {
	var buf bytes.Buffer
	if err := Generate(&buf, content, opts); err != nil {
		return err
	}
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, buf.Bytes()) { //nolint:gosec // path is chosen by the caller
		return nil
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil { //nolint:gosec // generated sources are world-readable
		return fmt.Errorf("%w: %w", embedurl.ErrIO, err)
	}
	return nil
}

// check validates content for opts and returns the bytes to embed.
func check(content []byte, opts Options) ([]byte, error) {
	switch opts.Kind {
	case String:
		if !utf8.Valid(content) {
			return nil, fmt.Errorf("%w: content of %s is not valid UTF-8", embedurl.ErrValidation, opts.URL)
		}
	case JSON:
		out, err := embedurl.ToJSON(opts.Format, content)
		if err != nil {
			return nil, err
		}
		if len(opts.Schema) > 0 {
			if err := checkSchema(out, opts.Schema); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	return content, nil
}

const schemaURL = "https://embedurl.local/schema.json"

func checkSchema(content, schema []byte) error {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, bytes.NewReader(schema)); err != nil {
		return fmt.Errorf("%w: load schema: %w", ErrInvalidOptions, err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return fmt.Errorf("%w: compile schema: %w", ErrInvalidOptions, err)
	}

	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("%w: %w", embedurl.ErrValidation, err)
	}
	if err := compiled.Validate(v); err != nil {
		return fmt.Errorf("%w: %w", embedurl.ErrTypeMismatch, err)
	}
	return nil
}

// rawName returns the identifier of the constant holding typed JSON input.
func rawName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToLower(r)) + name[size:] + "JSON"
}
