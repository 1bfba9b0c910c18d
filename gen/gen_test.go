package gen

import (
	"bytes"
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/embedurl"
	"github.com/meigma/embedurl/codec"
	"github.com/meigma/embedurl/internal/testutil"
)

// literalOf parses src and returns the unquoted string literal bound to name.
func literalOf(t *testing.T, src []byte, name string) string {
	t.Helper()
	file, err := parser.ParseFile(token.NewFileSet(), "gen.go", src, parser.ParseComments)
	require.NoError(t, err)

	var found string
	ast.Inspect(file, func(n ast.Node) bool {
		spec, ok := n.(*ast.ValueSpec)
		if !ok || len(spec.Names) != 1 || spec.Names[0].Name != name {
			return true
		}
		ast.Inspect(spec.Values[0], func(n ast.Node) bool {
			if lit, ok := n.(*ast.BasicLit); ok && lit.Kind == token.STRING && found == "" {
				s, err := strconv.Unquote(lit.Value)
				require.NoError(t, err)
				found = s
				return false
			}
			return true
		})
		return false
	})
	return found
}

func generate(t *testing.T, content []byte, opts Options) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Generate(&buf, content, opts))
	return buf.Bytes()
}

func TestGenerateString(t *testing.T) {
	t.Parallel()

	src := generate(t, []byte("hello \"world\"\n"), Options{
		Package: "assets",
		Name:    "Readme",
		URL:     "https://example.com/README.md",
	})

	assert.Contains(t, string(src), "// Code generated by embedurl. DO NOT EDIT.")
	assert.Contains(t, string(src), "// Source: https://example.com/README.md")
	assert.Contains(t, string(src), "package assets")
	assert.Contains(t, string(src), "const Readme = ")
	assert.Equal(t, "hello \"world\"\n", literalOf(t, src, "Readme"))
}

func TestGenerateStringRejectsInvalidUTF8(t *testing.T) {
	t.Parallel()

	err := Generate(&bytes.Buffer{}, []byte{0xff, 0xfe}, Options{Package: "p", Name: "X"})
	require.ErrorIs(t, err, embedurl.ErrValidation)
}

func TestGenerateBytesRoundTrip(t *testing.T) {
	t.Parallel()

	payload := []byte{0x00, 0xff, 'a', 0xc3, 0x28, '\n', '"'}
	encoded, err := codec.Encode(payload, codec.Brotli)
	require.NoError(t, err)

	src := generate(t, encoded, Options{
		Package:  "assets",
		Name:     "blob",
		Kind:     Bytes,
		Encoding: codec.Brotli,
	})
	assert.Contains(t, string(src), "// Encoding: Brotli")
	assert.Contains(t, string(src), "var blob = []byte(")

	embedded := []byte(literalOf(t, src, "blob"))
	assert.Equal(t, encoded, embedded)

	decoded, err := codec.Decode(embedded, codec.Brotli)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestGenerateRawJSON(t *testing.T) {
	t.Parallel()

	src := generate(t, []byte(`{"a":1}`), Options{Package: "p", Name: "Doc", Kind: JSON})
	assert.Contains(t, string(src), `"encoding/json"`)
	assert.Contains(t, string(src), "var Doc = json.RawMessage(")
	assert.Equal(t, `{"a":1}`, literalOf(t, src, "Doc"))
}

func TestGenerateTypedJSON(t *testing.T) {
	t.Parallel()

	src := generate(t, []byte(`{"id":1,"title":"x"}`), Options{
		Package: "p",
		Name:    "Post",
		Kind:    JSON,
		Type:    "map[string]any",
	})
	assert.Contains(t, string(src), "const postJSON = ")
	assert.Contains(t, string(src), "var Post = func() map[string]any {")
	assert.Contains(t, string(src), "json.Unmarshal([]byte(postJSON), &v)")
}

func TestGenerateJSONRejectsMalformed(t *testing.T) {
	t.Parallel()

	err := Generate(&bytes.Buffer{}, []byte("not json"), Options{Package: "p", Name: "X", Kind: JSON})
	require.ErrorIs(t, err, embedurl.ErrValidation)
}

func TestGenerateConvertsFormats(t *testing.T) {
	t.Parallel()

	src := generate(t, []byte("{\n  // retries\n  \"max\": 3,\n}"), Options{
		Package: "p",
		Name:    "Config",
		Kind:    JSON,
		Format:  embedurl.FormatJSONC,
	})
	assert.Contains(t, string(src), "// Converted from: jsonc")
	require.NoError(t, embedurl.ValidateStructured([]byte(literalOf(t, src, "Config"))))

	schema := []byte(`{"type":"object","required":["name"]}`)
	src = generate(t, []byte("name: embedurl\nport: 8080\n"), Options{
		Package: "p",
		Name:    "Settings",
		Kind:    JSON,
		Type:    "map[string]any",
		Format:  embedurl.FormatYAML,
		Schema:  schema,
	})
	assert.JSONEq(t, `{"name":"embedurl","port":8080}`, literalOf(t, src, "settingsJSON"))

	err := Generate(&bytes.Buffer{}, []byte("port: 8080\n"), Options{
		Package: "p", Name: "X", Kind: JSON, Format: embedurl.FormatYAML, Schema: schema,
	})
	require.ErrorIs(t, err, embedurl.ErrTypeMismatch)

	err = Generate(&bytes.Buffer{}, []byte("key: [unclosed"), Options{
		Package: "p", Name: "X", Kind: JSON, Format: embedurl.FormatYAML,
	})
	require.ErrorIs(t, err, embedurl.ErrValidation)
}

func TestGenerateSchema(t *testing.T) {
	t.Parallel()

	schema := []byte(`{
		"type": "object",
		"required": ["id", "name", "email", "age"],
		"properties": {
			"id": {"type": "integer"},
			"name": {"type": "string"},
			"email": {"type": "string"},
			"age": {"type": "integer"}
		}
	}`)
	opts := Options{Package: "p", Name: "User", Kind: JSON, Type: "User", Schema: schema}

	// Well-formed JSON with the wrong shape passes the structural check but
	// fails the typed one.
	post := []byte(`{"userId":1,"id":1,"title":"t","body":"b"}`)
	require.NoError(t, embedurl.ValidateStructured(post))
	err := Generate(&bytes.Buffer{}, post, opts)
	require.ErrorIs(t, err, embedurl.ErrTypeMismatch)
	assert.NotErrorIs(t, err, embedurl.ErrValidation)

	user := []byte(`{"id":1,"name":"n","email":"e@example.com","age":30}`)
	src := generate(t, user, opts)
	assert.Contains(t, string(src), "var User = func() User {")
}

func TestGenerateBadSchema(t *testing.T) {
	t.Parallel()

	err := Generate(&bytes.Buffer{}, []byte(`{}`), Options{
		Package: "p", Name: "X", Kind: JSON, Schema: []byte(`{"type": 12}`),
	})
	require.ErrorIs(t, err, ErrInvalidOptions)
}

func TestGenerateImports(t *testing.T) {
	t.Parallel()

	src := generate(t, []byte(`[]`), Options{
		Package: "p",
		Name:    "Stamps",
		Kind:    JSON,
		Type:    "[]time.Time",
		Imports: []string{"time", "encoding/json"},
	})
	assert.Contains(t, string(src), `"time"`)
	assert.Equal(t, 1, bytes.Count(src, []byte(`"encoding/json"`)))
}

func TestOptionsValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts Options
	}{
		{"bad package", Options{Package: "my-pkg", Name: "X"}},
		{"keyword name", Options{Package: "p", Name: "func"}},
		{"empty name", Options{Package: "p"}},
		{"string with encoding", Options{Package: "p", Name: "X", Encoding: codec.Brotli}},
		{"json with encoding", Options{Package: "p", Name: "X", Kind: JSON, Encoding: codec.Zstd}},
		{"type without json", Options{Package: "p", Name: "X", Kind: Bytes, Type: "int"}},
		{"unknown encoding", Options{Package: "p", Name: "X", Kind: Bytes, Encoding: codec.Kind(42)}},
		{"unparseable type", Options{Package: "p", Name: "X", Kind: JSON, Type: "][ not a type"}},
		{"format without json", Options{Package: "p", Name: "X", Format: embedurl.FormatYAML}},
		{"unknown format", Options{Package: "p", Name: "X", Kind: JSON, Format: embedurl.Format(7)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Generate(&bytes.Buffer{}, []byte(`{}`), tt.opts)
			require.ErrorIs(t, err, ErrInvalidOptions)
		})
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	for _, k := range []Kind{String, Bytes, JSON} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("xml")
	require.ErrorIs(t, err, ErrInvalidOptions)
}

func TestFromStore(t *testing.T) {
	t.Parallel()

	origin := testutil.NewOrigin(t)
	origin.Set("/data.json", []byte(`{"a":1}`))
	store, err := embedurl.New(t.TempDir())
	require.NoError(t, err)

	opts := Options{Package: "p", Name: "Data", Kind: JSON, URL: origin.URL("/data.json")}
	first, err := FromStore(context.Background(), store, "p", opts)
	require.NoError(t, err)
	second, err := FromStore(context.Background(), store, "p", opts)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, origin.Requests())
}

func TestFromStoreRejectsOptionsBeforeFetch(t *testing.T) {
	t.Parallel()

	origin := testutil.NewOrigin(t)
	origin.Set("/x", []byte("x"))
	store, err := embedurl.New(t.TempDir())
	require.NoError(t, err)

	_, err = FromStore(context.Background(), store, "p", Options{
		Package: "p", Name: "X", URL: origin.URL("/x"), Encoding: codec.Brotli,
	})
	require.ErrorIs(t, err, ErrInvalidOptions)
	assert.Equal(t, 0, origin.Requests())
}

func TestFromStoreInvalidURL(t *testing.T) {
	t.Parallel()

	store, err := embedurl.New(t.TempDir())
	require.NoError(t, err)

	_, err = FromStore(context.Background(), store, "p", Options{Package: "p", Name: "X", URL: "ftp://example.com"})
	require.ErrorIs(t, err, embedurl.ErrUnsupportedScheme)
}

func TestWriteFileStable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data_gen.go")
	opts := Options{Package: "p", Name: "Data"}
	require.NoError(t, WriteFile(path, []byte("v1"), opts))

	info1, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, WriteFile(path, []byte("v1"), opts))
	info2, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info1.ModTime(), info2.ModTime())

	require.NoError(t, WriteFile(path, []byte("v2"), opts))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v2", literalOf(t, got, "Data"))
}
