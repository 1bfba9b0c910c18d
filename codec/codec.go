// Package codec implements the lossless transforms applied to cache entries
// before they are persisted, and the matching decode path used by consumers.
//
// The textual name of a Kind is part of every cache key, so names are
// protocol constants: renaming one orphans every entry stored under it.
package codec

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Kind identifies the transform applied to cached bytes.
type Kind uint8

const (
	// None stores the fetched bytes unchanged.
	None Kind = iota

	// Brotli compresses at quality 11 with a 2^22 byte window. Encoding is
	// slow but runs once per cache entry; the output is what gets embedded.
	Brotli

	// Zstd compresses with klauspost/compress at its best-compression level.
	Zstd

	// Gzip compresses with klauspost/compress/gzip at BestCompression.
	Gzip

	// LZ4 compresses using the LZ4 frame format at level 9.
	LZ4
)

// Brotli parameters.
const (
	BrotliQuality = 11
	BrotliWindow  = 22
)

// Kinds lists every supported kind in declaration order.
var Kinds = []Kind{None, Brotli, Zstd, Gzip, LZ4}

// String returns the stable name of the kind.
func (k Kind) String() string {
	switch k {
	case None:
		return "None"
	case Brotli:
		return "Brotli"
	case Zstd:
		return "Zstd"
	case Gzip:
		return "Gzip"
	case LZ4:
		return "LZ4"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k <= LZ4
}

// Parse parses a kind name. Matching is case-insensitive and the empty
// string is None.
func Parse(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "identity":
		return None, nil
	case "brotli", "br":
		return Brotli, nil
	case "zstd":
		return Zstd, nil
	case "gzip", "gz":
		return Gzip, nil
	case "lz4":
		return LZ4, nil
	default:
		return None, fmt.Errorf("codec: unknown encoding %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("codec: invalid kind %d", uint8(k))
	}
	return []byte(strings.ToLower(k.String())), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// NewWriter returns a writer that encodes everything written to it into w.
// Close must be called to flush the final block; it does not close w.
func NewWriter(w io.Writer, kind Kind) (io.WriteCloser, error) {
	switch kind {
	case None:
		return nopWriteCloser{w}, nil
	case Brotli:
		return brotli.NewWriterOptions(w, brotli.WriterOptions{
			Quality: BrotliQuality,
			LGWin:   BrotliWindow,
		}), nil
	case Zstd:
		enc, err := zstd.NewWriter(w,
			zstd.WithEncoderLevel(zstd.SpeedBestCompression),
			zstd.WithZeroFrames(true),
		)
		if err != nil {
			return nil, fmt.Errorf("codec: configure zstd: %w", err)
		}
		return enc, nil
	case Gzip:
		gw, err := gzip.NewWriterLevel(w, gzip.BestCompression)
		if err != nil {
			return nil, fmt.Errorf("codec: configure gzip: %w", err)
		}
		return gw, nil
	case LZ4:
		zw := lz4.NewWriter(w)
		if err := zw.Apply(lz4.CompressionLevelOption(lz4.Level9)); err != nil {
			return nil, fmt.Errorf("codec: configure lz4: %w", err)
		}
		return zw, nil
	default:
		return nil, fmt.Errorf("codec: unsupported kind %s", kind)
	}
}

// NewReader returns a reader that decodes kind-encoded data read from r.
func NewReader(r io.Reader, kind Kind) (io.ReadCloser, error) {
	switch kind {
	case None:
		return io.NopCloser(r), nil
	case Brotli:
		return io.NopCloser(brotli.NewReader(r)), nil
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case Gzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return gr, nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("codec: unsupported kind %s", kind)
	}
}

// Encode returns data encoded with kind. For None the input slice is
// returned as is.
func Encode(data []byte, kind Kind) ([]byte, error) {
	if kind == None {
		return data, nil
	}
	var buf bytes.Buffer
	w, err := NewWriter(&buf, kind)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("codec: write %s: %w", kind, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("codec: flush %s: %w", kind, err)
	}
	return buf.Bytes(), nil
}

// Decode inverts Encode.
func Decode(data []byte, kind Kind) ([]byte, error) {
	if kind == None {
		return data, nil
	}
	r, err := NewReader(bytes.NewReader(data), kind)
	if err != nil {
		return nil, fmt.Errorf("codec: open %s: %w", kind, err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("codec: decode %s: %w", kind, err)
	}
	return out, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
