package embedurl

import "github.com/meigma/embedurl/codec"

// Encoding selects the transform applied to a resource before it is
// cached. It is part of the cache key.
type Encoding = codec.Kind

// Encodings re-exported from codec.
const (
	EncodingNone   = codec.None
	EncodingBrotli = codec.Brotli
	EncodingZstd   = codec.Zstd
	EncodingGzip   = codec.Gzip
	EncodingLZ4    = codec.LZ4
)

// ParseEncoding parses an encoding name such as "none" or "brotli".
func ParseEncoding(name string) (Encoding, error) {
	return codec.Parse(name)
}

// Decode reverses enc on data read from a cache entry.
func Decode(data []byte, enc Encoding) ([]byte, error) {
	return codec.Decode(data, enc)
}
