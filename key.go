package embedurl

import (
	"io"

	"github.com/opencontainers/go-digest"
)

// Key identifies a cache entry. It is a sha256 digest whose hex part is
// the entry's file name.
type Key = digest.Digest

// keySeparator separates the key inputs so that ("ab", "c") and ("a", "bc")
// never collide.
var keySeparator = []byte{0}

// DeriveKey computes the cache key for a request. The key covers the
// namespace, the URL exactly as given, and the encoding name.
func DeriveKey(namespace, rawURL string, enc Encoding) Key {
	d := digest.SHA256.Digester()
	h := d.Hash()
	_, _ = io.WriteString(h, namespace)
	_, _ = h.Write(keySeparator)
	_, _ = io.WriteString(h, rawURL)
	_, _ = h.Write(keySeparator)
	_, _ = io.WriteString(h, enc.String())
	return d.Digest()
}
