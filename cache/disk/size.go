package disk

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Usage summarizes the committed entries under a cache root.
type Usage struct {
	Entries int
	Bytes   int64
}

// Usage walks the cache root and totals committed entries. Temporary files
// left by in-flight or interrupted writers are not counted.
func (c *Cache) Usage() (Usage, error) {
	var u Usage
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || isTemp(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		u.Entries++
		u.Bytes += info.Size()
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return Usage{}, nil
	}
	return u, err
}
