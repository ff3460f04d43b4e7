package task

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
)

// replaceFile streams r into path. The content is written to a temp file in
// the same directory and renamed over the destination, so readers either see
// the old file or the complete new one.
func replaceFile(fs afero.Fs, path string, r io.Reader) (int64, error) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if dir == "" {
		dir = "."
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create target dir: %w", err)
	}

	tmpFile, err := afero.TempFile(fs, dir, base+".tmp-")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = fs.Remove(tmpName)
	}()

	n, err := io.Copy(tmpFile, r)
	if err != nil {
		return n, fmt.Errorf("write temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		return n, fmt.Errorf("sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return n, fmt.Errorf("close temp file: %w", err)
	}

	if err := fs.Rename(tmpName, path); err != nil {
		return n, fmt.Errorf("replace target file: %w", err)
	}

	return n, nil
}
