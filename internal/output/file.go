package output

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// timestampLayout is the YYYYMMDD_HHMMSS suffix of saved files.
const timestampLayout = "20060102_150405"

// FileName returns "<prefix>_<YYYYMMDD_HHMMSS>.<ext>" for t.
func FileName(prefix string, format Format, t time.Time) string {
	return fmt.Sprintf("%s_%s.%s", prefix, t.Format(timestampLayout), format.Extension())
}

// Save writes v to a new timestamped file in dir and returns its path.
func Save(dir, prefix string, format Format, v any, t time.Time) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(dir, FileName(prefix, format, t))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}

	w, err := NewWriter(f, format)
	if err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := w.Write(v); err != nil {
		f.Close()
		return "", fmt.Errorf("encode %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}
