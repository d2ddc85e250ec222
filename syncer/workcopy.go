package syncer

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/robertof/go-thermo-sync/bucket"
	"github.com/robertof/go-thermo-sync/device"
)

// workingCopy is the local scratch file of one bucket during one sync episode.
type workingCopy struct {
	path string
}

// reset replaces whatever is at path with content.
func (w workingCopy) reset(content []byte) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return localIOError(err, "create scratch dir for %q", w.path)
	}

	if err := os.WriteFile(w.path, content, 0o644); err != nil {
		_ = w.discard()
		return localIOError(err, "write working copy %q", w.path)
	}

	return nil
}

// append adds one row per reading at the end of the file.
func (w workingCopy) append(readings []device.Reading) error {
	f, err := os.OpenFile(w.path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return localIOError(err, "open working copy %q", w.path)
	}

	cw := csv.NewWriter(f)

	for _, r := range readings {
		if err := cw.Write(bucket.Row(r)); err != nil {
			f.Close()
			return localIOError(err, "append to working copy %q", w.path)
		}
	}

	cw.Flush()

	if err := cw.Error(); err != nil {
		f.Close()
		return localIOError(err, "append to working copy %q", w.path)
	}

	if err := f.Close(); err != nil {
		return localIOError(err, "close working copy %q", w.path)
	}

	return nil
}

func (w workingCopy) read() ([]byte, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, localIOError(err, "read working copy %q", w.path)
	}

	return data, nil
}

func (w workingCopy) discard() error {
	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		return localIOError(err, "remove working copy %q", w.path)
	}

	return nil
}

// countRows returns the number of non-empty lines after the first.
func countRows(content []byte) int {
	lines := bytes.Split(content, []byte("\n"))
	n := 0

	for i, line := range lines {
		if i > 0 && len(bytes.TrimSpace(line)) > 0 {
			n += 1
		}
	}

	return n
}
