package convert

import (
	"fmt"
	"os"
	"path/filepath"
)

// tempPattern names the scratch files created beside an output.
const tempPattern = ".quizqti-*"

// writeFile replaces path with the output of fill. fill writes into a
// temporary file in the same directory, which is renamed over path only
// after it succeeds, so an interrupted run never leaves a truncated
// output. fill receives the temporary path with the extension of path.
func writeFile(path string, fill func(tmp string) error) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, tempPattern+filepath.Ext(path))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := fill(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func writeBytes(path string, data []byte) error {
	return writeFile(path, func(tmp string) error {
		return os.WriteFile(tmp, data, 0644)
	})
}
