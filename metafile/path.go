package metafile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DerivePath returns the path of the translation of path into lang: the
// file keeps its name and moves to a sibling of its parent directory
// suffixed with "-lang".
//
//	DerivePath("/x/res/values/file.xml", "ru") == "/x/res/values-ru/file.xml"
//
// The parent directory is made absolute first. DerivePath fails with
// ErrNotAFile if path names a directory.
func DerivePath(path, lang string) (string, error) {
	if lang == "" {
		return "", errors.New("empty language code")
	}
	if path == "" || strings.HasSuffix(path, string(filepath.Separator)) || strings.HasSuffix(path, "/") {
		return "", fmt.Errorf("%q: %w", path, ErrNotAFile)
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return "", fmt.Errorf("%s: %w", path, ErrNotAFile)
	}

	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dir, err)
	}
	return filepath.Join(absDir+"-"+lang, name), nil
}
