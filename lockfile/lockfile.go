// Package lockfile implements loxml.lock, a lock file that records the MD5
// checksum of every source file per target language together with the path
// of the translated file written for it. A file whose content is unchanged
// since its last translation is skipped on the next run.
//
// The lock file is stored alongside .loxml.yaml as loxml.lock.
package lockfile

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// LockFileName is the default lock file name.
const LockFileName = "loxml.lock"

// Version is the lock file format version.
const Version = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// Entry is the state of one source file for one language.
type Entry struct {
	Checksum string `yaml:"checksum"`
	Output   string `yaml:"output"`
}

// LockFile represents the loxml.lock file structure.
type LockFile struct {
	Version int                         `yaml:"version"`
	Files   map[string]map[string]Entry `yaml:"files"` // source file -> lang -> entry

	mu   sync.Mutex `yaml:"-"`
	path string     `yaml:"-"`
}

// New returns an empty lock file that saves to dir.
func New(dir string) *LockFile {
	return &LockFile{
		Version: Version,
		Files:   make(map[string]map[string]Entry),
		path:    filepath.Join(dir, LockFileName),
	}
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads a lock file from the given directory.
// Returns an empty lock file if the file doesn't exist.
func Load(dir string) (*LockFile, error) {
	lf := New(dir)

	data, err := os.ReadFile(lf.path)
	if err != nil {
		if os.IsNotExist(err) {
			return lf, nil
		}
		return nil, fmt.Errorf("reading %s: %w", lf.path, err)
	}

	if err := yaml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", lf.path, err)
	}
	if lf.Version > Version {
		return nil, fmt.Errorf("%s: unsupported lock file version %d", lf.path, lf.Version)
	}
	if lf.Files == nil {
		lf.Files = make(map[string]map[string]Entry)
	}

	return lf, nil
}

// Save writes the lock file to disk.
func (lf *LockFile) Save() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.path == "" {
		return fmt.Errorf("lock file path not set")
	}

	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}

	if err := os.WriteFile(lf.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", lf.path, err)
	}

	return nil
}

// Path returns the lock file path.
func (lf *LockFile) Path() string {
	return lf.path
}

// ---------------------------------------------------------------------------
// Checksum operations
// ---------------------------------------------------------------------------

// Hash computes the MD5 hex digest of a string.
func Hash(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

// FileKey normalizes a source path for use as a lock file key.
func FileKey(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}

// IsChanged reports whether file must be translated into lang: it was never
// translated into lang, or its content differs from the last translation.
func (lf *LockFile) IsChanged(file, lang, content string) bool {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	langs, ok := lf.Files[FileKey(file)]
	if !ok {
		return true
	}
	entry, ok := langs[lang]
	if !ok {
		return true
	}
	return entry.Checksum != Hash(content)
}

// Output returns the recorded translated file path for file and lang.
func (lf *LockFile) Output(file, lang string) (string, bool) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	entry, ok := lf.Files[FileKey(file)][lang]
	if !ok || entry.Output == "" {
		return "", false
	}
	return entry.Output, true
}

// Update records a successful translation of content into lang.
func (lf *LockFile) Update(file, lang, content, output string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	key := FileKey(file)
	if lf.Files[key] == nil {
		lf.Files[key] = make(map[string]Entry)
	}
	lf.Files[key][lang] = Entry{Checksum: Hash(content), Output: filepath.ToSlash(output)}
}

// Clean removes files that are no longer part of the current set, so stale
// entries do not accumulate.
func (lf *LockFile) Clean(currentFiles []string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	valid := make(map[string]bool, len(currentFiles))
	for _, f := range currentFiles {
		valid[FileKey(f)] = true
	}

	for f := range lf.Files {
		if !valid[f] {
			delete(lf.Files, f)
		}
	}
}

// RemoveFile removes all entries for a source file.
func (lf *LockFile) RemoveFile(file string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	delete(lf.Files, FileKey(file))
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats returns the number of source files and translated outputs.
func (lf *LockFile) Stats() (files, outputs int) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	files = len(lf.Files)
	for _, m := range lf.Files {
		outputs += len(m)
	}
	return
}

// SourceFiles returns the sorted list of tracked source files.
func (lf *LockFile) SourceFiles() []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	files := make([]string, 0, len(lf.Files))
	for f := range lf.Files {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Languages returns the sorted languages recorded for file.
func (lf *LockFile) Languages(file string) []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	m := lf.Files[FileKey(file)]
	langs := make([]string, 0, len(m))
	for l := range m {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}

// ---------------------------------------------------------------------------
// Human-readable summary
// ---------------------------------------------------------------------------

// Summary returns a human-readable summary string.
func (lf *LockFile) Summary() string {
	files, outputs := lf.Stats()
	if files == 0 {
		return "empty"
	}

	var parts []string
	for _, f := range lf.SourceFiles() {
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(lf.Languages(f), ",")))
	}
	return fmt.Sprintf("%d files, %d outputs (%s)", files, outputs, strings.Join(parts, "; "))
}
