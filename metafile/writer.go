package metafile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Writer persists translated files.
type Writer interface {
	Write(t *Translated) error
}

// FileWriter writes a Translated to its Path, creating the parent directory.
type FileWriter struct {
	// Perm is the file mode of written files (0644 when zero).
	Perm os.FileMode
}

// Write implements Writer.
func (w FileWriter) Write(t *Translated) error {
	perm := w.Perm
	if perm == 0 {
		perm = 0644
	}

	if err := os.MkdirAll(filepath.Dir(t.Path), 0755); err != nil {
		return fmt.Errorf("%w: creating directory for %s: %v", ErrIOFailure, t.Path, err)
	}
	if err := os.WriteFile(t.Path, []byte(t.Content), perm); err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrIOFailure, t.Path, err)
	}

	log.Debug().Str("path", t.Path).Str("lang", t.Language).Msg("Translated file written")
	return nil
}
