// Package metafile assembles the in-memory representations of a resource
// file and of its translations.
//
// An Original is read and parsed once per source file. A Translated is
// derived from it per target language by reinjecting translation records
// into the original raw content. Neither is written by this package on its
// own; a Writer persists Translated values when the caller asks for it.
package metafile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/minios-linux/loxml/markup"
	"github.com/minios-linux/loxml/merge"
	"github.com/minios-linux/loxml/translate"
)

var (
	// ErrNotAFile is returned when a file operation receives a directory.
	ErrNotAFile = markup.ErrNotAFile
	// ErrIOFailure wraps read and write failures.
	ErrIOFailure = errors.New("i/o failure")
)

// Original is a parsed source file. It is not modified after BuildOriginal.
type Original struct {
	Path     string
	Language string
	Content  string
	Nodes    []markup.Node
}

// Translated is one translation of an Original. It is not modified after
// BuildTranslated.
type Translated struct {
	Path     string
	Language string
	Content  string
	Nodes    []markup.Node
	// Records are the applied records, in application order.
	Records []translate.Record
	// Original is the source this translation was derived from.
	Original *Original
}

// BuildOriginal reads and parses the file at path written in lang.
func BuildOriginal(path, lang string) (*Original, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotAFile)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}

	log.Debug().Str("path", path).Str("lang", lang).Msg("Started parsing file")
	nodes, err := markup.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	log.Debug().Str("path", path).Int("nodes", len(nodes)).Msg("Original metafile created")

	return &Original{
		Path:     path,
		Language: lang,
		Content:  string(data),
		Nodes:    nodes,
	}, nil
}

// BuildTranslated derives the translation of orig into lang from records.
func BuildTranslated(orig *Original, lang string, records []translate.Record) (*Translated, error) {
	if orig == nil {
		return nil, errors.New("nil original")
	}
	if lang == "" {
		return nil, errors.New("empty language code")
	}

	path, err := DerivePath(orig.Path, lang)
	if err != nil {
		return nil, err
	}

	applied := merge.Order(records)
	content, err := merge.MergeStrict(orig.Content, applied)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", lang, err)
	}
	t := &Translated{
		Path:     path,
		Language: lang,
		Content:  content,
		Nodes:    slices.Clone(orig.Nodes),
		Records:  applied,
		Original: orig,
	}
	log.Debug().Str("path", path).Str("lang", lang).Int("records", len(records)).Msg("Translated metafile created")
	return t, nil
}
