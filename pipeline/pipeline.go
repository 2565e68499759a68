// Package pipeline runs the translation of a set of resource files: each
// file is parsed once, its values are translated in one provider call for
// all target languages, and one translated file per language is derived
// and written.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/minios-linux/loxml/lockfile"
	"github.com/minios-linux/loxml/markup"
	"github.com/minios-linux/loxml/metafile"
	"github.com/minios-linux/loxml/translate"
	"github.com/minios-linux/loxml/worker"
)

// Options configures a run.
type Options struct {
	// Files are the source resource files, processed in order.
	Files []string
	// From is the source language code.
	From string
	// To lists the target language codes.
	To []string
	// IncludeAttributes also translates attribute values.
	IncludeAttributes bool
	// ExcludeAttributes names attributes whose values are not sent for
	// translation. Namespace declarations are always excluded.
	ExcludeAttributes []string
	// MaxConcurrent bounds parallel per-language derivation (default 4).
	MaxConcurrent int
	// Force ignores the lock file and translates every language.
	Force bool
	// DryRun translates and derives files but writes nothing.
	DryRun bool
	// OnLog emits progress messages.
	OnLog func(format string, args ...any)
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) validate() error {
	if len(o.Files) == 0 {
		return errors.New("no files to translate")
	}
	if o.From == "" {
		return errors.New("source language not set")
	}
	if len(o.To) == 0 {
		return errors.New("no target languages")
	}
	for _, lang := range o.To {
		if lang == "" {
			return errors.New("empty target language")
		}
		if lang == o.From {
			return fmt.Errorf("target language %q equals the source language", lang)
		}
	}
	return nil
}

func (o *Options) excluded() func(name string) bool {
	names := make(map[string]bool, len(o.ExcludeAttributes))
	for _, n := range o.ExcludeAttributes {
		names[n] = true
	}
	return func(name string) bool {
		return markup.IsNamespaceDecl(name) || names[name]
	}
}

// Runner holds the collaborators of a run.
type Runner struct {
	Translator translate.Translator
	// Writer persists translated files. It may be nil for dry runs.
	Writer metafile.Writer
	// Lock records translated files. It may be nil.
	Lock *lockfile.LockFile
}

// Report summarizes a run.
type Report struct {
	// Files is the number of source files processed.
	Files int
	// Written is the number of translated files written.
	Written int
	// Skipped is the number of (file, language) pairs left untouched
	// because they are up to date.
	Skipped int
	// Outputs are the derived output paths in (file, language) order.
	Outputs []string
}

// Run translates opts.Files. It stops at the first failure and returns the
// report of the work done so far together with the error.
func (r *Runner) Run(ctx context.Context, opts Options) (Report, error) {
	var report Report

	if err := opts.validate(); err != nil {
		return report, err
	}
	if r.Translator == nil {
		return report, errors.New("no translator configured")
	}
	if r.Writer == nil && !opts.DryRun {
		return report, errors.New("no writer configured")
	}

	for _, file := range opts.Files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := r.runFile(ctx, file, &opts, &report); err != nil {
			return report, fmt.Errorf("%s: %w", file, err)
		}
		report.Files++

		if r.Lock != nil && !opts.DryRun {
			if err := r.Lock.Save(); err != nil {
				return report, err
			}
		}
	}
	return report, nil
}

func (r *Runner) runFile(ctx context.Context, file string, opts *Options, report *Report) error {
	orig, err := metafile.BuildOriginal(file, opts.From)
	if err != nil {
		return err
	}

	var pending []string
	for _, lang := range opts.To {
		if !opts.Force && r.upToDate(file, lang, orig.Content) {
			report.Skipped++
			continue
		}
		pending = append(pending, lang)
	}
	if len(pending) == 0 {
		opts.log("%s: up to date", file)
		return nil
	}

	req := translate.NewRequest(orig.Nodes, opts.From, pending, opts.IncludeAttributes, opts.excluded())
	opts.log("%s: %d nodes, %d values -> %v", file, len(orig.Nodes), len(req.Values()), pending)

	result, err := r.Translator.Translate(ctx, req)
	if err != nil {
		return fmt.Errorf("translating: %w", err)
	}
	for _, lang := range pending {
		if got, want := len(result[lang]), len(req.Values()); got != want {
			return fmt.Errorf("translating: %w: %d of %d values returned for %s", translate.ErrProviderRejected, got, want, lang)
		}
	}

	workers := opts.MaxConcurrent
	if workers <= 0 {
		workers = 4
	}
	pool := worker.NewPool(workers, func(ctx context.Context, lang string) (*metafile.Translated, error) {
		t, err := metafile.BuildTranslated(orig, lang, result[lang])
		if err != nil {
			return nil, err
		}
		if !opts.DryRun {
			if err := r.Writer.Write(t); err != nil {
				return nil, err
			}
		}
		return t, nil
	})
	done := pool.Execute(ctx, pending)
	if err := worker.FirstError(done); err != nil {
		return err
	}

	for _, task := range done {
		t := task.Result
		report.Outputs = append(report.Outputs, t.Path)
		if opts.DryRun {
			opts.log("  %s: would write %s", t.Language, t.Path)
			continue
		}
		report.Written++
		opts.log("  %s: %s", t.Language, t.Path)
		if r.Lock != nil {
			r.Lock.Update(file, t.Language, orig.Content, t.Path)
		}
	}

	log.Debug().Str("file", file).Int("languages", len(done)).Msg("File translated")
	return nil
}

// upToDate reports whether the lock file says file was already translated
// into lang from the same content and the output still exists.
func (r *Runner) upToDate(file, lang, content string) bool {
	if r.Lock == nil || r.Lock.IsChanged(file, lang, content) {
		return false
	}
	out, ok := r.Lock.Output(file, lang)
	if !ok {
		return false
	}
	_, err := os.Stat(out)
	return err == nil
}
