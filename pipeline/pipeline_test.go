package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/minios-linux/loxml/lockfile"
	"github.com/minios-linux/loxml/markup"
	"github.com/minios-linux/loxml/metafile"
	"github.com/minios-linux/loxml/translate"
)

const stringsXML = `<?xml version="1.0" encoding="utf-8"?>
<resources xmlns:tools="http://schemas.android.com/tools">
    <string name="app_name" label="Application">Notes</string>
    <string name="greeting">Hello</string>
</resources>
`

// fakeTranslator answers "<lang>:<value>". Languages listed in drop get
// no records.
type fakeTranslator struct {
	mu       sync.Mutex
	requests []translate.Request
	err      error
	drop     []string
}

func (f *fakeTranslator) Languages(ctx context.Context) ([]string, error) {
	return []string{"de", "ru"}, nil
}

func (f *fakeTranslator) Translate(ctx context.Context, req translate.Request) (translate.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	res := translate.Result{}
	for _, lang := range req.To {
		if slices.Contains(f.drop, lang) {
			continue
		}
		res[lang] = []translate.Record{}
		for _, v := range req.Values() {
			res[lang] = append(res[lang], translate.Record{Source: v, Translated: lang + ":" + v})
		}
	}
	return res, nil
}

func (f *fakeTranslator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type failingWriter struct{}

func (failingWriter) Write(t *metafile.Translated) error {
	return metafile.ErrIOFailure
}

func setup(t *testing.T) (root, file string) {
	t.Helper()
	root = t.TempDir()
	dir := filepath.Join(root, "res", "values")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	file = filepath.Join(dir, "strings.xml")
	if err := os.WriteFile(file, []byte(stringsXML), 0644); err != nil {
		t.Fatal(err)
	}
	return root, file
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func TestRun(t *testing.T) {
	root, file := setup(t)
	tr := &fakeTranslator{}
	lock := lockfile.New(root)
	r := &Runner{Translator: tr, Writer: metafile.FileWriter{}, Lock: lock}

	var logs []string
	report, err := r.Run(context.Background(), Options{
		Files: []string{file},
		From:  "en",
		To:    []string{"ru", "de"},
		OnLog: func(format string, args ...any) { logs = append(logs, format) },
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if report.Files != 1 || report.Written != 2 || report.Skipped != 0 {
		t.Errorf("report = %+v", report)
	}
	if tr.calls() != 1 {
		t.Errorf("translator calls = %d, want 1 for all languages", tr.calls())
	}
	if len(logs) == 0 {
		t.Error("OnLog was never called")
	}

	ruPath := filepath.Join(root, "res", "values-ru", "strings.xml")
	if len(report.Outputs) != 2 || report.Outputs[0] != ruPath {
		t.Errorf("Outputs = %v, want %s first", report.Outputs, ruPath)
	}
	want := strings.NewReplacer(">Notes<", ">ru:Notes<", ">Hello<", ">ru:Hello<").Replace(stringsXML)
	if got := readFile(t, ruPath); got != want {
		t.Errorf("ru file =\n%s\nwant\n%s", got, want)
	}
	if got := readFile(t, filepath.Join(root, "res", "values-de", "strings.xml")); !strings.Contains(got, ">de:Hello<") {
		t.Errorf("de file = %s", got)
	}

	if lock.IsChanged(file, "ru", stringsXML) || lock.IsChanged(file, "de", stringsXML) {
		t.Error("lock file not updated")
	}
	if _, err := os.Stat(lock.Path()); err != nil {
		t.Errorf("lock file not saved: %v", err)
	}
}

func TestRunSkipsUpToDate(t *testing.T) {
	root, file := setup(t)
	tr := &fakeTranslator{}
	r := &Runner{Translator: tr, Writer: metafile.FileWriter{}, Lock: lockfile.New(root)}
	opts := Options{Files: []string{file}, From: "en", To: []string{"ru", "de"}}

	if _, err := r.Run(context.Background(), opts); err != nil {
		t.Fatal(err)
	}
	report, err := r.Run(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if report.Skipped != 2 || report.Written != 0 {
		t.Errorf("second run report = %+v", report)
	}
	if tr.calls() != 1 {
		t.Errorf("translator calls = %d, want 1", tr.calls())
	}

	// A deleted output is produced again, alone.
	if err := os.Remove(filepath.Join(root, "res", "values-de", "strings.xml")); err != nil {
		t.Fatal(err)
	}
	report, err = r.Run(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if report.Skipped != 1 || report.Written != 1 {
		t.Errorf("third run report = %+v", report)
	}
	if last := tr.requests[len(tr.requests)-1]; len(last.To) != 1 || last.To[0] != "de" {
		t.Errorf("third run requested %v, want [de]", last.To)
	}

	// Force translates everything again.
	opts.Force = true
	report, err = r.Run(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if report.Written != 2 || report.Skipped != 0 {
		t.Errorf("forced run report = %+v", report)
	}
}

func TestRunRetranslatesChangedFile(t *testing.T) {
	root, file := setup(t)
	tr := &fakeTranslator{}
	r := &Runner{Translator: tr, Writer: metafile.FileWriter{}, Lock: lockfile.New(root)}
	opts := Options{Files: []string{file}, From: "en", To: []string{"ru"}}

	if _, err := r.Run(context.Background(), opts); err != nil {
		t.Fatal(err)
	}
	changed := strings.Replace(stringsXML, "Hello", "Hi", 1)
	if err := os.WriteFile(file, []byte(changed), 0644); err != nil {
		t.Fatal(err)
	}
	report, err := r.Run(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if report.Written != 1 {
		t.Errorf("report = %+v, want file retranslated", report)
	}
	if got := readFile(t, report.Outputs[0]); !strings.Contains(got, ">ru:Hi<") {
		t.Errorf("ru file = %s", got)
	}
}

func TestRunDryRun(t *testing.T) {
	root, file := setup(t)
	lock := lockfile.New(root)
	r := &Runner{Translator: &fakeTranslator{}, Lock: lock}

	report, err := r.Run(context.Background(), Options{
		Files: []string{file}, From: "en", To: []string{"ru"}, DryRun: true,
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if report.Written != 0 || len(report.Outputs) != 1 {
		t.Errorf("report = %+v", report)
	}
	if _, err := os.Stat(report.Outputs[0]); !os.IsNotExist(err) {
		t.Errorf("dry run wrote %s", report.Outputs[0])
	}
	if files, _ := lock.Stats(); files != 0 {
		t.Error("dry run must not update the lock file")
	}
}

func TestRunAttributes(t *testing.T) {
	_, file := setup(t)
	tr := &fakeTranslator{}
	r := &Runner{Translator: tr, Writer: metafile.FileWriter{}}

	report, err := r.Run(context.Background(), Options{
		Files:             []string{file},
		From:              "en",
		To:                []string{"ru"},
		IncludeAttributes: true,
		ExcludeAttributes: []string{"name"},
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	values := tr.requests[0].Values()
	want := []string{"Notes", "Hello", "Application"}
	if strings.Join(values, "|") != strings.Join(want, "|") {
		t.Errorf("values = %v, want %v", values, want)
	}

	got := readFile(t, report.Outputs[0])
	if !strings.Contains(got, `label="ru:Application"`) || !strings.Contains(got, `name="app_name"`) {
		t.Errorf("ru file = %s", got)
	}
	if !strings.Contains(got, `xmlns:tools="http://schemas.android.com/tools"`) {
		t.Error("namespace declaration must not be translated")
	}
}

func TestRunErrors(t *testing.T) {
	root, file := setup(t)

	bad := filepath.Join(root, "bad.xml")
	if err := os.WriteFile(bad, []byte("<resources><string></resources>"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		runner *Runner
		opts   Options
		want   error
	}{
		{
			name:   "provider unavailable",
			runner: &Runner{Translator: &fakeTranslator{err: translate.ErrProviderUnavailable}, Writer: metafile.FileWriter{}},
			opts:   Options{Files: []string{file}, From: "en", To: []string{"ru"}},
			want:   translate.ErrProviderUnavailable,
		},
		{
			name:   "malformed",
			runner: &Runner{Translator: &fakeTranslator{}, Writer: metafile.FileWriter{}},
			opts:   Options{Files: []string{bad}, From: "en", To: []string{"ru"}},
			want:   markup.ErrMalformedDocument,
		},
		{
			name:   "directory",
			runner: &Runner{Translator: &fakeTranslator{}, Writer: metafile.FileWriter{}},
			opts:   Options{Files: []string{root}, From: "en", To: []string{"ru"}},
			want:   metafile.ErrNotAFile,
		},
		{
			name:   "write failure",
			runner: &Runner{Translator: &fakeTranslator{}, Writer: failingWriter{}},
			opts:   Options{Files: []string{file}, From: "en", To: []string{"ru", "de"}},
			want:   metafile.ErrIOFailure,
		},
	}
	for _, tc := range tests {
		_, err := tc.runner.Run(context.Background(), tc.opts)
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: error = %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestRunIncompleteResult(t *testing.T) {
	root, file := setup(t)
	lock := lockfile.New(root)
	r := &Runner{Translator: &fakeTranslator{drop: []string{"de"}}, Writer: metafile.FileWriter{}, Lock: lock}

	report, err := r.Run(context.Background(), Options{Files: []string{file}, From: "en", To: []string{"ru", "de"}})
	if !errors.Is(err, translate.ErrProviderRejected) {
		t.Fatalf("error = %v, want ErrProviderRejected", err)
	}
	if report.Written != 0 {
		t.Errorf("Written = %d, want 0", report.Written)
	}
	for _, lang := range []string{"ru", "de"} {
		if _, err := os.Stat(filepath.Join(root, "res", "values-"+lang, "strings.xml")); !os.IsNotExist(err) {
			t.Errorf("%s output must not be written: %v", lang, err)
		}
		if _, ok := lock.Output(file, lang); ok {
			t.Errorf("%s must not be locked", lang)
		}
	}
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	root, file := setup(t)
	tr := &fakeTranslator{}
	r := &Runner{Translator: tr, Writer: metafile.FileWriter{}}

	report, err := r.Run(context.Background(), Options{
		Files: []string{filepath.Join(root, "missing.xml"), file},
		From:  "en",
		To:    []string{"ru"},
	})
	if !errors.Is(err, metafile.ErrIOFailure) {
		t.Fatalf("error = %v, want ErrIOFailure", err)
	}
	if report.Files != 0 || tr.calls() != 0 {
		t.Errorf("run continued after failure: report = %+v, calls = %d", report, tr.calls())
	}
}

func TestRunValidation(t *testing.T) {
	_, file := setup(t)
	r := &Runner{Translator: &fakeTranslator{}, Writer: metafile.FileWriter{}}

	bad := []Options{
		{From: "en", To: []string{"ru"}},
		{Files: []string{file}, To: []string{"ru"}},
		{Files: []string{file}, From: "en"},
		{Files: []string{file}, From: "en", To: []string{"en"}},
		{Files: []string{file}, From: "en", To: []string{""}},
	}
	for i, opts := range bad {
		if _, err := r.Run(context.Background(), opts); err == nil {
			t.Errorf("case %d: Run(%+v) should fail", i, opts)
		}
	}

	if _, err := (&Runner{Writer: metafile.FileWriter{}}).Run(context.Background(),
		Options{Files: []string{file}, From: "en", To: []string{"ru"}}); err == nil {
		t.Error("Run without translator should fail")
	}
	if _, err := (&Runner{Translator: &fakeTranslator{}}).Run(context.Background(),
		Options{Files: []string{file}, From: "en", To: []string{"ru"}}); err == nil {
		t.Error("Run without writer should fail")
	}
}

func TestRunCancelled(t *testing.T) {
	_, file := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &Runner{Translator: &fakeTranslator{}, Writer: metafile.FileWriter{}}
	if _, err := r.Run(ctx, Options{Files: []string{file}, From: "en", To: []string{"ru"}}); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
