package lockfile

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestHashDeterministic(t *testing.T) {
	h1 := Hash("<string>hello</string>")
	h2 := Hash("<string>hello</string>")
	if h1 != h2 {
		t.Errorf("Hash not deterministic: %s != %s", h1, h2)
	}
	h3 := Hash("<string>different</string>")
	if h1 == h3 {
		t.Errorf("Hash collision: %s == %s", h1, h3)
	}
}

func TestLoadNonExistent(t *testing.T) {
	dir := t.TempDir()
	lf, err := Load(dir)
	if err != nil {
		t.Fatalf("Load returned error for non-existent file: %v", err)
	}
	if lf.Version != Version {
		t.Errorf("Version = %d, want %d", lf.Version, Version)
	}
	if len(lf.Files) != 0 {
		t.Errorf("Files not empty: %v", lf.Files)
	}
	if want := filepath.Join(dir, LockFileName); lf.Path() != want {
		t.Errorf("Path() = %q, want %q", lf.Path(), want)
	}
}

func TestLoadRejectsNewerVersion(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, LockFileName), []byte("version: 99\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("Load should reject a newer lock file version")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, LockFileName), []byte("files: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("Load should fail on invalid YAML")
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()

	lf, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	lf.Update("res/values/strings.xml", "ru", "content", "res/values-ru/strings.xml")
	lf.Update("res/values/strings.xml", "de", "content", "res/values-de/strings.xml")
	lf.Update("res/values/arrays.xml", "ru", "arrays", "res/values-ru/arrays.xml")

	if err := lf.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	path := filepath.Join(dir, LockFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatalf("Lock file not created at %s", path)
	}

	lf2, err := Load(dir)
	if err != nil {
		t.Fatalf("Load after save: %v", err)
	}

	files, outputs := lf2.Stats()
	if files != 2 {
		t.Errorf("files = %d, want 2", files)
	}
	if outputs != 3 {
		t.Errorf("outputs = %d, want 3", outputs)
	}
	if lf2.IsChanged("res/values/strings.xml", "de", "content") {
		t.Error("reloaded entry should not be changed")
	}
	if out, ok := lf2.Output("res/values/strings.xml", "de"); !ok || out != "res/values-de/strings.xml" {
		t.Errorf("Output() = %q, %v", out, ok)
	}
}

func TestIsChanged(t *testing.T) {
	lf := New(t.TempDir())

	if !lf.IsChanged("a.xml", "ru", "v1") {
		t.Error("new file should be changed")
	}

	lf.Update("a.xml", "ru", "v1", "a-ru/a.xml")
	if lf.IsChanged("a.xml", "ru", "v1") {
		t.Error("unchanged content should not be changed")
	}
	if !lf.IsChanged("a.xml", "ru", "v2") {
		t.Error("modified content should be changed")
	}
	if !lf.IsChanged("a.xml", "de", "v1") {
		t.Error("untranslated language should be changed")
	}
	if lf.IsChanged("./a.xml", "ru", "v1") {
		t.Error("equivalent paths should share an entry")
	}
}

func TestOutputMissing(t *testing.T) {
	lf := New(t.TempDir())
	if _, ok := lf.Output("a.xml", "ru"); ok {
		t.Error("Output() on empty lock file should report false")
	}
}

func TestClean(t *testing.T) {
	lf := New(t.TempDir())
	lf.Update("keep.xml", "ru", "x", "out/keep.xml")
	lf.Update("gone.xml", "ru", "x", "out/gone.xml")

	lf.Clean([]string{"keep.xml"})

	if lf.IsChanged("keep.xml", "ru", "x") {
		t.Error("keep.xml should still be tracked")
	}
	if got := lf.SourceFiles(); !reflect.DeepEqual(got, []string{"keep.xml"}) {
		t.Errorf("SourceFiles() = %v, want [keep.xml]", got)
	}
}

func TestRemoveFile(t *testing.T) {
	lf := New(t.TempDir())
	lf.Update("a.xml", "ru", "x", "o")
	lf.RemoveFile("a.xml")

	files, _ := lf.Stats()
	if files != 0 {
		t.Errorf("files after RemoveFile = %d, want 0", files)
	}
}

func TestSourceFilesAndLanguages(t *testing.T) {
	lf := New(t.TempDir())
	lf.Update("b.xml", "ru", "x", "o")
	lf.Update("a.xml", "ru", "x", "o")
	lf.Update("a.xml", "de", "x", "o")

	if got, want := lf.SourceFiles(), []string{"a.xml", "b.xml"}; !reflect.DeepEqual(got, want) {
		t.Errorf("SourceFiles() = %v, want %v", got, want)
	}
	if got, want := lf.Languages("a.xml"), []string{"de", "ru"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Languages() = %v, want %v", got, want)
	}
}

func TestSummary(t *testing.T) {
	lf := New(t.TempDir())
	if lf.Summary() != "empty" {
		t.Errorf("empty summary = %q, want %q", lf.Summary(), "empty")
	}

	lf.Update("a.xml", "ru", "x", "o")
	lf.Update("a.xml", "de", "x", "o")
	s := lf.Summary()
	if !strings.HasPrefix(s, "1 files, 2 outputs") || !strings.Contains(s, "a.xml: de,ru") {
		t.Errorf("Summary() = %q", s)
	}
}

func TestConcurrentAccess(t *testing.T) {
	lf := New(t.TempDir())

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(n int) {
			lang := "l" + string(rune('0'+n))
			lf.Update("a.xml", lang, "value", "out")
			lf.IsChanged("a.xml", lang, "value")
			lf.Stats()
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	_, outputs := lf.Stats()
	if outputs != 10 {
		t.Errorf("outputs after concurrent writes = %d, want 10", outputs)
	}
}
