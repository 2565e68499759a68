package cache

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/minios-linux/loxml/translate"
)

// fakeTranslator prefixes every value with its target language.
type fakeTranslator struct {
	requests []translate.Request
	err      error
}

func (f *fakeTranslator) Languages(ctx context.Context) ([]string, error) {
	return []string{"de", "ru"}, nil
}

func (f *fakeTranslator) Translate(ctx context.Context, req translate.Request) (translate.Result, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	res := translate.Result{}
	for _, lang := range req.To {
		for _, v := range req.Values() {
			res[lang] = append(res[lang], translate.Record{Source: v, Translated: lang + ":" + strings.ToUpper(v)})
		}
	}
	return res, nil
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache", "translations.db"))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreGetSet(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	if _, ok, err := s.Get(ctx, "en", "ru", "hello"); err != nil || ok {
		t.Fatalf("Get on empty store = %v, %v", ok, err)
	}

	records := []translate.Record{{Source: "hello", Translated: "привет"}, {Source: "bye", Translated: "пока"}}
	if err := s.SetBatch(ctx, "en", "ru", records); err != nil {
		t.Fatalf("SetBatch error: %v", err)
	}
	got, ok, err := s.Get(ctx, "en", "ru", "hello")
	if err != nil || !ok || got != "привет" {
		t.Errorf("Get() = %q, %v, %v, want привет", got, ok, err)
	}
	if _, ok, _ := s.Get(ctx, "en", "de", "hello"); ok {
		t.Error("Get must be keyed by target language")
	}

	// Upsert replaces the previous translation.
	if err := s.SetBatch(ctx, "en", "ru", []translate.Record{{Source: "hello", Translated: "здравствуйте"}}); err != nil {
		t.Fatal(err)
	}
	if got, _, _ := s.Get(ctx, "en", "ru", "hello"); got != "здравствуйте" {
		t.Errorf("Get() after upsert = %q", got)
	}
	if n, err := s.Len(ctx); err != nil || n != 2 {
		t.Errorf("Len() = %d, %v, want 2", n, err)
	}
}

func TestStorePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tm.db")

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetBatch(ctx, "en", "de", []translate.Record{{Source: "Save", Translated: "Speichern"}}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	if err := s2.Preload(ctx); err != nil {
		t.Fatalf("Preload error: %v", err)
	}
	if got, ok, _ := s2.Get(ctx, "en", "de", "Save"); !ok || got != "Speichern" {
		t.Errorf("Get() = %q, %v", got, ok)
	}
}

func TestTranslatorForwardsOnlyMisses(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	if err := s.SetBatch(ctx, "en", "ru", []translate.Record{{Source: "b", Translated: "cached-b"}}); err != nil {
		t.Fatal(err)
	}

	inner := &fakeTranslator{}
	tr := Wrap(s, inner)

	req := translate.Request{From: "en", To: []string{"ru"}, Texts: []string{"a", "b", "a", "c"}}
	res, err := tr.Translate(ctx, req)
	if err != nil {
		t.Fatalf("Translate error: %v", err)
	}

	if len(inner.requests) != 1 {
		t.Fatalf("inner calls = %d, want 1", len(inner.requests))
	}
	if got, want := inner.requests[0].Values(), []string{"a", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("forwarded values = %v, want %v", got, want)
	}

	want := []translate.Record{
		{Source: "a", Translated: "ru:A"},
		{Source: "b", Translated: "cached-b"},
		{Source: "a", Translated: "ru:A"},
		{Source: "c", Translated: "ru:C"},
	}
	if !reflect.DeepEqual(res["ru"], want) {
		t.Errorf("ru = %v, want %v", res["ru"], want)
	}

	// Second run is served entirely from the cache.
	if _, err := tr.Translate(ctx, req); err != nil {
		t.Fatal(err)
	}
	if len(inner.requests) != 1 {
		t.Errorf("inner calls after warm run = %d, want 1", len(inner.requests))
	}
}

func TestTranslatorOnlyMissingLanguages(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	if err := s.SetBatch(ctx, "en", "ru", []translate.Record{{Source: "x", Translated: "икс"}}); err != nil {
		t.Fatal(err)
	}

	inner := &fakeTranslator{}
	res, err := Wrap(s, inner).Translate(ctx, translate.Request{From: "en", To: []string{"ru", "de"}, Texts: []string{"x"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(inner.requests) != 1 || !reflect.DeepEqual(inner.requests[0].To, []string{"de"}) {
		t.Errorf("forwarded requests = %+v", inner.requests)
	}
	if res["ru"][0].Translated != "икс" || res["de"][0].Translated != "de:X" {
		t.Errorf("res = %v", res)
	}
}

func TestTranslatorPropagatesErrors(t *testing.T) {
	inner := &fakeTranslator{err: translate.ErrProviderUnavailable}
	_, err := Wrap(openStore(t), inner).Translate(context.Background(),
		translate.Request{From: "en", To: []string{"ru"}, Texts: []string{"x"}})
	if !errors.Is(err, translate.ErrProviderUnavailable) {
		t.Errorf("error = %v, want ErrProviderUnavailable", err)
	}
}

func TestTranslatorEmptyRequest(t *testing.T) {
	inner := &fakeTranslator{}
	res, err := Wrap(openStore(t), inner).Translate(context.Background(),
		translate.Request{From: "en", To: []string{"ru"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(inner.requests) != 0 {
		t.Errorf("inner calls = %d, want 0", len(inner.requests))
	}
	if recs, ok := res["ru"]; !ok || len(recs) != 0 {
		t.Errorf("res = %v", res)
	}
}

func TestTranslatorLanguages(t *testing.T) {
	langs, err := Wrap(openStore(t), &fakeTranslator{}).Languages(context.Background())
	if err != nil || !reflect.DeepEqual(langs, []string{"de", "ru"}) {
		t.Errorf("Languages() = %v, %v", langs, err)
	}
}
