package settings

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDataDirAndFilePathUseXDGDataHome(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	dir, err := DataDir()
	if err != nil {
		t.Fatalf("DataDir() error: %v", err)
	}
	wantDir := filepath.Join(tmp, "loxml")
	if dir != wantDir {
		t.Fatalf("DataDir() = %q, want %q", dir, wantDir)
	}

	wantPath := filepath.Join(tmp, "loxml", "auth.json")
	if got := FilePath(); got != wantPath {
		t.Fatalf("FilePath() = %q, want %q", got, wantPath)
	}

	cache, err := CacheFilePath()
	if err != nil {
		t.Fatalf("CacheFilePath() error: %v", err)
	}
	if want := filepath.Join(tmp, "loxml", "translations.db"); cache != want {
		t.Fatalf("CacheFilePath() = %q, want %q", cache, want)
	}
}

func TestSaveLoadRemoveLifecycle(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	store := Store{
		"microsoft": {Key: "subscription-key-1", Region: "westeurope"},
		"groq":      {Key: "gsk_123456789"},
	}
	if err := Save(store); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	path := filepath.Join(tmp, "loxml", "auth.json")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat auth.json: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("auth.json mode = %o, want 600", info.Mode().Perm())
	}

	if got := GetAPIKey("microsoft"); got != "subscription-key-1" {
		t.Fatalf("GetAPIKey(microsoft) = %q", got)
	}
	if got := GetRegion("microsoft"); got != "westeurope" {
		t.Fatalf("GetRegion(microsoft) = %q", got)
	}
	if got, want := List(), []string{"groq", "microsoft"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}

	if err := Remove("groq"); err != nil {
		t.Fatalf("Remove(groq) error: %v", err)
	}
	if got := GetAPIKey("groq"); got != "" {
		t.Fatalf("GetAPIKey after remove = %q, want empty", got)
	}
	if Get("microsoft") == nil {
		t.Fatalf("microsoft should remain after removing groq")
	}
	if err := Remove("missing-provider"); err != nil {
		t.Fatalf("Remove(missing) should be no-op, got: %v", err)
	}

	if err := RemoveAll(); err != nil {
		t.Fatalf("RemoveAll() error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("auth.json should be removed, stat err=%v", err)
	}
	if got := Load(); len(got) != 0 {
		t.Fatalf("Load() after RemoveAll should be empty, got=%#v", got)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)
	if err := os.MkdirAll(filepath.Join(tmp, "loxml"), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmp, "loxml", "auth.json"), []byte("{broken"), 0600); err != nil {
		t.Fatal(err)
	}
	if got := Load(); len(got) != 0 {
		t.Fatalf("Load() of invalid file = %#v, want empty", got)
	}
}

func TestSetAPIKeyKeepsOtherFields(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	if err := Set("custom-openai", &Info{Key: "old", BaseURL: "http://localhost:8080/v1"}); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := SetAPIKey("custom-openai", "new"); err != nil {
		t.Fatalf("SetAPIKey() error: %v", err)
	}
	if got := GetAPIKey("custom-openai"); got != "new" {
		t.Fatalf("key = %q, want new", got)
	}
	if got := GetBaseURL("custom-openai"); got != "http://localhost:8080/v1" {
		t.Fatalf("base URL = %q, want preserved", got)
	}
}

func TestResolveAPIKeyPriority(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv(EnvAPIKey, "")
	t.Setenv("MICROSOFT_TRANSLATOR_KEY", "")

	if err := SetAPIKey("microsoft", "stored-key"); err != nil {
		t.Fatalf("SetAPIKey() error: %v", err)
	}

	t.Setenv("MICROSOFT_TRANSLATOR_KEY", "provider-env-key")
	t.Setenv(EnvAPIKey, "env-key")

	if got := ResolveAPIKey("microsoft", "flag-key"); got != "flag-key" {
		t.Fatalf("flag should win, got %q", got)
	}
	if got := ResolveAPIKey("microsoft", ""); got != "env-key" {
		t.Fatalf("LOXML_API_KEY should win over provider env, got %q", got)
	}

	t.Setenv(EnvAPIKey, "")
	if got := ResolveAPIKey("microsoft", ""); got != "provider-env-key" {
		t.Fatalf("provider env should win over store, got %q", got)
	}

	t.Setenv("MICROSOFT_TRANSLATOR_KEY", "")
	if got := ResolveAPIKey("microsoft", ""); got != "stored-key" {
		t.Fatalf("stored key expected, got %q", got)
	}
}

func TestEnvVarForProviderAndMaskKey(t *testing.T) {
	cases := map[string]string{
		"microsoft":     "MICROSOFT_TRANSLATOR_KEY",
		"google":        "GOOGLE_API_KEY",
		"groq":          "GROQ_API_KEY",
		"custom-openai": "OPENAI_API_KEY",
		"ollama":        "",
		"unknown":       "",
	}
	for provider, want := range cases {
		if got := EnvVarForProvider(provider); got != want {
			t.Fatalf("EnvVarForProvider(%q) = %q, want %q", provider, got, want)
		}
	}

	if got := MaskKey("short"); got != "****" {
		t.Fatalf("MaskKey(short) = %q, want ****", got)
	}
	if got := MaskKey("12345678"); got != "****" {
		t.Fatalf("MaskKey(8 chars) = %q, want ****", got)
	}
	if got := MaskKey("123456789"); got != "1234...6789" {
		t.Fatalf("MaskKey(9 chars) = %q, want 1234...6789", got)
	}
}
