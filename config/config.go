// Package config handles the .loxml.yaml project configuration.
//
// When a .loxml.yaml file exists in the project root, loxml reads the source
// language, target languages, resource file globs and provider settings from
// it. Command-line flags override every value.
//
// Example:
//
//	source_lang: en
//	languages: [ru, de, pt-BR]
//	files:
//	  - app/src/main/res/values/*.xml
//	exclude_attributes: [name, translatable]
//	provider:
//	  id: microsoft
//	  region: westeurope
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/minios-linux/loxml/translate"
)

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// File is the top-level .loxml.yaml structure.
type File struct {
	// SourceLang is the source language code (default "en").
	SourceLang string `yaml:"source_lang,omitempty"`
	// Languages are the target language codes. When empty they are detected
	// from existing translated directories next to each source file.
	Languages []string `yaml:"languages,omitempty"`
	// Files are resource file paths or globs relative to the project root.
	Files []string `yaml:"files"`
	// IncludeAttributes also translates attribute values.
	IncludeAttributes bool `yaml:"include_attributes,omitempty"`
	// ExcludeAttributes names attributes whose values are not sent for
	// translation (default DefaultExcludeAttributes). A value equal to a
	// translated text is still replaced wherever it appears in quotes.
	ExcludeAttributes []string `yaml:"exclude_attributes,omitempty"`
	// Provider selects the translation service.
	Provider Provider `yaml:"provider,omitempty"`
	// ChunkSize is the number of values per provider request.
	ChunkSize int `yaml:"chunk_size,omitempty"`
	// MaxConcurrent bounds parallel provider requests and file derivations.
	MaxConcurrent int `yaml:"max_concurrent,omitempty"`
	// Cache enables the local translation memory (default true).
	Cache *bool `yaml:"cache,omitempty"`
	// Prompt overrides the system prompt of AI providers.
	Prompt string `yaml:"prompt,omitempty"`

	root string
}

// Provider is the provider section of .loxml.yaml. API keys are not stored
// here; see the settings package.
type Provider struct {
	ID      string `yaml:"id,omitempty"`
	Model   string `yaml:"model,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
	Region  string `yaml:"region,omitempty"`
	Proxy   string `yaml:"proxy,omitempty"`
}

// FileName is the default config file name.
const FileName = ".loxml.yaml"

// DefaultExcludeAttributes are identifiers rather than text in common
// resource formats.
var DefaultExcludeAttributes = []string{"name", "translatable", "quantity", "formatted", "type", "id"}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load loads and validates .loxml.yaml from rootDir.
// Returns nil if no .loxml.yaml exists.
func Load(rootDir string) (*File, error) {
	path := filepath.Join(rootDir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	f.root = rootDir

	f.applyDefaults()
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &f, nil
}

// Default returns the configuration used when rootDir has no .loxml.yaml.
// It lists no files.
func Default(rootDir string) *File {
	f := &File{root: rootDir}
	f.applyDefaults()
	return f
}

func (f *File) applyDefaults() {
	if f.SourceLang == "" {
		f.SourceLang = "en"
	}
	if f.Provider.ID == "" {
		f.Provider.ID = translate.ProviderMicrosoft
	}
	if f.ExcludeAttributes == nil {
		f.ExcludeAttributes = append([]string(nil), DefaultExcludeAttributes...)
	}
}

// Validate checks language codes, file globs and the provider ID.
func (f *File) Validate() error {
	if err := ValidateLanguage(f.SourceLang); err != nil {
		return fmt.Errorf("source_lang: %w", err)
	}

	seen := make(map[string]bool, len(f.Languages))
	for _, lang := range f.Languages {
		if err := ValidateLanguage(lang); err != nil {
			return fmt.Errorf("languages: %w", err)
		}
		if lang == f.SourceLang {
			return fmt.Errorf("languages: %q is the source language", lang)
		}
		if seen[lang] {
			return fmt.Errorf("languages: %q listed twice", lang)
		}
		seen[lang] = true
	}

	if len(f.Files) == 0 {
		return fmt.Errorf("no files configured")
	}
	for _, pattern := range f.Files {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("files: bad pattern %q: %w", pattern, err)
		}
	}

	if _, ok := translate.DefaultProviders()[f.Provider.ID]; !ok {
		return fmt.Errorf("provider: unknown id %q (valid: %s)", f.Provider.ID, strings.Join(translate.ProviderIDs(), ", "))
	}
	if f.ChunkSize < 0 || f.MaxConcurrent < 0 {
		return fmt.Errorf("chunk_size and max_concurrent must not be negative")
	}
	return nil
}

// ValidateLanguage reports whether code is a well-formed BCP 47 tag.
func ValidateLanguage(code string) error {
	if code == "" {
		return fmt.Errorf("empty language code")
	}
	if _, err := language.Parse(code); err != nil {
		return fmt.Errorf("invalid language code %q: %w", code, err)
	}
	return nil
}

// CacheEnabled reports whether the translation memory is used.
func (f *File) CacheEnabled() bool {
	return f.Cache == nil || *f.Cache
}

// Root returns the directory the file was loaded from.
func (f *File) Root() string {
	return f.root
}

// ---------------------------------------------------------------------------
// Resolving files and languages
// ---------------------------------------------------------------------------

// ResolveFiles expands the configured globs relative to the project root.
// Matches are deduplicated; each pattern's matches are sorted.
func (f *File) ResolveFiles() ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	for _, pattern := range f.Files {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(f.root, pattern)
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("expanding %q: %w", pattern, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if info, err := os.Stat(m); err != nil || info.IsDir() {
				continue
			}
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	return files, nil
}

// TargetLanguages returns the configured languages, or the languages
// detected next to files when none are configured.
func (f *File) TargetLanguages(files []string) []string {
	if len(f.Languages) > 0 {
		return f.Languages
	}

	seen := make(map[string]bool)
	var all []string
	for _, file := range files {
		for _, lang := range DetectLanguages(file) {
			if lang != f.SourceLang && !seen[lang] {
				seen[lang] = true
				all = append(all, lang)
			}
		}
	}
	sort.Strings(all)
	return all
}

// DetectLanguages finds translations of file that already exist: for
// res/values/strings.xml every res/values-<lang>/strings.xml whose suffix is
// a valid language code.
func DetectLanguages(file string) []string {
	absFile, err := filepath.Abs(file)
	if err != nil {
		return nil
	}
	dir := filepath.Dir(absFile)
	parent, base := filepath.Dir(dir), filepath.Base(dir)
	name := filepath.Base(absFile)

	entries, err := os.ReadDir(parent)
	if err != nil {
		return nil
	}

	var langs []string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), base+"-") {
			continue
		}
		lang := strings.TrimPrefix(entry.Name(), base+"-")
		if ValidateLanguage(lang) != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(parent, entry.Name(), name)); err == nil {
			langs = append(langs, lang)
		}
	}
	sort.Strings(langs)
	return langs
}
