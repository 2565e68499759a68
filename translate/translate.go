// Package translate defines the translation provider boundary used by loxml
// and implements it for Microsoft Translator and a set of HTTP-based AI
// providers: Google AI (Gemini), Groq, Ollama and custom OpenAI-compatible
// endpoints.
//
// A provider receives a batch of source strings and returns, for every
// requested target language, one Record per input value in input order.
package translate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/minios-linux/loxml/markup"
)

var (
	// ErrProviderUnavailable means the provider could not be reached or kept
	// failing with transient errors (network, 5xx, 429) after all retries.
	ErrProviderUnavailable = errors.New("translation provider unavailable")
	// ErrProviderRejected means the provider refused the request or answered
	// with something that cannot be used.
	ErrProviderRejected = errors.New("translation provider rejected request")
)

// ---------------------------------------------------------------------------
// Data model
// ---------------------------------------------------------------------------

// Record pairs one source value with its translation for one language.
// It carries no position; reinjection locates values by content.
type Record struct {
	Source     string `json:"source"`
	Translated string `json:"translated"`
}

// Result maps a target language code to its records.
type Result map[string][]Record

// newResult returns a Result with an empty record list per language.
func newResult(langs []string) Result {
	r := make(Result, len(langs))
	for _, lang := range langs {
		r[lang] = []Record{}
	}
	return r
}

// Request is one batch of values to translate.
type Request struct {
	// From is the source language code.
	From string
	// To lists the target language codes.
	To []string
	// Texts are the non-empty element text values in document order.
	Texts []string
	// Attributes are the non-empty attribute values in document order.
	Attributes []string
	// IncludeAttributes sends Attributes along with Texts.
	IncludeAttributes bool
}

// NewRequest builds a request from parsed nodes. exclude filters attribute
// names and may be nil.
func NewRequest(nodes []markup.Node, from string, to []string, includeAttributes bool, exclude func(name string) bool) Request {
	req := Request{
		From:              from,
		To:                append([]string(nil), to...),
		Texts:             markup.Texts(nodes),
		IncludeAttributes: includeAttributes,
	}
	if includeAttributes {
		req.Attributes = markup.AttributeValues(nodes, exclude)
	}
	return req
}

// Values returns the strings sent to the provider: texts first, then
// attribute values when IncludeAttributes is set.
func (r Request) Values() []string {
	values := append([]string(nil), r.Texts...)
	if r.IncludeAttributes {
		values = append(values, r.Attributes...)
	}
	return values
}

// validate checks the fields every provider needs.
func (r Request) validate() error {
	if r.From == "" {
		return fmt.Errorf("%w: empty source language", ErrProviderRejected)
	}
	if len(r.To) == 0 {
		return fmt.Errorf("%w: no target languages", ErrProviderRejected)
	}
	for _, lang := range r.To {
		if lang == "" {
			return fmt.Errorf("%w: empty target language", ErrProviderRejected)
		}
	}
	return nil
}

// Translator is the capability the pipeline consumes.
type Translator interface {
	// Languages lists the language codes the provider can translate to.
	Languages(ctx context.Context) ([]string, error)
	// Translate translates req.Values() into every language in req.To.
	Translate(ctx context.Context, req Request) (Result, error)
}

// ---------------------------------------------------------------------------
// Provider configuration
// ---------------------------------------------------------------------------

// Provider IDs.
const (
	ProviderMicrosoft    = "microsoft"
	ProviderGoogle       = "google"
	ProviderGroq         = "groq"
	ProviderOllama       = "ollama"
	ProviderCustomOpenAI = "custom-openai"
)

// Provider holds the configuration for a translation service.
type Provider struct {
	// ID is the provider identifier (microsoft, google, groq, ...).
	ID string
	// Name is the display name.
	Name string
	// BaseURL is the API base URL.
	BaseURL string
	// APIKey is the authentication key (empty for local services).
	APIKey string
	// Region is the Azure resource region (Microsoft only, optional).
	Region string
	// Model is the model identifier (AI providers only).
	Model string
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string
	// Timeout is the request timeout.
	Timeout time.Duration
}

// DefaultProviders returns the pre-configured provider definitions.
func DefaultProviders() map[string]Provider {
	return map[string]Provider{
		ProviderMicrosoft: {
			ID:      ProviderMicrosoft,
			Name:    "Microsoft Translator",
			BaseURL: "https://api.cognitive.microsofttranslator.com",
			Timeout: 30 * time.Second,
		},
		ProviderGoogle: {
			ID:      ProviderGoogle,
			Name:    "Google AI (Gemini)",
			BaseURL: "https://generativelanguage.googleapis.com",
			Model:   "gemini-2.5-flash",
			Timeout: 120 * time.Second,
		},
		ProviderGroq: {
			ID:      ProviderGroq,
			Name:    "Groq",
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "llama-3.3-70b-versatile",
			Timeout: 60 * time.Second,
		},
		ProviderOllama: {
			ID:      ProviderOllama,
			Name:    "Ollama",
			BaseURL: "http://localhost:11434/v1",
			Model:   "llama3.2",
			Timeout: 120 * time.Second,
		},
		ProviderCustomOpenAI: {
			ID:      ProviderCustomOpenAI,
			Name:    "Custom OpenAI",
			Timeout: 60 * time.Second,
		},
	}
}

// ProviderIDs returns the known provider IDs in display order.
func ProviderIDs() []string {
	return []string{ProviderMicrosoft, ProviderGoogle, ProviderGroq, ProviderOllama, ProviderCustomOpenAI}
}

// Resolve fills empty fields of p from the default definition of p.ID.
func Resolve(p Provider) (Provider, error) {
	def, ok := DefaultProviders()[p.ID]
	if !ok {
		return p, fmt.Errorf("unknown provider %q", p.ID)
	}
	if p.Name == "" {
		p.Name = def.Name
	}
	if p.BaseURL == "" {
		p.BaseURL = def.BaseURL
	}
	if p.Model == "" {
		p.Model = def.Model
	}
	if p.Timeout == 0 {
		p.Timeout = def.Timeout
	}
	return p, nil
}

// Options tunes request batching and retries.
type Options struct {
	// ChunkSize is how many values go into one API call (0 = provider default).
	ChunkSize int
	// MaxConcurrent bounds parallel requests for AI providers (default 3).
	MaxConcurrent int
	// MaxRetries is the number of retries on transient failures (default 3).
	MaxRetries int
	// SystemPrompt overrides the AI system prompt.
	SystemPrompt string
}

func (o Options) effectiveChunkSize(def int) int {
	if o.ChunkSize > 0 {
		return o.ChunkSize
	}
	return def
}

func (o Options) effectiveMaxConcurrent() int {
	if o.MaxConcurrent > 0 {
		return o.MaxConcurrent
	}
	return 3
}

func (o Options) effectiveMaxRetries() int {
	if o.MaxRetries > 0 {
		return o.MaxRetries
	}
	return 3
}

// New returns the Translator for prov. Empty provider fields are filled
// from DefaultProviders.
func New(prov Provider, opts Options) (Translator, error) {
	prov, err := Resolve(prov)
	if err != nil {
		return nil, err
	}

	switch prov.ID {
	case ProviderMicrosoft:
		if prov.APIKey == "" {
			return nil, fmt.Errorf("%s requires an API key", prov.Name)
		}
		return NewMicrosoft(prov, opts), nil
	case ProviderGoogle:
		if prov.APIKey == "" {
			return nil, fmt.Errorf("%s requires an API key", prov.Name)
		}
		return NewChat(prov, opts, formatGeminiNative), nil
	case ProviderGroq:
		if prov.APIKey == "" {
			return nil, fmt.Errorf("%s requires an API key", prov.Name)
		}
		return NewChat(prov, opts, formatOpenAIChat), nil
	case ProviderCustomOpenAI:
		if prov.BaseURL == "" {
			return nil, fmt.Errorf("%s requires a base URL", prov.Name)
		}
		if prov.Model == "" {
			return nil, fmt.Errorf("%s requires a model", prov.Name)
		}
		return NewChat(prov, opts, formatOpenAIChat), nil
	default: // ProviderOllama
		return NewChat(prov, opts, formatOpenAIChat), nil
	}
}
