package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/minios-linux/loxml/worker"
)

// microsoftMaxElements is the largest array the v3 translate endpoint
// accepts in one call.
const microsoftMaxElements = 100

// Microsoft talks to the Microsoft Translator Text API v3.
//
//	GET  /languages?api-version=3.0&scope=translation
//	POST /translate?api-version=3.0&from=en&to=ru&to=de   [{"Text":"..."}]
type Microsoft struct {
	prov      Provider
	chunkSize int
	api       *caller
}

// NewMicrosoft creates a Microsoft Translator client.
func NewMicrosoft(prov Provider, opts Options) *Microsoft {
	return &Microsoft{
		prov:      prov,
		chunkSize: min(opts.effectiveChunkSize(microsoftMaxElements), microsoftMaxElements),
		api:       newCaller(prov, opts.effectiveMaxRetries()),
	}
}

func (m *Microsoft) headers() map[string]string {
	h := map[string]string{
		"Content-Type": "application/json",
	}
	if m.prov.APIKey != "" {
		h["Ocp-Apim-Subscription-Key"] = m.prov.APIKey
	}
	if m.prov.Region != "" {
		h["Ocp-Apim-Subscription-Region"] = m.prov.Region
	}
	return h
}

// Languages returns the codes of the "translation" scope, sorted.
func (m *Microsoft) Languages(ctx context.Context) ([]string, error) {
	endpoint := strings.TrimRight(m.prov.BaseURL, "/") + "/languages?" + url.Values{
		"api-version": {"3.0"},
		"scope":       {"translation"},
	}.Encode()

	body, err := m.api.send(ctx, http.MethodGet, endpoint, m.headers(), nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Translation map[string]json.RawMessage `json:"translation"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: invalid languages response: %v", ErrProviderRejected, err)
	}

	langs := make([]string, 0, len(resp.Translation))
	for code := range resp.Translation {
		langs = append(langs, code)
	}
	sort.Strings(langs)
	return langs, nil
}

type microsoftText struct {
	Text string `json:"Text"`
}

type microsoftItem struct {
	Translations []struct {
		Text string `json:"text"`
		To   string `json:"to"`
	} `json:"translations"`
}

// Translate sends req.Values() in chunks; every chunk is translated into all
// target languages by a single call.
func (m *Microsoft) Translate(ctx context.Context, req Request) (Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	result := newResult(req.To)
	values := req.Values()
	if len(values) == 0 {
		return result, nil
	}

	query := url.Values{
		"api-version": {"3.0"},
		"from":        {req.From},
		"to":          req.To,
	}
	endpoint := strings.TrimRight(m.prov.BaseURL, "/") + "/translate?" + query.Encode()

	log.Debug().Str("provider", m.prov.Name).Int("values", len(values)).Strs("to", req.To).Msg("Requesting translations")

	for _, chunk := range worker.Batch(values, m.chunkSize) {
		payload := make([]microsoftText, len(chunk))
		for i, v := range chunk {
			payload[i] = microsoftText{Text: v}
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}

		respBody, err := m.api.send(ctx, http.MethodPost, endpoint, m.headers(), body)
		if err != nil {
			return nil, err
		}

		var items []microsoftItem
		if err := json.Unmarshal(respBody, &items); err != nil {
			return nil, fmt.Errorf("%w: invalid translate response: %v", ErrProviderRejected, err)
		}
		if len(items) != len(chunk) {
			return nil, fmt.Errorf("%w: got %d translations, expected %d", ErrProviderRejected, len(items), len(chunk))
		}

		for i, item := range items {
			for _, tr := range item.Translations {
				lang, ok := matchLanguage(req.To, tr.To)
				if !ok {
					return nil, fmt.Errorf("%w: translation into unrequested language %q", ErrProviderRejected, tr.To)
				}
				result[lang] = append(result[lang], Record{Source: chunk[i], Translated: tr.Text})
			}
		}
	}

	// Every requested language must come back with one record per value.
	for _, lang := range req.To {
		if n := len(result[lang]); n != len(values) {
			return nil, fmt.Errorf("%w: got %d translations into %s, expected %d", ErrProviderRejected, n, lang, len(values))
		}
	}

	log.Debug().Str("provider", m.prov.Name).Msg("Translations received")
	return result, nil
}

// matchLanguage maps the code echoed by the service back to the requested
// spelling ("zh-hans" → "zh-Hans"). It reports false when got names no
// requested language.
func matchLanguage(requested []string, got string) (string, bool) {
	for _, lang := range requested {
		if strings.EqualFold(lang, got) {
			return lang, true
		}
	}
	return got, false
}
