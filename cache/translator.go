package cache

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/minios-linux/loxml/translate"
)

// Translator serves translations from a Store and forwards misses to the
// wrapped translator.
type Translator struct {
	store *Store
	inner translate.Translator
}

// Wrap returns inner backed by store.
func Wrap(store *Store, inner translate.Translator) *Translator {
	return &Translator{store: store, inner: inner}
}

// Languages delegates to the wrapped translator.
func (t *Translator) Languages(ctx context.Context) ([]string, error) {
	return t.inner.Languages(ctx)
}

// Translate implements translate.Translator. Values missing from the store
// for any target language are sent in one request, deduplicated; the answer
// is stored and records are rebuilt in request value order.
func (t *Translator) Translate(ctx context.Context, req translate.Request) (translate.Result, error) {
	if req.From == "" || len(req.To) == 0 {
		return t.inner.Translate(ctx, req)
	}

	values := req.Values()
	known := make(map[string]map[string]string, len(req.To)) // lang -> source -> translated
	var (
		missing     []string
		missingSeen = make(map[string]bool)
		missLangs   []string
	)

	for _, lang := range req.To {
		known[lang] = make(map[string]string)
		langMissed := false
		for _, v := range values {
			if _, ok := known[lang][v]; ok {
				continue
			}
			translated, ok, err := t.store.Get(ctx, req.From, lang, v)
			if err != nil {
				return nil, err
			}
			if ok {
				known[lang][v] = translated
				continue
			}
			langMissed = true
			if !missingSeen[v] {
				missingSeen[v] = true
				missing = append(missing, v)
			}
		}
		if langMissed {
			missLangs = append(missLangs, lang)
		}
	}

	log.Debug().Int("values", len(values)).Int("misses", len(missing)).Strs("langs", missLangs).Msg("Translation cache lookup")

	if len(missing) > 0 {
		fresh, err := t.inner.Translate(ctx, translate.Request{
			From:  req.From,
			To:    missLangs,
			Texts: missing,
		})
		if err != nil {
			return nil, err
		}
		for _, lang := range missLangs {
			var toStore []translate.Record
			for _, r := range fresh[lang] {
				if _, ok := known[lang][r.Source]; ok {
					continue
				}
				known[lang][r.Source] = r.Translated
				toStore = append(toStore, r)
			}
			if err := t.store.SetBatch(ctx, req.From, lang, toStore); err != nil {
				return nil, err
			}
		}
	}

	result := make(translate.Result, len(req.To))
	for _, lang := range req.To {
		records := make([]translate.Record, 0, len(values))
		for _, v := range values {
			translated, ok := known[lang][v]
			if !ok {
				return nil, fmt.Errorf("%w: no translation of %q into %s", translate.ErrProviderRejected, v, lang)
			}
			records = append(records, translate.Record{Source: v, Translated: translated})
		}
		result[lang] = records
	}
	return result, nil
}
