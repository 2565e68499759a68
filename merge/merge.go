// Package merge reinjects translated values into the raw markup of an
// original file.
//
// Values are located by content, not position: a text value is matched only
// between a closing '>' and an opening '<', an attribute value only between
// double quotes. Longer translations are applied first so that a short
// value cannot clobber a longer one that contains it.
//
// Matching compares decoded values, so a value written with character
// references (&gt;, &apos;, &#8230;) or inside a CDATA section is found
// whatever its spelling in the file.
package merge

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/minios-linux/loxml/translate"
)

// ErrUnmatched is returned by MergeStrict when a record's source value
// occurs nowhere in the content.
var ErrUnmatched = errors.New("value not found in document")

const (
	cdataOpen  = "<![CDATA["
	cdataClose = "]]>"
)

// Merge applies records to content and returns the result. The input is not
// modified; with no records the content is returned unchanged.
func Merge(content string, records []translate.Record) string {
	out, _ := apply(content, records)
	return out
}

// MergeStrict is Merge, but fails with ErrUnmatched when the source of a
// record was not substituted anywhere.
func MergeStrict(content string, records []translate.Record) (string, error) {
	out, missing := apply(content, records)
	if len(missing) > 0 {
		quoted := make([]string, len(missing))
		for i, m := range missing {
			quoted[i] = fmt.Sprintf("%q", m)
		}
		return "", fmt.Errorf("%w: %s", ErrUnmatched, strings.Join(quoted, ", "))
	}
	return out, nil
}

// apply runs the substitution and returns the sources that matched nothing,
// in record order. A source counts as matched when any record carrying it
// was substituted.
func apply(content string, records []translate.Record) (string, []string) {
	d := decoder{}
	matched := make(map[string]bool)

	for _, r := range Order(records) {
		if r.Source == "" {
			continue
		}
		var nt, na int
		content, nt = replaceText(content, r, d)
		content, na = replaceAttr(content, r, d)
		if nt+na > 0 {
			matched[r.Source] = true
		}
	}

	var missing []string
	for _, r := range records {
		if r.Source == "" || matched[r.Source] {
			continue
		}
		matched[r.Source] = true
		missing = append(missing, r.Source)
	}
	return content, missing
}

// Order returns a copy of records sorted by descending rune length of the
// translated value. Records of equal length keep their relative order.
func Order(records []translate.Record) []translate.Record {
	ordered := slices.Clone(records)
	slices.SortStableFunc(ordered, func(a, b translate.Record) int {
		return utf8.RuneCountInString(b.Translated) - utf8.RuneCountInString(a.Translated)
	})
	return ordered
}

// replaceText replaces every '>'...'<' run whose decoded value is r.Source.
func replaceText(content string, r translate.Record, d decoder) (string, int) {
	var (
		b    strings.Builder
		last int
		n    int
	)
	for i := 0; i < len(content); i++ {
		if content[i] != '>' {
			continue
		}
		end, ok := textRunEnd(content, i+1)
		if !ok {
			break
		}
		raw := content[i+1 : end]
		if d.text(raw) != r.Source {
			// Markup inside CDATA is not a run boundary.
			if strings.Contains(raw, cdataOpen) {
				i = end - 1
			}
			continue
		}
		b.WriteString(content[last : i+1])
		b.WriteString(textSpelling(raw, r.Translated))
		last = end
		n++
		i = end - 1
	}
	if n == 0 {
		return content, 0
	}
	b.WriteString(content[last:])
	return b.String(), n
}

// replaceAttr replaces every '"'...'"' run whose decoded value is r.Source.
func replaceAttr(content string, r translate.Record, d decoder) (string, int) {
	var (
		b    strings.Builder
		last int
		n    int
	)
	for i := 0; i < len(content); i++ {
		if content[i] != '"' {
			continue
		}
		j := strings.IndexByte(content[i+1:], '"')
		if j < 0 {
			break
		}
		end := i + 1 + j
		raw := content[i+1 : end]
		if strings.IndexByte(raw, '<') >= 0 || d.attr(raw) != r.Source {
			continue
		}
		b.WriteString(content[last : i+1])
		b.WriteString(attrEscaper.Replace(r.Translated))
		last = end
		n++
		i = end
	}
	if n == 0 {
		return content, 0
	}
	b.WriteString(content[last:])
	return b.String(), n
}

// textRunEnd returns the index of the '<' that ends the character data
// starting at i. CDATA sections belong to the run.
func textRunEnd(s string, i int) (int, bool) {
	for i < len(s) {
		if strings.HasPrefix(s[i:], cdataOpen) {
			end := strings.Index(s[i+len(cdataOpen):], cdataClose)
			if end < 0 {
				return 0, false
			}
			i += len(cdataOpen) + end + len(cdataClose)
			continue
		}
		if s[i] == '<' {
			return i, true
		}
		i++
	}
	return 0, false
}

// textSpelling writes translated the way raw was written: a run that is a
// single CDATA section stays one, anything else is escaped.
func textSpelling(raw, translated string) string {
	if strings.HasPrefix(raw, cdataOpen) && strings.HasSuffix(raw, cdataClose) &&
		strings.Count(raw, cdataOpen) == 1 && !strings.Contains(translated, cdataClose) {
		return cdataOpen + translated + cdataClose
	}
	return textEscaper.Replace(translated)
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", "]]>", "]]&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", `"`, "&quot;")
)

// decoder decodes raw runs, remembering what it has seen. Runs that cannot
// be decoded map to a value no record carries.
type decoder map[string]string

const undecodable = "\x00"

func (d decoder) text(raw string) string {
	if !strings.ContainsAny(raw, "&\r") && !strings.Contains(raw, cdataOpen) {
		return raw
	}
	if v, ok := d["t"+raw]; ok {
		return v
	}
	v := undecodable
	dec := xml.NewDecoder(strings.NewReader("<v>" + raw + "</v>"))
	var b strings.Builder
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			v = b.String()
			break
		}
		if err != nil {
			break
		}
		if cd, ok := tok.(xml.CharData); ok {
			b.Write(cd)
		}
	}
	d["t"+raw] = v
	return v
}

func (d decoder) attr(raw string) string {
	if !strings.ContainsAny(raw, "&\r") {
		return raw
	}
	if v, ok := d["a"+raw]; ok {
		return v
	}
	v := undecodable
	dec := xml.NewDecoder(strings.NewReader(`<v a="` + raw + `"/>`))
	if tok, err := dec.Token(); err == nil {
		if se, ok := tok.(xml.StartElement); ok && len(se.Attr) == 1 {
			v = se.Attr[0].Value
		}
	}
	d["a"+raw] = v
	return v
}
