// Package markup implements a streaming structural parser for XML resource
// files. It walks the document once and emits one Node per tag occurrence,
// in start-tag order, carrying the tag's attributes and its direct text.
//
// A top-level <xml ...> element is treated as a synthetic wrapper that only
// carries document metadata (version, encoding) and produces no node:
//
//	<xml version="2.0" encoding="UTF-8">
//	    <tag0 arg1="hello">hello world</tag0>
//	</xml>
//
// yields a single node {tag0, [arg1=hello], "hello world"}.
package markup

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// WrapperTag is the name of the synthetic top-level element that is skipped.
const WrapperTag = "xml"

var (
	// ErrMalformedDocument is returned when the markup cannot be tokenized
	// or its elements are not properly nested.
	ErrMalformedDocument = errors.New("malformed document")
	// ErrNotAFile is returned when a file-only operation receives a directory.
	ErrNotAFile = errors.New("not a file")
)

// ---------------------------------------------------------------------------
// Data model
// ---------------------------------------------------------------------------

// Attr is a single attribute as written in the document.
type Attr struct {
	Name  string
	Value string
}

// Attributes holds a tag's attributes in document order.
type Attributes []Attr

// Get returns the value of the named attribute.
func (a Attributes) Get(name string) (string, bool) {
	for _, attr := range a {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return "", false
}

// Values returns the attribute values in document order.
func (a Attributes) Values() []string {
	values := make([]string, 0, len(a))
	for _, attr := range a {
		values = append(values, attr.Value)
	}
	return values
}

// Node is one parsed tag occurrence.
type Node struct {
	// Tag is the qualified tag name ("string", "xliff:g").
	Tag string
	// Attrs are the tag's attributes in document order (may be empty).
	Attrs Attributes
	// Text is the tag's direct text content. Whitespace-only content and
	// tags that enclose only child elements have empty text.
	Text string
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

// ParseFile parses the markup file at path.
func ParseFile(path string) ([]Node, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotAFile)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	defer f.Close()

	log.Debug().Str("path", path).Msg("Started parsing file")
	nodes, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	log.Debug().Str("path", path).Int("nodes", len(nodes)).Msg("File parsed")
	return nodes, nil
}

// frame is an open element on the walk's stack. index is the position of
// the element's node, or -1 for the skipped wrapper.
type frame struct {
	tag   string
	index int
	text  string
	run   string // character data since the last markup token
	done  bool
}

// endRun closes the current run of character data. The first run that is
// not whitespace-only becomes the frame's text.
func (f *frame) endRun() {
	if !f.done && strings.TrimSpace(f.run) != "" {
		f.text = f.run
		f.done = true
	}
	f.run = ""
}

func endTopRun(stack []*frame) {
	if len(stack) > 0 {
		stack[len(stack)-1].endRun()
	}
}

// Parse walks the document read from r and returns its nodes in document
// order.
func Parse(r io.Reader) ([]Node, error) {
	dec := xml.NewDecoder(r)

	var (
		nodes []Node
		stack []*frame
	)

	for {
		// RawToken keeps namespace prefixes as written; nesting is checked
		// against the stack below.
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			endTopRun(stack)
			name := qualifiedName(t.Name)
			if len(stack) == 0 && name == WrapperTag {
				stack = append(stack, &frame{tag: name, index: -1})
				continue
			}
			nodes = append(nodes, Node{
				Tag:   name,
				Attrs: parseAttrs(t.Attr),
			})
			stack = append(stack, &frame{tag: name, index: len(nodes) - 1})

		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			// Text and CDATA sections with no markup between them form one run.
			if top := stack[len(stack)-1]; top.index >= 0 && !top.done {
				top.run += string(t)
			}

		case xml.Comment, xml.ProcInst, xml.Directive:
			endTopRun(stack)

		case xml.EndElement:
			name := qualifiedName(t.Name)
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: unexpected </%s>", ErrMalformedDocument, name)
			}
			top := stack[len(stack)-1]
			if top.tag != name {
				return nil, fmt.Errorf("%w: element <%s> closed by </%s>", ErrMalformedDocument, top.tag, name)
			}
			top.endRun()
			stack = stack[:len(stack)-1]
			if top.index >= 0 {
				nodes[top.index].Text = top.text
			}
		}
	}

	if len(stack) > 0 {
		return nil, fmt.Errorf("%w: unclosed <%s>", ErrMalformedDocument, stack[len(stack)-1].tag)
	}
	return nodes, nil
}

func qualifiedName(n xml.Name) string {
	if n.Space != "" {
		return n.Space + ":" + n.Local
	}
	return n.Local
}

func parseAttrs(attrs []xml.Attr) Attributes {
	result := make(Attributes, 0, len(attrs))
	for _, a := range attrs {
		result = append(result, Attr{Name: qualifiedName(a.Name), Value: a.Value})
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction
// ---------------------------------------------------------------------------

// Texts returns the non-empty text values of nodes in document order.
func Texts(nodes []Node) []string {
	var values []string
	for _, n := range nodes {
		if n.Text != "" {
			values = append(values, n.Text)
		}
	}
	return values
}

// AttributeValues returns the non-empty attribute values of nodes in
// document order. Attributes for which exclude returns true are skipped;
// exclude may be nil.
func AttributeValues(nodes []Node, exclude func(name string) bool) []string {
	var values []string
	for _, n := range nodes {
		for _, a := range n.Attrs {
			if a.Value == "" {
				continue
			}
			if exclude != nil && exclude(a.Name) {
				continue
			}
			values = append(values, a.Value)
		}
	}
	return values
}

// IsNamespaceDecl reports whether name is an xmlns declaration.
func IsNamespaceDecl(name string) bool {
	return name == "xmlns" || strings.HasPrefix(name, "xmlns:")
}
