package xdm

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
)

// Parse reads an XML document. Whitespace-only text is dropped; comments,
// processing instructions and directives are ignored.
func Parse(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)
	doc := &Document{Root: &Node{Kind: DocumentNode}}
	cur := doc.Root
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "parse xml")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &Node{Kind: ElementNode, Name: t.Name.Local, Parent: cur}
			attrs := make(map[string]string, len(t.Attr))
			for _, a := range t.Attr {
				attrs[a.Name.Local] = a.Value
			}
			for _, name := range sortedKeys(attrs) {
				el.Attrs = append(el.Attrs, &Node{Kind: AttributeNode, Name: name, Value: attrs[name], Parent: el})
			}
			cur.Children = append(cur.Children, el)
			cur = el
		case xml.EndElement:
			cur = cur.Parent
		case xml.CharData:
			if strings.TrimSpace(string(t)) == "" {
				continue
			}
			cur.Children = append(cur.Children, &Node{Kind: TextNode, Value: string(t), Parent: cur})
		}
	}
	if cur != doc.Root {
		return nil, errors.Newf("parse xml: unclosed element %q", cur.Name)
	}
	doc.number()
	return doc, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}
