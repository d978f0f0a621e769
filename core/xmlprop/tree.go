// Package xmlprop implements qualified-name property lookup and targeted
// field updates over a parsed XML tree. It backs the XMP reader and the
// OOXML/ODF metadata extractors and sanitizer.
package xmlprop

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Attr is one attribute with its namespace resolved.
type Attr struct {
	Local  string
	Space  string // namespace URI, empty when unqualified
	Prefix string // prefix as written in the document
	Value  string
}

// Node is one element of a parsed XML tree. Text collects the element's
// own character data; namespace declarations are kept separately so the
// serializer can re-emit them where they were declared.
type Node struct {
	Local    string
	Space    string // namespace URI
	Prefix   string // prefix as written in the document
	Attrs    []Attr
	Children []*Node
	Text     string

	nsDecls []nsDecl
}

type nsDecl struct {
	prefix string // empty for the default namespace
	uri    string
}

// Tree is a parsed document: the root element plus the XML declaration.
type Tree struct {
	Root *Node
	decl string
}

type nsScope struct {
	parent *nsScope
	byURI  map[string]string
}

func (s *nsScope) prefixFor(uri string) string {
	for sc := s; sc != nil; sc = sc.parent {
		if p, ok := sc.byURI[uri]; ok {
			return p
		}
	}
	return ""
}

// Parse builds a Tree from raw XML bytes. Character data is concatenated
// per element; comments and processing instructions inside the body are
// dropped.
func Parse(data []byte) (*Tree, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	tree := &Tree{}
	var stack []*Node
	scope := &nsScope{byURI: map[string]string{}}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xmlprop: parse: %w", err)
		}
		switch t := tok.(type) {
		case xml.ProcInst:
			if t.Target == "xml" && tree.Root == nil {
				tree.decl = "<?xml " + string(t.Inst) + "?>\n"
			}
		case xml.StartElement:
			scope = &nsScope{parent: scope, byURI: map[string]string{}}
			n := &Node{Local: t.Name.Local, Space: t.Name.Space}
			for _, a := range t.Attr {
				switch {
				case a.Name.Space == "xmlns":
					n.nsDecls = append(n.nsDecls, nsDecl{prefix: a.Name.Local, uri: a.Value})
					scope.byURI[a.Value] = a.Name.Local
				case a.Name.Space == "" && a.Name.Local == "xmlns":
					n.nsDecls = append(n.nsDecls, nsDecl{uri: a.Value})
				default:
					n.Attrs = append(n.Attrs, Attr{
						Local:  a.Name.Local,
						Space:  a.Name.Space,
						Prefix: scope.prefixFor(a.Name.Space),
						Value:  a.Value,
					})
				}
			}
			n.Prefix = scope.prefixFor(t.Name.Space)
			if len(stack) == 0 {
				if tree.Root != nil {
					return nil, fmt.Errorf("xmlprop: multiple root elements")
				}
				tree.Root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			scope = scope.parent
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}
	if tree.Root == nil {
		return nil, fmt.Errorf("xmlprop: no root element")
	}
	return tree, nil
}

// Walk visits every node of the subtree in document order.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// qualified returns prefix:local, or local when unprefixed.
func (n *Node) qualified() string {
	if n.Prefix == "" {
		return n.Local
	}
	return n.Prefix + ":" + n.Local
}

// Serialize re-emits the tree deterministically. Running the serializer
// twice over the same tree yields identical bytes, which is what makes the
// sanitize pass idempotent at the archive level.
func (t *Tree) Serialize() []byte {
	var buf bytes.Buffer
	if t.decl != "" {
		buf.WriteString(t.decl)
	} else {
		buf.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	}
	writeNode(&buf, t.Root)
	return buf.Bytes()
}

func writeNode(buf *bytes.Buffer, n *Node) {
	buf.WriteByte('<')
	buf.WriteString(n.qualified())
	for _, d := range n.nsDecls {
		if d.prefix == "" {
			fmt.Fprintf(buf, ` xmlns="%s"`, escapeAttr(d.uri))
		} else {
			fmt.Fprintf(buf, ` xmlns:%s="%s"`, d.prefix, escapeAttr(d.uri))
		}
	}
	for _, a := range n.Attrs {
		name := a.Local
		if a.Prefix != "" {
			name = a.Prefix + ":" + a.Local
		}
		fmt.Fprintf(buf, ` %s="%s"`, name, escapeAttr(a.Value))
	}
	text := strings.TrimSpace(n.Text)
	if len(n.Children) == 0 && text == "" {
		buf.WriteString("/>")
		return
	}
	buf.WriteByte('>')
	if text != "" {
		buf.WriteString(escapeText(text))
	}
	for _, c := range n.Children {
		writeNode(buf, c)
	}
	buf.WriteString("</" + n.qualified() + ">")
}

func escapeText(s string) string {
	var b bytes.Buffer
	xml.EscapeText(&b, []byte(s))
	return b.String()
}

// escapeAttr relies on xml.EscapeText, which also escapes quotes.
func escapeAttr(s string) string {
	return escapeText(s)
}

// CountElements tallies elements by local name across the whole tree,
// used for the structural statistics of document packages.
func (n *Node) CountElements(locals ...string) map[string]int {
	wanted := make(map[string]bool, len(locals))
	for _, l := range locals {
		wanted[strings.ToLower(l)] = true
	}
	counts := map[string]int{}
	n.Walk(func(c *Node) {
		l := strings.ToLower(c.Local)
		if len(wanted) == 0 || wanted[l] {
			counts[l]++
		}
	})
	return counts
}

// SortedKeys is a helper for deterministic iteration over count maps.
func SortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
