package xmlprop

import "strings"

// maxValueLen caps any single resolved value to avoid pathological blowup
// from hostile documents.
const maxValueLen = 2048

// Resolve returns the concatenation of every attribute value and element
// text matching one of the candidate qualified keys anywhere in the tree,
// deduplicated and comma-joined. Matching is case-insensitive on the local
// name; an unqualified key matches any prefix, a qualified key ("dc:creator")
// must match the prefix exactly.
func Resolve(root *Node, keys ...string) string {
	if root == nil {
		return ""
	}
	var values []string
	seen := map[string]bool{}
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		if len(v) > maxValueLen {
			v = v[:maxValueLen]
		}
		if seen[v] {
			return
		}
		seen[v] = true
		values = append(values, v)
	}

	root.Walk(func(n *Node) {
		for _, key := range keys {
			prefix, local := splitKey(key)
			if matchName(n.Prefix, n.Local, prefix, local) {
				add(textOnly(n))
			}
			for _, a := range n.Attrs {
				if matchName(a.Prefix, a.Local, prefix, local) {
					add(a.Value)
				}
			}
		}
	})
	return strings.Join(values, ", ")
}

// ResolveNS is the namespace-exact variant used by the OOXML and ODF
// extractors: local name matches case-insensitively, the namespace URI
// must match exactly. An empty namespace matches any.
func ResolveNS(root *Node, local, namespace string) string {
	if root == nil {
		return ""
	}
	var values []string
	seen := map[string]bool{}
	root.Walk(func(n *Node) {
		if !strings.EqualFold(n.Local, local) {
			return
		}
		if namespace != "" && n.Space != namespace {
			return
		}
		v := strings.TrimSpace(textOnly(n))
		if v == "" {
			return
		}
		if len(v) > maxValueLen {
			v = v[:maxValueLen]
		}
		if !seen[v] {
			seen[v] = true
			values = append(values, v)
		}
	})
	return strings.Join(values, ", ")
}

// textOnly returns the node's own character data. For list-shaped XMP
// values (rdf:Seq/Bag/Alt) the li item texts are gathered instead.
func textOnly(n *Node) string {
	t := strings.TrimSpace(n.Text)
	if t != "" {
		return t
	}
	var items []string
	n.Walk(func(c *Node) {
		if strings.EqualFold(c.Local, "li") {
			if v := strings.TrimSpace(c.Text); v != "" {
				items = append(items, v)
			}
		}
	})
	return strings.Join(items, ", ")
}

func splitKey(key string) (prefix, local string) {
	if i := strings.Index(key, ":"); i >= 0 {
		return key[:i], key[i+1:]
	}
	return "", key
}

func matchName(havePrefix, haveLocal, wantPrefix, wantLocal string) bool {
	if !strings.EqualFold(haveLocal, wantLocal) {
		return false
	}
	if wantPrefix == "" {
		return true
	}
	return havePrefix == wantPrefix
}
