package xmlprop

import "strings"

// FieldSpec identifies where a logical field lives in an XML tree,
// independent of what value it holds. It is shared by the read path
// (ResolveNS) and the sanitizer (Apply).
type FieldSpec struct {
	Local     string
	Namespace string // optional; empty matches any namespace
	Prefix    string // prefix used when the element has to be created
}

// Apply sets the first direct child of root matching spec to value.
// When the child exists and already holds value, nothing changes and the
// call reports false, which makes repeated sanitize passes idempotent.
// When the child is absent it is created with the spec's prefix and
// namespace and appended, even for an empty value: a blanked field stays
// present as an empty element rather than disappearing.
func Apply(root *Node, spec FieldSpec, value string) bool {
	for _, c := range root.Children {
		if !strings.EqualFold(c.Local, spec.Local) {
			continue
		}
		if spec.Namespace != "" && c.Space != spec.Namespace {
			continue
		}
		if strings.TrimSpace(c.Text) == value {
			return false
		}
		c.Text = value
		c.Children = nil
		return true
	}
	root.Children = append(root.Children, &Node{
		Local:  spec.Local,
		Space:  spec.Namespace,
		Prefix: spec.Prefix,
		Text:   value,
	})
	return true
}

// FieldUpdate pairs a spec with its replacement value for batch passes.
type FieldUpdate struct {
	Spec  FieldSpec
	Value string
}

// ApplyAll runs a batch of updates against root and reports whether any
// field changed.
func ApplyAll(root *Node, updates []FieldUpdate) bool {
	changed := false
	for _, u := range updates {
		if Apply(root, u.Spec, u.Value) {
			changed = true
		}
	}
	return changed
}
