package document

import (
	"fmt"
	"strings"

	"github.com/jvillegas/metasweep/core"
	"github.com/jvillegas/metasweep/core/xmlprop"
)

// ooxmlCoreUpdates blanks the identifying core.xml properties. Creator and
// modifier names are emptied, revision resets to 1; the elements stay in
// place as empty markers rather than being removed.
var ooxmlCoreUpdates = []xmlprop.FieldUpdate{
	{Spec: xmlprop.FieldSpec{Local: "creator", Namespace: nsDC, Prefix: "dc"}, Value: ""},
	{Spec: xmlprop.FieldSpec{Local: "lastModifiedBy", Namespace: nsCP, Prefix: "cp"}, Value: ""},
	{Spec: xmlprop.FieldSpec{Local: "revision", Namespace: nsCP, Prefix: "cp"}, Value: "1"},
	{Spec: xmlprop.FieldSpec{Local: "title", Namespace: nsDC, Prefix: "dc"}, Value: ""},
	{Spec: xmlprop.FieldSpec{Local: "subject", Namespace: nsDC, Prefix: "dc"}, Value: ""},
	{Spec: xmlprop.FieldSpec{Local: "keywords", Namespace: nsCP, Prefix: "cp"}, Value: ""},
	{Spec: xmlprop.FieldSpec{Local: "description", Namespace: nsDC, Prefix: "dc"}, Value: ""},
	{Spec: xmlprop.FieldSpec{Local: "category", Namespace: nsCP, Prefix: "cp"}, Value: ""},
	{Spec: xmlprop.FieldSpec{Local: "created", Namespace: nsDCTerms, Prefix: "dcterms"}, Value: ""},
	{Spec: xmlprop.FieldSpec{Local: "modified", Namespace: nsDCTerms, Prefix: "dcterms"}, Value: ""},
}

// ooxmlAppUpdates blanks the organizational app.xml properties.
var ooxmlAppUpdates = []xmlprop.FieldUpdate{
	{Spec: xmlprop.FieldSpec{Local: "Company", Namespace: nsExtProp}, Value: ""},
	{Spec: xmlprop.FieldSpec{Local: "Manager", Namespace: nsExtProp}, Value: ""},
	{Spec: xmlprop.FieldSpec{Local: "TotalTime", Namespace: nsExtProp}, Value: "0"},
	{Spec: xmlprop.FieldSpec{Local: "Pages", Namespace: nsExtProp}, Value: "0"},
}

// odfMetaUpdates blanks the identifying meta.xml properties.
var odfMetaUpdates = []xmlprop.FieldUpdate{
	{Spec: xmlprop.FieldSpec{Local: "initial-creator", Namespace: nsODFMeta, Prefix: "meta"}, Value: ""},
	{Spec: xmlprop.FieldSpec{Local: "creator", Namespace: nsDC, Prefix: "dc"}, Value: ""},
	{Spec: xmlprop.FieldSpec{Local: "generator", Namespace: nsODFMeta, Prefix: "meta"}, Value: ""},
	{Spec: xmlprop.FieldSpec{Local: "editing-cycles", Namespace: nsODFMeta, Prefix: "meta"}, Value: "1"},
	{Spec: xmlprop.FieldSpec{Local: "editing-duration", Namespace: nsODFMeta, Prefix: "meta"}, Value: ""},
	{Spec: xmlprop.FieldSpec{Local: "creation-date", Namespace: nsODFMeta, Prefix: "meta"}, Value: ""},
	{Spec: xmlprop.FieldSpec{Local: "date", Namespace: nsDC, Prefix: "dc"}, Value: ""},
}

// ooxmlEditableFields maps the logical field names the edit entry point
// accepts to their core.xml location.
var ooxmlEditableFields = map[string]xmlprop.FieldSpec{
	"title":          {Local: "title", Namespace: nsDC, Prefix: "dc"},
	"subject":        {Local: "subject", Namespace: nsDC, Prefix: "dc"},
	"author":         {Local: "creator", Namespace: nsDC, Prefix: "dc"},
	"creator":        {Local: "creator", Namespace: nsDC, Prefix: "dc"},
	"keywords":       {Local: "keywords", Namespace: nsCP, Prefix: "cp"},
	"description":    {Local: "description", Namespace: nsDC, Prefix: "dc"},
	"lastmodifiedby": {Local: "lastModifiedBy", Namespace: nsCP, Prefix: "cp"},
	"category":       {Local: "category", Namespace: nsCP, Prefix: "cp"},
	"contentstatus":  {Local: "contentStatus", Namespace: nsCP, Prefix: "cp"},
	"revision":       {Local: "revision", Namespace: nsCP, Prefix: "cp"},
}

// odfEditableFields maps logical field names to their meta.xml location.
var odfEditableFields = map[string]xmlprop.FieldSpec{
	"title":       {Local: "title", Namespace: nsDC, Prefix: "dc"},
	"subject":     {Local: "subject", Namespace: nsDC, Prefix: "dc"},
	"author":      {Local: "creator", Namespace: nsDC, Prefix: "dc"},
	"creator":     {Local: "creator", Namespace: nsDC, Prefix: "dc"},
	"description": {Local: "description", Namespace: nsDC, Prefix: "dc"},
	"generator":   {Local: "generator", Namespace: nsODFMeta, Prefix: "meta"},
}

// applyUpdatesToPart parses one XML part, runs the updates, and re-emits
// it only when something changed; an unchanged part passes through
// byte-identical, which keeps the whole sanitize pass idempotent.
func applyUpdatesToPart(data []byte, updates []xmlprop.FieldUpdate) ([]byte, bool, error) {
	tree, err := xmlprop.Parse(data)
	if err != nil || tree.Root == nil {
		// A malformed part is passed through untouched rather than failing
		// the archive rewrite.
		return data, false, nil
	}
	if !xmlprop.ApplyAll(tree.Root, updates) {
		return data, false, nil
	}
	return tree.Serialize(), true, nil
}

// applyUpdatesToODFMeta is the ODF variant: the metadata fields live under
// office:meta, one level below the document-meta root.
func applyUpdatesToODFMeta(data []byte, updates []xmlprop.FieldUpdate) ([]byte, bool, error) {
	tree, err := xmlprop.Parse(data)
	if err != nil || tree.Root == nil {
		return data, false, nil
	}
	var meta *xmlprop.Node
	for _, c := range tree.Root.Children {
		if strings.EqualFold(c.Local, "meta") {
			meta = c
			break
		}
	}
	if meta == nil {
		return data, false, nil
	}
	if !xmlprop.ApplyAll(meta, updates) {
		return data, false, nil
	}
	return tree.Serialize(), true, nil
}

// blankCustomProps empties the value of every custom property while
// keeping the property names and the part itself.
func blankCustomProps(data []byte) ([]byte, bool, error) {
	tree, err := xmlprop.Parse(data)
	if err != nil || tree.Root == nil {
		return data, false, nil
	}
	changed := false
	tree.Root.Walk(func(n *xmlprop.Node) {
		if !strings.EqualFold(n.Local, "property") {
			return
		}
		for _, c := range n.Children {
			if strings.TrimSpace(c.Text) != "" {
				c.Text = ""
				c.Children = nil
				changed = true
			}
		}
	})
	if !changed {
		return data, false, nil
	}
	return tree.Serialize(), true, nil
}

// OOXMLSanitizeTransform is the archive transform for an OOXML sanitize
// pass; parts it does not target pass through unchanged.
func OOXMLSanitizeTransform() Transform {
	return func(name string, data []byte) ([]byte, bool, error) {
		switch name {
		case partCoreProps:
			return applyUpdatesToPart(data, ooxmlCoreUpdates)
		case partAppProps:
			return applyUpdatesToPart(data, ooxmlAppUpdates)
		case partCustomProps:
			return blankCustomProps(data)
		}
		return data, false, nil
	}
}

// ODFSanitizeTransform is the archive transform for an ODF sanitize pass.
func ODFSanitizeTransform() Transform {
	return func(name string, data []byte) ([]byte, bool, error) {
		if name == partODFMeta {
			return applyUpdatesToODFMeta(data, odfMetaUpdates)
		}
		return data, false, nil
	}
}

// EditTransform builds a transform that sets one logical field. The field
// key is case-insensitive; unknown keys yield an error.
func EditTransform(format core.FormatID, fieldKey, value string) (Transform, error) {
	key := strings.ToLower(fieldKey)
	switch format {
	case core.FmtDOCX, core.FmtXLSX, core.FmtPPTX:
		spec, ok := ooxmlEditableFields[key]
		if !ok {
			return nil, fmt.Errorf("field %q is not editable", fieldKey)
		}
		update := []xmlprop.FieldUpdate{{Spec: spec, Value: value}}
		return func(name string, data []byte) ([]byte, bool, error) {
			if name == partCoreProps {
				return applyUpdatesToPart(data, update)
			}
			return data, false, nil
		}, nil
	case core.FmtODF:
		spec, ok := odfEditableFields[key]
		if !ok {
			return nil, fmt.Errorf("field %q is not editable", fieldKey)
		}
		update := []xmlprop.FieldUpdate{{Spec: spec, Value: value}}
		return func(name string, data []byte) ([]byte, bool, error) {
			if name == partODFMeta {
				return applyUpdatesToODFMeta(data, update)
			}
			return data, false, nil
		}, nil
	}
	return nil, core.ErrUnsupportedFormat
}

// VerifySanitized re-reads the rewritten archive and asserts every
// targeted field holds its sanitized value. Missing parts count as clean.
func VerifySanitized(path string, format core.FormatID) error {
	switch format {
	case core.FmtDOCX, core.FmtXLSX, core.FmtPPTX:
		parts, err := ReadArchiveParts(path, partCoreProps, partAppProps)
		if err != nil {
			return err
		}
		if data, ok := parts[partCoreProps]; ok {
			if err := verifyUpdates(data, ooxmlCoreUpdates); err != nil {
				return err
			}
		}
		if data, ok := parts[partAppProps]; ok {
			if err := verifyUpdates(data, ooxmlAppUpdates); err != nil {
				return err
			}
		}
		return nil
	case core.FmtODF:
		parts, err := ReadArchiveParts(path, partODFMeta)
		if err != nil {
			return err
		}
		if data, ok := parts[partODFMeta]; ok {
			return verifyUpdates(data, odfMetaUpdates)
		}
		return nil
	}
	return core.ErrUnsupportedFormat
}

// VerifyEdited asserts one logical field equals its expected value after a
// rewrite.
func VerifyEdited(path string, format core.FormatID, fieldKey, value string) error {
	key := strings.ToLower(fieldKey)
	var part string
	var spec xmlprop.FieldSpec
	switch format {
	case core.FmtDOCX, core.FmtXLSX, core.FmtPPTX:
		s, ok := ooxmlEditableFields[key]
		if !ok {
			return fmt.Errorf("field %q is not editable", fieldKey)
		}
		part, spec = partCoreProps, s
	case core.FmtODF:
		s, ok := odfEditableFields[key]
		if !ok {
			return fmt.Errorf("field %q is not editable", fieldKey)
		}
		part, spec = partODFMeta, s
	default:
		return core.ErrUnsupportedFormat
	}
	parts, err := ReadArchiveParts(path, part)
	if err != nil {
		return err
	}
	data, ok := parts[part]
	if !ok {
		return fmt.Errorf("%w: part %s missing", core.ErrVerifyFailed, part)
	}
	return verifyUpdates(data, []xmlprop.FieldUpdate{{Spec: spec, Value: value}})
}

func verifyUpdates(data []byte, updates []xmlprop.FieldUpdate) error {
	tree, err := xmlprop.Parse(data)
	if err != nil || tree.Root == nil {
		return fmt.Errorf("%w: part not well-formed", core.ErrVerifyFailed)
	}
	for _, u := range updates {
		got := xmlprop.ResolveNS(tree.Root, u.Spec.Local, u.Spec.Namespace)
		if got != u.Value {
			return fmt.Errorf("%w: field %s is %q, want %q",
				core.ErrVerifyFailed, u.Spec.Local, got, u.Value)
		}
	}
	return nil
}
