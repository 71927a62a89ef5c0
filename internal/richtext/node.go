package richtext

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidDocument = errors.New("invalid rich text document")

const (
	formatBold   = 1
	formatItalic = 1 << 1
	formatCode   = 1 << 4
)

type Node struct {
	Type       string          `json:"type"`
	Children   []Node          `json:"children,omitempty"`
	Text       string          `json:"text,omitempty"`
	Format     json.RawMessage `json:"format,omitempty"`
	Indent     int             `json:"indent,omitempty"`
	Tag        string          `json:"tag,omitempty"`
	ListType   string          `json:"listType,omitempty"`
	Checked    *bool           `json:"checked,omitempty"`
	URL        string          `json:"url,omitempty"`
	Fields     *LinkFields     `json:"fields,omitempty"`
	RelationTo string          `json:"relationTo,omitempty"`
	Value      json.RawMessage `json:"value,omitempty"`
}

type LinkFields struct {
	URL      string `json:"url"`
	NewTab   bool   `json:"newTab"`
	LinkType string `json:"linkType"`
}

type Document struct {
	Root Node `json:"root"`
}

// Parse accepts the stored field value: raw JSON bytes, a JSON string or an
// already decoded map.
func Parse(value any) (Document, error) {
	var raw []byte
	switch v := value.(type) {
	case nil:
		return Document{}, fmt.Errorf("%w: empty value", ErrInvalidDocument)
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		raw = encoded
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if doc.Root.Type != "root" {
		return Document{}, fmt.Errorf("%w: missing root node", ErrInvalidDocument)
	}
	return doc, nil
}

// textFormat reads the numeric bitmask used on text nodes.
func (n Node) textFormat() int {
	var f int
	if len(n.Format) == 0 || json.Unmarshal(n.Format, &f) != nil {
		return 0
	}
	return f
}

// alignment reads the string form used on element nodes.
func (n Node) alignment() string {
	var s string
	if len(n.Format) == 0 || json.Unmarshal(n.Format, &s) != nil {
		return ""
	}
	switch s {
	case "left", "center", "right", "justify", "start", "end":
		return s
	}
	return ""
}

func (n Node) linkURL() (string, bool) {
	if n.Fields != nil {
		return n.Fields.URL, n.Fields.NewTab
	}
	return n.URL, false
}

// valueID accepts either a bare id or a populated document carrying an id.
func (n Node) valueID() string {
	if len(n.Value) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(n.Value, &id); err == nil {
		return id
	}
	var populated struct {
		ID any `json:"id"`
	}
	if err := json.Unmarshal(n.Value, &populated); err == nil && populated.ID != nil {
		return fmt.Sprint(populated.ID)
	}
	return ""
}
