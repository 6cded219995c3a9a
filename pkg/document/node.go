// Package document turns a billing.Record into a tree of typed content nodes
// and encodes that tree as Notion block JSON.
package document

import (
	"encoding/json"
)

// Kind is the Notion block type a node encodes to.
type Kind string

const (
	KindParagraph  Kind = "paragraph"
	KindHeading    Kind = "heading_3"
	KindCallout    Kind = "callout"
	KindBulleted   Kind = "bulleted_list_item"
	KindDivider    Kind = "divider"
	KindTable      Kind = "table"
	KindTableRow   Kind = "table_row"
	KindColumnList Kind = "column_list"
	KindColumn     Kind = "column"
	KindToggle     Kind = "toggle"
	KindCode       Kind = "code"
)

// Node is one block of the content tree. Every node owns its children;
// the tree never shares a node between two parents.
type Node interface {
	Kind() Kind
	Children() []Node

	// fields returns the block body without children.
	fields() map[string]any
}

// CanDeferChildren reports whether n may be created first and receive its
// children in a later request. Column lists, columns and tables must be
// created together with their children.
func CanDeferChildren(n Node) bool {
	switch n.Kind() {
	case KindColumnList, KindColumn, KindTable:
		return false
	default:
		return true
	}
}

// Encode returns the Notion block object for n with descendants down to
// depth levels of children. depth < 0 encodes the whole subtree; depth 0
// encodes n alone.
func Encode(n Node, depth int) map[string]any {
	body := n.fields()
	if kids := n.Children(); len(kids) > 0 && depth != 0 {
		encoded := make([]map[string]any, len(kids))
		for i, k := range kids {
			encoded[i] = Encode(k, depth-1)
		}
		body["children"] = encoded
	}
	block := map[string]any{"object": "block", "type": string(n.Kind())}
	block[string(n.Kind())] = body
	return block
}

// EncodeAll encodes a list of sibling nodes with their full subtrees.
func EncodeAll(nodes []Node) []map[string]any {
	out := make([]map[string]any, len(nodes))
	for i, n := range nodes {
		out[i] = Encode(n, -1)
	}
	return out
}

// Depth returns the number of child levels below n.
func Depth(n Node) int {
	deepest := 0
	for _, k := range n.Children() {
		if d := Depth(k) + 1; d > deepest {
			deepest = d
		}
	}
	return deepest
}

// Count returns the number of nodes in n's subtree down to depth levels,
// n included. depth < 0 counts everything.
func Count(n Node, depth int) int {
	total := 1
	if depth == 0 {
		return total
	}
	for _, k := range n.Children() {
		total += Count(k, depth-1)
	}
	return total
}

// Paragraph is a plain text block.
type Paragraph struct {
	Text []Span
}

func (p *Paragraph) Kind() Kind { return KindParagraph }
func (p *Paragraph) Children() []Node { return nil }
func (p *Paragraph) fields() map[string]any {
	return map[string]any{"rich_text": encodeSpans(p.Text)}
}

// MarshalJSON encodes the paragraph as a Notion block.
func (p *Paragraph) MarshalJSON() ([]byte, error) { return json.Marshal(Encode(p, -1)) }

// Heading is a level-3 heading.
type Heading struct {
	Text []Span
}

func (h *Heading) Kind() Kind { return KindHeading }
func (h *Heading) Children() []Node { return nil }
func (h *Heading) fields() map[string]any {
	return map[string]any{"rich_text": encodeSpans(h.Text)}
}

// MarshalJSON encodes the heading as a Notion block.
func (h *Heading) MarshalJSON() ([]byte, error) { return json.Marshal(Encode(h, -1)) }

// Callout is a highlighted box with an emoji icon.
type Callout struct {
	Icon  string
	Color Color
	Text  []Span
	Items []Node
}

func (c *Callout) Kind() Kind { return KindCallout }
func (c *Callout) Children() []Node { return c.Items }
func (c *Callout) fields() map[string]any {
	f := map[string]any{"rich_text": encodeSpans(c.Text)}
	if c.Icon != "" {
		f["icon"] = map[string]any{"emoji": c.Icon}
	}
	if c.Color != "" {
		f["color"] = string(c.Color)
	}
	return f
}

// MarshalJSON encodes the callout as a Notion block.
func (c *Callout) MarshalJSON() ([]byte, error) { return json.Marshal(Encode(c, -1)) }

// BulletedItem is a bulleted list entry with optional nested blocks.
type BulletedItem struct {
	Text  []Span
	Items []Node
}

func (b *BulletedItem) Kind() Kind { return KindBulleted }
func (b *BulletedItem) Children() []Node { return b.Items }
func (b *BulletedItem) fields() map[string]any {
	return map[string]any{"rich_text": encodeSpans(b.Text)}
}

// MarshalJSON encodes the item as a Notion block.
func (b *BulletedItem) MarshalJSON() ([]byte, error) { return json.Marshal(Encode(b, -1)) }

// Divider is a horizontal rule.
type Divider struct{}

func (d *Divider) Kind() Kind { return KindDivider }
func (d *Divider) Children() []Node { return nil }
func (d *Divider) fields() map[string]any { return map[string]any{} }
func (d *Divider) MarshalJSON() ([]byte, error) { return json.Marshal(Encode(d, -1)) }

// Toggle is a collapsible section.
type Toggle struct {
	Text  []Span
	Items []Node
}

func (t *Toggle) Kind() Kind { return KindToggle }
func (t *Toggle) Children() []Node { return t.Items }
func (t *Toggle) fields() map[string]any {
	return map[string]any{"rich_text": encodeSpans(t.Text)}
}

// MarshalJSON encodes the toggle as a Notion block.
func (t *Toggle) MarshalJSON() ([]byte, error) { return json.Marshal(Encode(t, -1)) }

// ColumnList lays its columns out side by side.
type ColumnList struct {
	Columns []*Column
}

func (c *ColumnList) Kind() Kind { return KindColumnList }
func (c *ColumnList) Children() []Node {
	out := make([]Node, len(c.Columns))
	for i, col := range c.Columns {
		out[i] = col
	}
	return out
}
func (c *ColumnList) fields() map[string]any { return map[string]any{} }

// MarshalJSON encodes the column list as a Notion block.
func (c *ColumnList) MarshalJSON() ([]byte, error) { return json.Marshal(Encode(c, -1)) }

// Column is one column of a ColumnList.
type Column struct {
	Items []Node
}

func (c *Column) Kind() Kind { return KindColumn }
func (c *Column) Children() []Node { return c.Items }
func (c *Column) fields() map[string]any { return map[string]any{} }
func (c *Column) MarshalJSON() ([]byte, error) { return json.Marshal(Encode(c, -1)) }

// Table is a fixed-width table. Every row must have Width cells.
type Table struct {
	Width        int
	ColumnHeader bool
	Rows         []*TableRow
}

func (t *Table) Kind() Kind { return KindTable }
func (t *Table) Children() []Node {
	out := make([]Node, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r
	}
	return out
}
func (t *Table) fields() map[string]any {
	return map[string]any{
		"table_width":       t.Width,
		"has_column_header": t.ColumnHeader,
		"has_row_header":    false,
	}
}

// MarshalJSON encodes the table as a Notion block.
func (t *Table) MarshalJSON() ([]byte, error) { return json.Marshal(Encode(t, -1)) }

// TableRow is one row of a Table; each cell is a run of spans.
type TableRow struct {
	Cells [][]Span
}

func (r *TableRow) Kind() Kind { return KindTableRow }
func (r *TableRow) Children() []Node { return nil }
func (r *TableRow) fields() map[string]any {
	cells := make([][]map[string]any, len(r.Cells))
	for i, c := range r.Cells {
		cells[i] = encodeSpans(c)
	}
	return map[string]any{"cells": cells}
}

// MarshalJSON encodes the row as a Notion block.
func (r *TableRow) MarshalJSON() ([]byte, error) { return json.Marshal(Encode(r, -1)) }

// Code is a code block. Build keeps Text within the chunk limit.
type Code struct {
	Language string
	Text     string
}

func (c *Code) Kind() Kind { return KindCode }
func (c *Code) Children() []Node { return nil }
func (c *Code) fields() map[string]any {
	lang := c.Language
	if lang == "" {
		lang = "plain text"
	}
	return map[string]any{
		"rich_text": encodeSpans([]Span{{Text: c.Text}}),
		"language":  lang,
	}
}

// MarshalJSON encodes the code block as a Notion block.
func (c *Code) MarshalJSON() ([]byte, error) { return json.Marshal(Encode(c, -1)) }
