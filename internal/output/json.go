package output

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
)

// MarshalJSON encodes v with Korean text and symbols left unescaped. An
// empty indent produces compact output. The result has no trailing newline.
func MarshalJSON(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// JSONWriter writes JSON output. A single value is written as is; several
// are written as an array.
type JSONWriter struct {
	w      *bufio.Writer
	pretty bool
	indent string
	items  []any
}

// NewJSONWriter creates a JSON writer.
func NewJSONWriter(w io.Writer, pretty bool, indent string) *JSONWriter {
	return &JSONWriter{
		w:      bufio.NewWriter(w),
		pretty: pretty,
		indent: indent,
		items:  make([]any, 0),
	}
}

// Write buffers a single item.
func (w *JSONWriter) Write(data any) error {
	w.items = append(w.items, data)
	return nil
}

// Close writes the buffered items.
func (w *JSONWriter) Close() error {
	var v any = w.items
	if len(w.items) == 1 {
		v = w.items[0]
	}

	indent := ""
	if w.pretty {
		indent = w.indent
	}
	out, err := MarshalJSON(v, indent)
	if err != nil {
		return err
	}

	if _, err := w.w.Write(out); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	w.items = w.items[:0]
	return w.w.Flush()
}

// JSONLWriter writes newline-delimited JSON (JSONL).
type JSONLWriter struct {
	w *bufio.Writer
}

// NewJSONLWriter creates a JSONL writer.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{
		w: bufio.NewWriter(w),
	}
}

// Write writes a single item as a JSON line.
func (w *JSONLWriter) Write(data any) error {
	out, err := MarshalJSON(data, "")
	if err != nil {
		return err
	}
	if _, err := w.w.Write(out); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

// Close flushes the writer.
func (w *JSONLWriter) Close() error {
	return w.w.Flush()
}
