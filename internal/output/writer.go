// Package output serializes collected billing records and rendered page
// payloads to JSON, JSON Lines or YAML, on a stream or as timestamped files.
package output

import (
	"fmt"
	"io"
)

// Format represents output format types.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// Extension returns the file extension for the format, without the dot.
func (f Format) Extension() string {
	return string(f)
}

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatJSON, FormatJSONL, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", s)
	}
}

// Writer serializes values to an underlying stream.
type Writer interface {
	// Write outputs one value. The JSON writer buffers until Close; JSONL
	// and YAML writers emit each value as its own line or document.
	Write(data any) error

	// Close writes anything still buffered.
	Close() error
}

// WriterOption configures a writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	pretty bool
	indent string
}

// WithPretty enables pretty-printing.
func WithPretty(enabled bool) WriterOption {
	return func(c *writerConfig) {
		c.pretty = enabled
	}
}

// WithIndent sets the indentation string.
func WithIndent(indent string) WriterOption {
	return func(c *writerConfig) {
		c.indent = indent
	}
}

// NewWriter creates a writer for the specified format.
func NewWriter(w io.Writer, format Format, opts ...WriterOption) (Writer, error) {
	cfg := &writerConfig{
		pretty: true,
		indent: "  ",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	switch format {
	case FormatJSON:
		return NewJSONWriter(w, cfg.pretty, cfg.indent), nil
	case FormatJSONL:
		return NewJSONLWriter(w), nil
	case FormatYAML:
		return NewYAMLWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
