package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

type testItem struct {
	Name  string `json:"name" yaml:"name"`
	Value int    `json:"value" yaml:"value"`
}

// --- Format Tests ---

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"json", "jsonl", "yaml"} {
		f, err := ParseFormat(s)
		if err != nil || string(f) != s {
			t.Errorf("ParseFormat(%q) = %q, %v", s, f, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

// --- NewWriter Factory Tests ---

func TestNewWriter_Types(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{FormatJSON, "*output.JSONWriter"},
		{FormatJSONL, "*output.JSONLWriter"},
		{FormatYAML, "*output.YAMLWriter"},
	}

	for _, tt := range tests {
		w, err := NewWriter(&bytes.Buffer{}, tt.format)
		if err != nil {
			t.Fatalf("NewWriter(%s) error = %v", tt.format, err)
		}
		if got := typeName(w); got != tt.want {
			t.Errorf("NewWriter(%s) = %s, want %s", tt.format, got, tt.want)
		}
	}
}

func TestNewWriter_UnsupportedFormat(t *testing.T) {
	if _, err := NewWriter(&bytes.Buffer{}, Format("csv")); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

// --- MarshalJSON Tests ---

func TestMarshalJSON_NoHTMLEscaping(t *testing.T) {
	out, err := MarshalJSON(map[string]string{"status": "미납 <연체> & 확인"}, "")
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if string(out) != `{"status":"미납 <연체> & 확인"}` {
		t.Errorf("MarshalJSON() = %s", out)
	}
}

func TestMarshalJSON_Indent(t *testing.T) {
	out, err := MarshalJSON(testItem{Name: "전기", Value: 1}, "  ")
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	want := "{\n  \"name\": \"전기\",\n  \"value\": 1\n}"
	if string(out) != want {
		t.Errorf("MarshalJSON() = %q, want %q", out, want)
	}
}

// --- JSONWriter Tests ---

func TestJSONWriter_SingleItem(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf, false, "")

	if err := w.Write(testItem{Name: "일반관리비", Value: 52340}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	var got testItem
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not a single object: %v\n%s", err, buf.String())
	}
	if got.Name != "일반관리비" || got.Value != 52340 {
		t.Errorf("got %+v", got)
	}
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Error("output should end with a newline")
	}
}

func TestJSONWriter_MultipleItemsOutputsArray(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf, true, "  ")
	_ = w.Write(testItem{Name: "a", Value: 1})
	_ = w.Write(testItem{Name: "b", Value: 2})
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	var got []testItem
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not an array: %v", err)
	}
	if len(got) != 2 || got[1].Name != "b" {
		t.Errorf("got %+v", got)
	}
	if !strings.Contains(buf.String(), "\n  {") {
		t.Errorf("expected indented output, got %s", buf.String())
	}
}

func TestJSONWriter_Empty(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewJSONWriter(buf, false, "").Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty writer output = %q", buf.String())
	}
}

// --- JSONLWriter Tests ---

func TestJSONLWriter_SeparateLines(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONLWriter(buf)
	for i, name := range []string{"callout", "divider", "toggle"} {
		if err := w.Write(testItem{Name: name, Value: i}); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), buf.String())
	}
	var got testItem
	if err := json.Unmarshal([]byte(lines[2]), &got); err != nil || got.Name != "toggle" {
		t.Errorf("line 3 = %q (%v)", lines[2], err)
	}
}

// --- YAMLWriter Tests ---

func TestYAMLWriter_SingleItem(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewYAMLWriter(buf)
	_ = w.Write(testItem{Name: "수도", Value: 18400})
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	var got testItem
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if got.Name != "수도" || got.Value != 18400 {
		t.Errorf("got %+v", got)
	}
}

func TestYAMLWriter_MultipleItems(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewYAMLWriter(buf)
	_ = w.Write(testItem{Name: "a"})
	_ = w.Write(testItem{Name: "b"})
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if !strings.Contains(buf.String(), "\n---\n") {
		t.Errorf("documents should be separated:\n%s", buf.String())
	}

	dec := yaml.NewDecoder(bytes.NewReader(buf.Bytes()))
	var names []string
	for {
		var got testItem
		if err := dec.Decode(&got); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			t.Fatalf("invalid YAML: %v", err)
		}
		names = append(names, got.Name)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("documents = %v", names)
	}
}

// --- File Tests ---

func TestFileName(t *testing.T) {
	ts := time.Date(2025, 12, 19, 7, 5, 9, 0, time.UTC)
	if got := FileName("apti_result", FormatJSON, ts); got != "apti_result_20251219_070509.json" {
		t.Errorf("FileName() = %q", got)
	}
	if got := FileName("apti_result", FormatYAML, ts); got != "apti_result_20251219_070509.yaml" {
		t.Errorf("FileName() = %q", got)
	}
}

func TestSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	ts := time.Date(2025, 12, 19, 7, 5, 9, 0, time.UTC)

	path, err := Save(dir, "apti_result", FormatJSON, testItem{Name: "관리비", Value: 257430}, ts)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if filepath.Base(path) != "apti_result_20251219_070509.json" {
		t.Errorf("path = %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	var got testItem
	if err := json.Unmarshal(data, &got); err != nil || got.Value != 257430 {
		t.Errorf("saved content = %s (%v)", data, err)
	}
}

func TestSave_DoesNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2025, 12, 19, 7, 5, 9, 0, time.UTC)

	if _, err := Save(dir, "apti_result", FormatJSON, testItem{}, ts); err != nil {
		t.Fatalf("first Save() error = %v", err)
	}
	if _, err := Save(dir, "apti_result", FormatJSON, testItem{}, ts); err == nil {
		t.Error("expected error when the file already exists")
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *JSONWriter:
		return "*output.JSONWriter"
	case *JSONLWriter:
		return "*output.JSONLWriter"
	case *YAMLWriter:
		return "*output.YAMLWriter"
	default:
		return "unknown"
	}
}
