package document

import "strings"

// Color is a Notion text or block color.
type Color string

const (
	ColorDefault        Color = "default"
	ColorGray           Color = "gray"
	ColorRed            Color = "red"
	ColorBlue           Color = "blue"
	ColorGreen          Color = "green"
	ColorYellow         Color = "yellow"
	ColorGrayBackground Color = "gray_background"
	ColorBlueBackground Color = "blue_background"
)

// Span is a run of rich text with uniform styling.
type Span struct {
	Text  string
	Bold  bool
	Code  bool
	Color Color
}

// Plain returns an unstyled span list holding s.
func Plain(s string) []Span {
	return []Span{{Text: s}}
}

// PlainText concatenates the text of spans.
func PlainText(spans []Span) string {
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(s.Text)
	}
	return b.String()
}

func encodeSpans(spans []Span) []map[string]any {
	out := make([]map[string]any, 0, len(spans))
	for _, s := range spans {
		rt := map[string]any{
			"type": "text",
			"text": map[string]any{"content": s.Text},
		}
		ann := map[string]any{}
		if s.Bold {
			ann["bold"] = true
		}
		if s.Code {
			ann["code"] = true
		}
		if s.Color != "" && s.Color != ColorDefault {
			ann["color"] = string(s.Color)
		}
		if len(ann) > 0 {
			rt["annotations"] = ann
		}
		out = append(out, rt)
	}
	return out
}
