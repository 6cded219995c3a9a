package document

import "unicode/utf16"

// DefaultChunkLimit is the largest payload, in UTF-16 code units, placed in
// one code block. Notion caps a rich text object at 2000 characters and
// counts them the way JavaScript does, so an emoji outside the BMP costs two.
const DefaultChunkLimit = 1900

// Chunk splits payload into consecutive pieces of at most limit UTF-16 code
// units without splitting a character. Joining the pieces reproduces payload
// exactly. A payload within the limit, the empty payload included, is one
// chunk.
func Chunk(payload string, limit int) []string {
	if limit <= 0 {
		limit = DefaultChunkLimit
	}
	if utf16Len(payload) <= limit {
		return []string{payload}
	}

	var chunks []string
	start, n := 0, 0
	for i, r := range payload {
		w := max(utf16.RuneLen(r), 1)
		if n > 0 && n+w > limit {
			chunks = append(chunks, payload[start:i])
			start, n = i, 0
		}
		n += w
	}
	return append(chunks, payload[start:])
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += max(utf16.RuneLen(r), 1)
	}
	return n
}

// CodeBlocks wraps each chunk of payload in its own code block.
func CodeBlocks(payload, language string, limit int) []Node {
	chunks := Chunk(payload, limit)
	nodes := make([]Node, len(chunks))
	for i, c := range chunks {
		nodes[i] = &Code{Language: language, Text: c}
	}
	return nodes
}
