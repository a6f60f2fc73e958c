package arenalog

import (
	"encoding/json"
	"strings"
)

const (
	// TagStandalone marks JSON blocks that carried no method name.
	TagStandalone = "standalone"

	unityPrefix = "[UnityCrossThreadLogger]"

	// maxBlockLines caps how far a brace-balance scan will chase an
	// unterminated block before giving up on it.
	maxBlockLines = 2000

	// Streaming buffer thresholds: once the accumulated buffer passes
	// maxStreamBuffer, only the trailing keepStreamBuffer bytes are kept.
	maxStreamBuffer  = 512 * 1024
	keepStreamBuffer = 256 * 1024
)

// Block is one tagged JSON payload extracted from the log.
type Block struct {
	Tag     string
	Payload json.RawMessage
}

// recognizedKeys gates bare JSON lines: arbitrary non-Arena JSON in the log
// is ignored unless one of these top-level keys is present.
var recognizedKeys = []string{
	"greToClientEvent",
	"matchGameRoomStateChangedEvent",
	"authenticateResponse",
	"transactionId",
	"Deck",
	"MainDeck",
	"CourseDeckSummary",
	"InternalEventName",
}

// ExtractBlocks scans raw log text and returns every complete JSON block,
// tolerating both the old "==> Method(id): {...}" convention and the newer
// "[UnityCrossThreadLogger]==> Method {...}" one. Malformed JSON is dropped.
func ExtractBlocks(text string) []Block {
	lines := strings.Split(text, "\n")
	var blocks []Block

	for i := 0; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\r")

		tag, rest, ok := matchLinePrefix(line)
		if !ok {
			continue
		}

		payload, consumed := collectJSON(lines, i, rest)
		if payload == nil {
			continue
		}
		if tag == TagStandalone && !hasRecognizedKey(payload) {
			continue
		}
		blocks = append(blocks, Block{Tag: tag, Payload: payload})
		i += consumed
	}
	return blocks
}

// matchLinePrefix classifies a line, returning the block tag and the portion
// of the line where the JSON may begin.
func matchLinePrefix(line string) (tag, rest string, ok bool) {
	trimmed := strings.TrimSpace(line)

	// Newer clients prefix everything with the Unity logger marker.
	if strings.HasPrefix(trimmed, unityPrefix) {
		body := strings.TrimSpace(trimmed[len(unityPrefix):])
		// A timestamp may sit between the marker and the arrow.
		if idx := strings.Index(body, "==>"); idx >= 0 {
			return parseArrowLine(body[idx+3:])
		}
		if idx := strings.Index(body, "<=="); idx >= 0 {
			return parseArrowLine(body[idx+3:])
		}
		if strings.HasPrefix(body, "{") {
			return TagStandalone, body, true
		}
		return "", "", false
	}

	// Old format: "==> Method(id): {...}" / "<== Method(id) {...}".
	if strings.HasPrefix(trimmed, "==>") || strings.HasPrefix(trimmed, "<==") {
		return parseArrowLine(trimmed[3:])
	}

	// Bare JSON line; accepted only if a recognized key shows up later.
	if strings.HasPrefix(trimmed, "{") {
		return TagStandalone, trimmed, true
	}

	return "", "", false
}

// parseArrowLine pulls the method name out of the text following an arrow.
// The name may carry an "(id)" suffix and a ":" separator; the JSON may start
// on the same line or the next.
func parseArrowLine(body string) (tag, rest string, ok bool) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", "", false
	}

	brace := strings.Index(body, "{")
	name := body
	if brace >= 0 {
		name = body[:brace]
		rest = body[brace:]
	} else {
		rest = ""
	}

	name = strings.TrimSpace(name)
	name = strings.TrimSuffix(name, ":")
	if idx := strings.Index(name, "("); idx >= 0 {
		name = name[:idx]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", false
	}
	return name, rest, true
}

// collectJSON gathers a complete JSON object starting in rest (which may be
// empty, meaning the object starts on a following line), balancing braces
// across lines up to maxBlockLines. Returns nil if no valid object is found,
// along with how many extra lines were consumed.
func collectJSON(lines []string, start int, rest string) (json.RawMessage, int) {
	var sb strings.Builder
	depth := 0
	inString := false
	escaped := false
	started := false

	consume := func(s string) bool {
		for _, r := range s {
			if !started {
				if r == '{' {
					started = true
				} else {
					continue
				}
			}
			sb.WriteRune(r)
			if escaped {
				escaped = false
				continue
			}
			switch r {
			case '\\':
				if inString {
					escaped = true
				}
			case '"':
				inString = !inString
			case '{':
				if !inString {
					depth++
				}
			case '}':
				if !inString {
					depth--
					if depth == 0 {
						return true
					}
				}
			}
		}
		return false
	}

	if consume(rest) {
		raw := json.RawMessage(sb.String())
		if json.Valid(raw) {
			return raw, 0
		}
		return nil, 0
	}

	for n := 1; n <= maxBlockLines; n++ {
		idx := start + n
		if idx >= len(lines) {
			return nil, 0
		}
		line := strings.TrimRight(lines[idx], "\r")
		// A new log statement ends any block still being collected, and a
		// statement with no payload must not swallow its successor's JSON.
		if looksLikeLogStatement(line) {
			return nil, n - 1
		}
		if consume(line) {
			raw := json.RawMessage(sb.String())
			if json.Valid(raw) {
				return raw, n
			}
			return nil, n
		}
		sb.WriteByte('\n')
	}
	return nil, 0
}

func looksLikeLogStatement(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, unityPrefix) ||
		strings.HasPrefix(trimmed, "==>") ||
		strings.HasPrefix(trimmed, "<==")
}

func hasRecognizedKey(payload json.RawMessage) bool {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(payload, &top); err != nil {
		return false
	}
	for _, key := range recognizedKeys {
		if _, ok := top[key]; ok {
			return true
		}
	}
	return false
}

// StreamExtractor incrementally extracts blocks from an accumulating buffer,
// guaranteeing each block is emitted exactly once even though the buffer is
// re-scanned on every append.
type StreamExtractor struct {
	buf       []byte
	processed int // blocks already emitted from buf
}

// NewStreamExtractor returns an empty streaming extractor.
func NewStreamExtractor() *StreamExtractor {
	return &StreamExtractor{}
}

// Append adds a chunk of log text and returns only the blocks not yet
// emitted. Once the buffer outgrows maxStreamBuffer it is trimmed to its
// tail and the processed counter is recomputed against the trimmed text.
func (s *StreamExtractor) Append(chunk string) []Block {
	s.buf = append(s.buf, chunk...)

	blocks := ExtractBlocks(string(s.buf))
	var fresh []Block
	if len(blocks) > s.processed {
		fresh = blocks[s.processed:]
		s.processed = len(blocks)
	}

	if len(s.buf) > maxStreamBuffer {
		s.buf = append([]byte(nil), s.buf[len(s.buf)-keepStreamBuffer:]...)
		s.processed = len(ExtractBlocks(string(s.buf)))
	}
	return fresh
}

// Reset drops the buffer and counter, for rotation/truncation/restart.
func (s *StreamExtractor) Reset() {
	s.buf = nil
	s.processed = 0
}
