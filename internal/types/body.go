package types

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// BodyKind tags the variant held by a Body.
type BodyKind string

const (
	BodyEmpty      BodyKind = "empty"
	BodyRaw        BodyKind = "raw"
	BodyStructured BodyKind = "structured"
	BodyParseError BodyKind = "parse_error"
)

// Body is a request or response payload as seen on the wire.
//
// Exactly one variant is meaningful at a time:
//   - BodyEmpty: nothing was sent.
//   - BodyRaw: Text holds the payload verbatim.
//   - BodyStructured: Value holds the JSON document in compact form.
//   - BodyParseError: the payload looked like JSON but did not decode;
//     Text holds it verbatim and Reason the decoder message.
type Body struct {
	Kind   BodyKind        `json:"-"`
	Text   string          `json:"-"`
	Value  json.RawMessage `json:"-"`
	Reason string          `json:"-"`

	Clipped      bool   `json:"-"`
	OriginalSize int    `json:"-"`
	SHA256       string `json:"-"`
}

// EmptyBody returns the empty variant.
func EmptyBody() Body { return Body{Kind: BodyEmpty} }

// RawBody wraps text verbatim.
func RawBody(text string) Body { return Body{Kind: BodyRaw, Text: text} }

// StructuredBody wraps an already decoded JSON document.
func StructuredBody(value json.RawMessage) Body {
	return Body{Kind: BodyStructured, Value: value}
}

// ParseErrorBody records text that failed to decode.
func ParseErrorBody(text, reason string) Body {
	return Body{Kind: BodyParseError, Text: text, Reason: reason}
}

// ParseBody classifies a payload. JSON is attempted when the content type
// says so or the text starts like a JSON object or array.
func ParseBody(text, contentType string) Body {
	if text == "" {
		return EmptyBody()
	}
	trimmed := strings.TrimSpace(text)
	looksJSON := strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
	if !strings.Contains(strings.ToLower(contentType), "application/json") && !looksJSON {
		return RawBody(text)
	}

	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return ParseErrorBody(text, err.Error())
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(text)); err != nil {
		return ParseErrorBody(text, err.Error())
	}
	return StructuredBody(compact.Bytes())
}

// Lookup returns the value at a dotted path of object keys inside a
// structured body, e.g. Lookup("variables", "operationName").
func (b Body) Lookup(path ...string) (any, bool) {
	if b.Kind != BodyStructured {
		return nil, false
	}
	var cur any
	if err := json.Unmarshal(b.Value, &cur); err != nil {
		return nil, false
	}
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Len is the size in bytes of the payload as stored.
func (b Body) Len() int {
	if b.Kind == BodyStructured {
		return len(b.Value)
	}
	return len(b.Text)
}

// Clip bounds the stored payload to limit bytes, backing off to the
// previous character boundary. A clipped structured body degrades to raw
// text since a prefix of a JSON document is not JSON. limit <= 0 disables
// clipping.
func (b Body) Clip(limit int) Body {
	if limit <= 0 || b.Len() <= limit {
		return b
	}

	full := b.Text
	if b.Kind == BodyStructured {
		full = string(b.Value)
	}
	sum := sha256.Sum256([]byte(full))

	out := ClippedRaw(full[:limit], CountRuneStarts(full[limit:]), len(full), hex.EncodeToString(sum[:]))
	if b.Kind != BodyStructured {
		out.Kind = b.Kind
		out.Reason = b.Reason
	}
	return out
}

// ClippedRaw builds a clipped raw body from the first bytes of a payload.
// rest counts the characters after head; size and digest describe the
// whole payload. A character split at the end of head is dropped.
func ClippedRaw(head string, rest, size int, digest string) Body {
	cut := len(head)
	i := cut - 1
	for i > 0 && cut-i < utf8.UTFMax && !utf8.RuneStart(head[i]) {
		i--
	}
	if i >= 0 && !utf8.FullRuneInString(head[i:]) {
		cut = i
	}
	rest += CountRuneStarts(head[cut:])

	return Body{
		Kind:         BodyRaw,
		Text:         fmt.Sprintf("%s…(clipped %d chars)", head[:cut], rest),
		Clipped:      true,
		OriginalSize: size,
		SHA256:       digest,
	}
}

// CountRuneStarts counts the bytes of s that begin a character. For valid
// UTF-8 this is the character count, and it stays stable when s is a
// fragment cut at an arbitrary byte.
func CountRuneStarts(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if utf8.RuneStart(s[i]) {
			n++
		}
	}
	return n
}

// MarshalJSON renders the variant the way operators read captures:
// structured bodies inline, raw text under "_raw", parse failures with
// "_parseError" next to the verbatim text.
func (b Body) MarshalJSON() ([]byte, error) {
	switch b.Kind {
	case BodyStructured:
		if len(b.Value) == 0 {
			return []byte("null"), nil
		}
		return b.Value, nil
	case BodyRaw:
		return json.Marshal(b.marker(""))
	case BodyParseError:
		return json.Marshal(b.marker(b.Reason))
	default:
		return []byte("null"), nil
	}
}

type bodyMarker struct {
	ParseError   string `json:"_parseError,omitempty"`
	Raw          string `json:"_raw"`
	Clipped      bool   `json:"_clipped,omitempty"`
	OriginalSize int    `json:"_originalSize,omitempty"`
	SHA256       string `json:"_sha256,omitempty"`
}

func (b Body) marker(reason string) bodyMarker {
	return bodyMarker{
		ParseError:   reason,
		Raw:          b.Text,
		Clipped:      b.Clipped,
		OriginalSize: b.OriginalSize,
		SHA256:       b.SHA256,
	}
}
