package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// AnswerValue is an answer exactly as submitted: a JSON scalar, or an array
// of scalars for checkbox questions. The raw document is kept so structural
// exports reproduce it verbatim.
type AnswerValue json.RawMessage

// AnswerValueOf encodes v. Values that cannot be encoded become null.
func AnswerValueOf(v any) AnswerValue {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return AnswerValue(b)
}

// MarshalJSON emits the stored document, or null when empty.
func (v AnswerValue) MarshalJSON() ([]byte, error) {
	if len(bytes.TrimSpace(v)) == 0 {
		return []byte("null"), nil
	}
	return v, nil
}

// UnmarshalJSON stores a copy of data.
func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	if v == nil {
		return nil
	}
	*v = append((*v)[0:0], data...)
	return nil
}

func (v AnswerValue) trimmed() []byte { return bytes.TrimSpace(v) }

// IsSequence reports whether the value is a JSON array.
func (v AnswerValue) IsSequence() bool {
	t := v.trimmed()
	return len(t) > 0 && t[0] == '['
}

// IsNull reports whether the value is absent or JSON null.
func (v AnswerValue) IsNull() bool {
	t := v.trimmed()
	return len(t) == 0 || string(t) == "null"
}

// Elements returns each element of a sequence as its literal string, or the
// scalar itself as a single element. Null yields no elements.
func (v AnswerValue) Elements() []string {
	if v.IsNull() {
		return nil
	}
	if !v.IsSequence() {
		return []string{literal(v.trimmed())}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(v.trimmed(), &items); err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, literal(bytes.TrimSpace(it)))
	}
	return out
}

// Text renders the value as a single literal string: sequences joined with
// "; ", null as the empty string.
func (v AnswerValue) Text() string {
	if v.IsNull() {
		return ""
	}
	if v.IsSequence() {
		return strings.Join(v.Elements(), "; ")
	}
	return literal(v.trimmed())
}

// Number interprets the value as a number. JSON numbers and numeric strings
// qualify; everything else does not.
func (v AnswerValue) Number() (float64, bool) {
	t := v.trimmed()
	if len(t) == 0 {
		return 0, false
	}
	var f float64
	switch t[0] {
	case '"':
		var s string
		if err := json.Unmarshal(t, &s); err != nil {
			return 0, false
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = n
	case '[', '{', 't', 'f', 'n':
		return 0, false
	default:
		if err := json.Unmarshal(t, &f); err != nil {
			return 0, false
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Blank reports whether the value carries no content: null, a whitespace-only
// string, or an empty sequence.
func (v AnswerValue) Blank() bool {
	if v.IsNull() {
		return true
	}
	if v.IsSequence() {
		return len(v.Elements()) == 0
	}
	t := v.trimmed()
	if t[0] == '"' {
		return strings.TrimSpace(literal(t)) == ""
	}
	return false
}

// literal renders one JSON token the way it reads: strings unquoted, numbers
// and booleans as written, null empty, nested documents compacted.
func literal(tok []byte) string {
	if len(tok) == 0 {
		return ""
	}
	switch tok[0] {
	case '"':
		var s string
		if err := json.Unmarshal(tok, &s); err != nil {
			return string(tok)
		}
		return s
	case 'n':
		if string(tok) == "null" {
			return ""
		}
	case '[', '{':
		var buf bytes.Buffer
		if err := json.Compact(&buf, tok); err == nil {
			return buf.String()
		}
	}
	return string(tok)
}
