package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// QuestionType determines the expected answer shape and how a question is aggregated.
type QuestionType string

const (
	MultipleChoice QuestionType = "MULTIPLE_CHOICE"
	Checkboxes     QuestionType = "CHECKBOXES"
	ShortAnswer    QuestionType = "SHORT_ANSWER"
	LongAnswer     QuestionType = "LONG_ANSWER"
	Dropdown       QuestionType = "DROPDOWN"
	LinearScale    QuestionType = "LINEAR_SCALE"
	Date           QuestionType = "DATE"
	Time           QuestionType = "TIME"
	DateTime       QuestionType = "DATETIME"
	FileUpload     QuestionType = "FILE_UPLOAD"
	RichText       QuestionType = "RICH_TEXT"
)

// QuestionTypes lists every supported type in declaration order.
var QuestionTypes = []QuestionType{
	MultipleChoice, Checkboxes, ShortAnswer, LongAnswer, Dropdown, LinearScale,
	Date, Time, DateTime, FileUpload, RichText,
}

// Valid reports whether t is one of QuestionTypes.
func (t QuestionType) Valid() bool {
	for _, v := range QuestionTypes {
		if v == t {
			return true
		}
	}
	return false
}

const (
	DefaultScaleMin = 1
	DefaultScaleMax = 5
	// MaxScaleSpan bounds the number of buckets a scale may produce.
	MaxScaleSpan = 1000
)

// ScaleLabels are the captions shown at either end of a linear scale.
type ScaleLabels struct {
	Left  string `json:"left,omitempty"`
	Right string `json:"right,omitempty"`
}

// QuestionOptions is the type-dependent configuration of a question.
// Choice types use Choices; LINEAR_SCALE uses Min, Max, Step and Labels.
// Unset bounds fall back to DefaultScaleMin and DefaultScaleMax.
type QuestionOptions struct {
	Choices []string     `json:"choices,omitempty"`
	Min     *int         `json:"min,omitempty"`
	Max     *int         `json:"max,omitempty"`
	Step    *int         `json:"step,omitempty"`
	Labels  *ScaleLabels `json:"labels,omitempty"`
}

// ChoiceList returns the configured choices, or nil.
func (o *QuestionOptions) ChoiceList() []string {
	if o == nil {
		return nil
	}
	return o.Choices
}

// ScaleBounds resolves the inclusive scale range. ok is false when the
// configuration is unusable (max below min, or more than MaxScaleSpan buckets).
func (o *QuestionOptions) ScaleBounds() (lo, hi int, ok bool) {
	lo, hi = DefaultScaleMin, DefaultScaleMax
	if o != nil {
		if o.Min != nil {
			lo = *o.Min
		}
		if o.Max != nil {
			hi = *o.Max
		}
	}
	if hi < lo || hi-lo+1 > MaxScaleSpan {
		return lo, hi, false
	}
	return lo, hi, true
}

// UnmarshalJSON accepts loosely-typed option blobs. Fields of the wrong shape
// are dropped instead of failing the whole document.
func (o *QuestionOptions) UnmarshalJSON(data []byte) error {
	*o = QuestionOptions{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		// not an object: treat as no options
		return nil
	}
	if v, ok := raw["choices"]; ok {
		o.Choices = parseChoices(v)
	}
	o.Min = parseInt(raw["min"])
	o.Max = parseInt(raw["max"])
	o.Step = parseInt(raw["step"])
	if v, ok := raw["labels"]; ok {
		var l ScaleLabels
		if err := json.Unmarshal(v, &l); err == nil && (l.Left != "" || l.Right != "") {
			o.Labels = &l
		}
	}
	return nil
}

func parseChoices(data json.RawMessage) []string {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = bytes.TrimSpace(it)
		if len(it) == 0 || it[0] == '[' || it[0] == '{' || string(it) == "null" {
			continue
		}
		out = append(out, literal(it))
	}
	return out
}

func parseInt(data json.RawMessage) *int {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		if f, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return nil
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return nil
	}
	n := int(f)
	return &n
}
