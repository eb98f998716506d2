package processors

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/Abhijeetkumar8582/NewCode/core"
)

// missingBatchResult marks positions the model's batch response did not cover.
const missingBatchResult = "Missing result in batch response"

// FrameFields is the decoded payload for one frame: what the model said,
// before it is merged with the frame's own metadata. Err is set when this
// position could not be recovered from a batch response.
type FrameFields struct {
	Description string
	OCRText     string
	MetaTags    []string
	Err         string
}

// Interpreter decodes model responses. Models wrap JSON in markdown fences,
// truncate closing braces, and emit bare key-value fragments; decoding is
// staged so each defect gets one repair pass before giving up.
type Interpreter struct {
	log *slog.Logger
}

func NewInterpreter(log *slog.Logger) *Interpreter {
	return &Interpreter{log: log}
}

// InterpretSingle decodes a single-frame response. Failure after every repair
// stage returns *core.ResponseParseError with a bounded preview of the text.
func (it *Interpreter) InterpretSingle(raw string) (FrameFields, error) {
	v, err := decodeLenient(raw)
	if err != nil {
		return FrameFields{}, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return FrameFields{}, core.NewResponseParseError(raw, errNotAnObject)
	}
	return it.fieldsFromMap(obj), nil
}

// InterpretBatch decodes a batch response into exactly n per-frame payloads,
// mapped positionally. A response covering fewer than n frames pads the tail
// with missing-result errors; extra elements are dropped.
func (it *Interpreter) InterpretBatch(raw string, n int) ([]FrameFields, error) {
	v, err := decodeLenient(raw)
	if err != nil {
		return nil, err
	}
	list, ok := extractFrameList(v)
	if !ok {
		return nil, core.NewResponseParseError(raw, errNoFrameArray)
	}

	out := make([]FrameFields, n)
	for i := 0; i < n; i++ {
		if i >= len(list) {
			out[i] = FrameFields{Err: missingBatchResult}
			continue
		}
		obj, ok := list[i].(map[string]any)
		if !ok {
			out[i] = FrameFields{Err: missingBatchResult}
			continue
		}
		out[i] = it.fieldsFromMap(obj)
	}
	if len(list) < n {
		it.log.Warn("batch response covered fewer frames than submitted",
			"expected", n, "got", len(list))
	}
	return out, nil
}

// extractFrameList finds the per-frame array inside whatever shape the model
// returned: the agreed "frames" key, a bare top-level array, a single frame
// object, or failing those the first array-valued property (keys scanned in
// sorted order, the wire guarantees no key order anyway).
func extractFrameList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case map[string]any:
		if frames, ok := t["frames"].([]any); ok {
			return frames, true
		}
		if looksLikeFrame(t) {
			return []any{t}, true
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if arr, ok := t[k].([]any); ok {
				return arr, true
			}
		}
	}
	return nil, false
}

func looksLikeFrame(obj map[string]any) bool {
	for _, k := range []string{"description", "ocr_text", "meta_tags", "timestamp"} {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	return false
}

func (it *Interpreter) fieldsFromMap(obj map[string]any) FrameFields {
	f := FrameFields{
		Description: asString(obj["description"]),
		OCRText:     asString(obj["ocr_text"]),
		MetaTags:    asStringSlice(obj["meta_tags"]),
	}
	if strings.TrimSpace(f.Description) == "" {
		it.log.Warn("model response had no description, using placeholder")
		f.Description = defaultNoDescText
	}
	if len(f.MetaTags) != 3 {
		it.log.Warn("model returned unexpected meta tag count", "count", len(f.MetaTags))
	}
	return f
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asStringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

var (
	errNotAnObject  = jsonError("response is not a JSON object")
	errNoFrameArray = jsonError("no frame array found in batch response")
)

type jsonError string

func (e jsonError) Error() string { return string(e) }

// decodeLenient runs the repair ladder: direct decode, fence stripping,
// object extraction, structural repair. Each rung only runs if the previous
// one failed.
func decodeLenient(raw string) (any, error) {
	s := strings.TrimSpace(raw)
	if v, err := decodeJSON(s); err == nil {
		return v, nil
	}

	stripped := stripCodeFences(s)
	if v, err := decodeJSON(stripped); err == nil {
		return v, nil
	}

	extracted := extractJSONObject(stripped)
	if extracted != stripped {
		if v, err := decodeJSON(extracted); err == nil {
			return v, nil
		}
	}

	repaired := repairJSON(extracted)
	v, err := decodeJSON(repaired)
	if err == nil {
		return v, nil
	}

	// Last resort: repair the fence-stripped text without extraction, in
	// case the braces the extractor keyed on were themselves the damage.
	if v, err2 := decodeJSON(repairJSON(stripped)); err2 == nil {
		return v, nil
	}
	return nil, core.NewResponseParseError(raw, err)
}

func decodeJSON(s string) (any, error) {
	var v any
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// stripCodeFences unwraps a markdown-fenced payload. Text without a complete
// fence pair is returned with any partial fence markers trimmed.
func stripCodeFences(s string) string {
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// extractJSONObject slices from the first opening brace or bracket to the
// matching last closer, dropping any prose around the payload.
func extractJSONObject(s string) string {
	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return s
	}
	var closer byte = '}'
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return s[start:]
	}
	return s[start : end+1]
}

var trailingComma = regexp.MustCompile(`,(\s*[}\]])`)

// repairJSON fixes the truncation defects models actually produce: bare
// key-value fragments missing their braces, unterminated strings, unclosed
// braces and brackets, trailing commas.
func repairJSON(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if s[0] != '{' && s[0] != '[' && strings.Contains(s, ":") {
		s = "{" + s + "}"
	}
	s = trailingComma.ReplaceAllString(s, "$1")
	return closeOpenScopes(s)
}

// closeOpenScopes appends the closers for any scopes left open, string-aware
// so braces inside string values are not counted.
func closeOpenScopes(s string) string {
	var stack []byte
	inStr, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}
	var b strings.Builder
	b.WriteString(s)
	if inStr {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String()
}
