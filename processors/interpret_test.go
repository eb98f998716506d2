package processors

import (
	"errors"
	"strings"
	"testing"

	"github.com/Abhijeetkumar8582/NewCode/core"
)

func TestInterpretSingleDirect(t *testing.T) {
	it := NewInterpreter(testLogger())
	raw := `{"timestamp": 5, "description": "a login form", "ocr_text": "Sign in", "meta_tags": ["ui", "auth", "form"]}`

	f, err := it.InterpretSingle(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Description != "a login form" {
		t.Errorf("description = %q", f.Description)
	}
	if f.OCRText != "Sign in" {
		t.Errorf("ocr_text = %q", f.OCRText)
	}
	if len(f.MetaTags) != 3 || f.MetaTags[0] != "ui" {
		t.Errorf("meta_tags = %v", f.MetaTags)
	}
}

func TestInterpretSingleFenced(t *testing.T) {
	it := NewInterpreter(testLogger())
	raw := "```json\n{\"description\": \"desktop\", \"meta_tags\": [\"a\", \"b\", \"c\"]}\n```"

	f, err := it.InterpretSingle(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Description != "desktop" {
		t.Errorf("description = %q", f.Description)
	}
}

func TestInterpretSingleProseWrapped(t *testing.T) {
	it := NewInterpreter(testLogger())
	raw := `Here is the analysis you asked for: {"description": "a spreadsheet"} Hope that helps!`

	f, err := it.InterpretSingle(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Description != "a spreadsheet" {
		t.Errorf("description = %q", f.Description)
	}
}

func TestInterpretSingleTruncated(t *testing.T) {
	it := NewInterpreter(testLogger())
	// Response cut off mid-string: unterminated value and missing brace.
	raw := `{"description": "a terminal window with a long command that got cut`

	f, err := it.InterpretSingle(raw)
	if err != nil {
		t.Fatalf("repair should recover truncated response: %v", err)
	}
	if !strings.HasPrefix(f.Description, "a terminal window") {
		t.Errorf("description = %q", f.Description)
	}
}

func TestInterpretSingleBareKeyValue(t *testing.T) {
	it := NewInterpreter(testLogger())
	raw := `"description": "a browser tab", "ocr_text": "example.com"`

	f, err := it.InterpretSingle(raw)
	if err != nil {
		t.Fatalf("repair should wrap bare key-value: %v", err)
	}
	if f.Description != "a browser tab" {
		t.Errorf("description = %q", f.Description)
	}
}

func TestInterpretSingleMissingDescription(t *testing.T) {
	it := NewInterpreter(testLogger())
	f, err := it.InterpretSingle(`{"ocr_text": "text only"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Description != defaultNoDescText {
		t.Errorf("expected placeholder description, got %q", f.Description)
	}
}

func TestInterpretSingleUnparseable(t *testing.T) {
	it := NewInterpreter(testLogger())
	long := strings.Repeat("x", 500)

	_, err := it.InterpretSingle(long)
	if err == nil {
		t.Fatal("expected parse error")
	}
	var rpe *core.ResponseParseError
	if !errors.As(err, &rpe) {
		t.Fatalf("expected ResponseParseError, got %T", err)
	}
	if len(rpe.Preview) > 210 {
		t.Errorf("preview not bounded: %d chars", len(rpe.Preview))
	}
}

func TestInterpretBatchFramesKey(t *testing.T) {
	it := NewInterpreter(testLogger())
	raw := `{"frames": [
		{"description": "one", "meta_tags": ["a","b","c"]},
		{"description": "two", "meta_tags": ["d","e","f"]}
	]}`

	fields, err := it.InterpretBatch(raw, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
	if fields[0].Description != "one" || fields[1].Description != "two" {
		t.Errorf("positional mapping broken: %+v", fields)
	}
}

func TestInterpretBatchTopLevelArray(t *testing.T) {
	it := NewInterpreter(testLogger())
	raw := `[{"description": "one"}, {"description": "two"}]`

	fields, err := it.InterpretBatch(raw, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fields[1].Description != "two" {
		t.Errorf("fields = %+v", fields)
	}
}

func TestInterpretBatchSingleObject(t *testing.T) {
	it := NewInterpreter(testLogger())
	fields, err := it.InterpretBatch(`{"description": "lone frame"}`, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fields[0].Description != "lone frame" {
		t.Errorf("fields = %+v", fields)
	}
}

func TestInterpretBatchFirstArrayProperty(t *testing.T) {
	it := NewInterpreter(testLogger())
	raw := `{"results": [{"description": "one"}, {"description": "two"}]}`

	fields, err := it.InterpretBatch(raw, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fields[0].Description != "one" {
		t.Errorf("fields = %+v", fields)
	}
}

func TestInterpretBatchMissingTail(t *testing.T) {
	it := NewInterpreter(testLogger())
	raw := `{"frames": [{"description": "only one"}]}`

	fields, err := it.InterpretBatch(raw, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(fields))
	}
	if fields[0].Err != "" {
		t.Errorf("first position should be good: %+v", fields[0])
	}
	for i := 1; i < 3; i++ {
		if fields[i].Err != missingBatchResult {
			t.Errorf("position %d: expected missing-result error, got %+v", i, fields[i])
		}
	}
}

func TestInterpretBatchExtraElementsDropped(t *testing.T) {
	it := NewInterpreter(testLogger())
	raw := `{"frames": [{"description": "one"}, {"description": "two"}, {"description": "three"}]}`

	fields, err := it.InterpretBatch(raw, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fields) != 2 {
		t.Errorf("expected exactly 2 fields, got %d", len(fields))
	}
}

func TestInterpretBatchNoArrayShape(t *testing.T) {
	it := NewInterpreter(testLogger())
	_, err := it.InterpretBatch(`{"note": "nothing useful here"}`, 2)
	if err == nil {
		t.Fatal("expected parse error for arrayless response")
	}
	var rpe *core.ResponseParseError
	if !errors.As(err, &rpe) {
		t.Errorf("expected ResponseParseError, got %T", err)
	}
}

func TestInterpretSingleProseLikeCatExample(t *testing.T) {
	it := NewInterpreter(testLogger())
	raw := "Sure! ```json\n{\"description\":\"a cat\",\"meta_tags\":[\"cat\",\"pet\",\"animal\"]}\n```"

	f, err := it.InterpretSingle(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Description != "a cat" {
		t.Errorf("description = %q", f.Description)
	}
	if len(f.MetaTags) != 3 || f.MetaTags[2] != "animal" {
		t.Errorf("meta_tags = %v", f.MetaTags)
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := []struct{ in, want string }{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}", `{"a":1}`},
	}
	for _, c := range cases {
		if got := stripCodeFences(c.in); got != c.want {
			t.Errorf("stripCodeFences(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRepairJSON(t *testing.T) {
	cases := []struct{ in, want string }{
		{`{"a": 1`, `{"a": 1}`},
		{`{"a": [1, 2`, `{"a": [1, 2]}`},
		{`{"a": 1,}`, `{"a": 1}`},
		{`"a": 1`, `{"a": 1}`},
		{`{"a": "open string`, `{"a": "open string"}`},
		{`{"a": "has } inside"`, `{"a": "has } inside"}`},
	}
	for _, c := range cases {
		if got := repairJSON(c.in); got != c.want {
			t.Errorf("repairJSON(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
