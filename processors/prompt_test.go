package processors

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/Abhijeetkumar8582/NewCode/core"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtractRulesFromDefaultTemplate(t *testing.T) {
	rules := extractRules(defaultPromptTemplate)
	if rules == "" {
		t.Fatal("expected rules content")
	}
	if !strings.Contains(rules, "Describe in detail") {
		t.Errorf("rules missing expected content: %q", rules)
	}
	if strings.Contains(rules, "OUTPUT FORMAT") {
		t.Errorf("rules leaked past separator: %q", rules)
	}
	if strings.Contains(rules, "---") {
		t.Errorf("rules should not contain separator: %q", rules)
	}
}

func TestExtractRulesNoMarker(t *testing.T) {
	if got := extractRules("just some text"); got != "" {
		t.Errorf("expected empty rules, got %q", got)
	}
}

func TestExtractRulesNoSeparator(t *testing.T) {
	tmpl := "intro\n\n### ANALYSIS RULES\n\n1. rule one\n2. rule two\n---"
	got := extractRules(tmpl)
	if got != "1. rule one\n2. rule two" {
		t.Errorf("unexpected rules: %q", got)
	}
}

func TestSpliceRulesPreservesSurroundings(t *testing.T) {
	p := NewPromptResolver("", testLogger())
	custom := "1. Only describe terminal windows."
	out := p.Resolve(custom)

	if !strings.Contains(out, custom) {
		t.Fatal("custom rules not spliced in")
	}
	if strings.Contains(out, "Describe in detail") {
		t.Error("old rules still present after splice")
	}
	// Everything before the marker and after the separator must survive.
	if !strings.HasPrefix(out, "You are analyzing one frame") {
		t.Error("preamble modified by splice")
	}
	if !strings.Contains(out, "### OUTPUT FORMAT") {
		t.Error("output format section lost")
	}
	if !strings.Contains(out, "Frame timestamp: {timestamp} seconds") {
		t.Error("timestamp line lost")
	}
}

func TestResolveEmptyRulesKeepsTemplate(t *testing.T) {
	p := NewPromptResolver("", testLogger())
	if p.Resolve("") != p.Template() {
		t.Error("empty rules should return the template unchanged")
	}
	if p.Resolve("   \n") != p.Template() {
		t.Error("whitespace rules should return the template unchanged")
	}
}

func TestSpliceRulesNoMarker(t *testing.T) {
	out := spliceRules("no marker here", "custom")
	if out != "no marker here" {
		t.Errorf("template without marker must pass through, got %q", out)
	}
}

func TestFormatTimestamp(t *testing.T) {
	out, err := FormatTimestamp("ts is {timestamp} seconds", 12.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ts is 12.5 seconds" {
		t.Errorf("unexpected substitution: %q", out)
	}
}

func TestFormatTimestampNoPlaceholder(t *testing.T) {
	out, err := FormatTimestamp("no placeholder", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "no placeholder" {
		t.Errorf("text without placeholder must pass through, got %q", out)
	}
}

func TestFormatTimestampMalformed(t *testing.T) {
	_, err := FormatTimestamp("broken {timestamp here", 5)
	if err == nil {
		t.Fatal("expected error for malformed placeholder")
	}
	var pfe *core.PromptFormatError
	if !errors.As(err, &pfe) {
		t.Errorf("expected PromptFormatError, got %T", err)
	}
}

func TestBatchPrompt(t *testing.T) {
	p := NewPromptResolver("", testLogger())
	out := p.BatchPrompt("", []float64{0, 5, 10})

	if !strings.Contains(out, "Analyze these 3 video frames") {
		t.Error("frame count missing from batch prompt")
	}
	if !strings.Contains(out, `"frames"`) {
		t.Error("frames key contract missing from batch prompt")
	}
	if !strings.Contains(out, "Frame timestamps (in order): 0, 5, 10") {
		t.Errorf("timestamp list missing: %q", out[len(out)-80:])
	}
}
