package processors

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/Abhijeetkumar8582/NewCode/core"
)

// Sentinels delimiting the editable region of the prompt template. Everything
// outside the region is fixed and must survive splicing byte for byte.
const (
	rulesStartMarker  = "### ANALYSIS RULES"
	rulesEndMarker    = "\n---\n"
	sectionMarker     = "\n### "
	timestampToken    = "{timestamp}"
	timestampPartial  = "{timestamp"
	defaultNoDescText = "No description provided"
)

// defaultPromptTemplate is used when no prompt.txt override exists on disk.
const defaultPromptTemplate = `You are analyzing one frame sampled from a screen-recorded video. Respond with strict JSON only, no prose and no markdown fences.

### ANALYSIS RULES

1. Describe in detail what is happening in the frame: visible UI elements, windows, dialogs, text fields, and the action apparently in progress.
2. Extract every piece of readable text in the frame (OCR). Use null when the frame contains no readable text.
3. Provide exactly three short meta tags that classify the frame content.

---

### OUTPUT FORMAT

Return a single JSON object:
{"timestamp": <seconds>, "description": "<detailed description>", "ocr_text": "<extracted text or null>", "meta_tags": ["tag1", "tag2", "tag3"]}

Frame timestamp: {timestamp} seconds`

// PromptResolver produces the final instruction text sent to the model. It
// holds the fixed template and splices optional per-caller rules into the
// ANALYSIS RULES region without touching any byte outside it.
type PromptResolver struct {
	template string
	log      *slog.Logger
}

// NewPromptResolver loads the template from path, falling back to the
// embedded default when the file is absent or empty.
func NewPromptResolver(path string, log *slog.Logger) *PromptResolver {
	template := defaultPromptTemplate
	if path != "" {
		if data, err := os.ReadFile(path); err == nil && strings.TrimSpace(string(data)) != "" {
			template = strings.TrimSpace(string(data))
			log.Info("prompt template loaded", "path", path, "bytes", len(template))
		} else {
			log.Warn("prompt template file not usable, using embedded default", "path", path)
		}
	}
	return &PromptResolver{template: template, log: log}
}

// Template returns the unresolved template text.
func (p *PromptResolver) Template() string { return p.template }

// DefaultRules returns the editable rules content embedded in the template.
func (p *PromptResolver) DefaultRules() string {
	return extractRules(p.template)
}

// Resolve splices customRules into the template's editable region. Empty
// customRules keeps the template's own rules unchanged.
func (p *PromptResolver) Resolve(customRules string) string {
	if strings.TrimSpace(customRules) == "" {
		return p.template
	}
	return spliceRules(p.template, customRules)
}

// extractRules returns the content between the start sentinel and the
// separator, excluding both.
func extractRules(template string) string {
	start := strings.Index(template, rulesStartMarker)
	if start == -1 {
		return ""
	}
	remaining := template[start+len(rulesStartMarker):]
	remaining = strings.TrimLeft(remaining, "\n\r")

	if end := strings.Index(remaining, rulesEndMarker); end != -1 {
		return strings.TrimSpace(remaining[:end])
	}
	if end := strings.Index(remaining, sectionMarker); end != -1 {
		return strings.TrimSpace(remaining[:end])
	}
	content := strings.TrimSpace(remaining)
	content = strings.TrimSuffix(content, "---")
	return strings.TrimSpace(content)
}

// spliceRules rebuilds the template with rules in place of the editable
// region. A template without the start sentinel is returned unmodified; a
// malformed template must never crash prompt resolution.
func spliceRules(template, rules string) string {
	start := strings.Index(template, rulesStartMarker)
	if start == -1 {
		return template
	}
	contentStart := start + len(rulesStartMarker)
	remaining := strings.TrimLeft(template[contentStart:], "\n\r")
	before := template[:contentStart]

	if end := strings.Index(remaining, rulesEndMarker); end != -1 {
		return before + "\n\n" + rules + remaining[end:]
	}
	if end := strings.Index(remaining, sectionMarker); end != -1 {
		return before + "\n\n" + rules + remaining[end:]
	}
	return before + "\n\n" + rules + "\n" + remaining
}

// FormatTimestamp substitutes the literal frame timestamp for the named
// placeholder. A malformed placeholder fails with *core.PromptFormatError
// before any substitution happens, so a partially substituted prompt is never
// produced.
func FormatTimestamp(prompt string, timestampSec float64) (string, error) {
	rest := prompt
	for {
		idx := strings.Index(rest, timestampPartial)
		if idx == -1 {
			break
		}
		tail := rest[idx:]
		if !strings.HasPrefix(tail, timestampToken) {
			return "", &core.PromptFormatError{Reason: "unterminated {timestamp} placeholder"}
		}
		rest = tail[len(timestampToken):]
	}
	ts := strconv.FormatFloat(timestampSec, 'f', -1, 64)
	return strings.ReplaceAll(prompt, timestampToken, ts), nil
}

// BatchPrompt builds the instruction text for a multi-frame call: the
// resolved per-frame instructions plus the frames-array response contract and
// the submitted timestamps in order.
func (p *PromptResolver) BatchPrompt(customRules string, timestamps []float64) string {
	tsList := make([]string, len(timestamps))
	for i, ts := range timestamps {
		tsList[i] = strconv.FormatFloat(ts, 'f', -1, 64)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze these %d video frames using the following instructions:\n\n", len(timestamps))
	b.WriteString(p.Resolve(customRules))
	b.WriteString(`

IMPORTANT: Return a JSON object with a "frames" key containing an array. Each element corresponds to a frame in submission order:
{
  "frames": [
    {
      "timestamp": <timestamp_in_seconds>,
      "description": "<detailed_description>",
      "ocr_text": "<extracted_text_or_null>",
      "meta_tags": ["tag1", "tag2", "tag3"]
    }
  ]
}

Frame timestamps (in order): `)
	b.WriteString(strings.Join(tsList, ", "))
	return b.String()
}
