package provider

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/jpearleverett/story-continuity/internal/model"
)

// ChapterOutput is the structured output requested from providers.
type ChapterOutput struct {
	Title            string         `json:"title" jsonschema:"description=Chapter title"`
	BridgeText       string         `json:"bridgeText" jsonschema:"description=One or two sentences linking the previous case to this one"`
	Narrative        string         `json:"narrative" jsonschema:"description=The chapter prose"`
	ChapterSummary   string         `json:"chapterSummary" jsonschema:"description=Three sentence summary of what happened"`
	NarrativeThreads []ThreadOutput `json:"narrativeThreads" jsonschema:"description=Every open or closed story obligation touched in this chapter"`
}

// ThreadOutput is one thread annotation in provider output. Strict schemas
// require every field, so empty strings and zero mean absent.
type ThreadOutput struct {
	Type        string   `json:"type" jsonschema:"enum=appointment,enum=revelation,enum=investigation,enum=relationship,enum=physical_state,enum=promise,enum=threat"`
	Description string   `json:"description"`
	Status      string   `json:"status" jsonschema:"enum=active,enum=resolved,enum=failed"`
	Urgency     string   `json:"urgency" jsonschema:"enum=critical,enum=normal,enum=background"`
	Characters  []string `json:"characters"`
	DueChapter  int      `json:"dueChapter" jsonschema:"description=Chapter by which the thread must be addressed; 0 when open-ended"`
}

// Annotation converts the output to the wire annotation validated by the extractor.
func (t ThreadOutput) Annotation() model.ThreadAnnotation {
	opt := func(s string) *string {
		if strings.TrimSpace(s) == "" {
			return nil
		}
		return &s
	}
	a := model.ThreadAnnotation{
		Type:        opt(t.Type),
		Description: opt(t.Description),
		Status:      opt(t.Status),
		Urgency:     opt(t.Urgency),
		Characters:  t.Characters,
	}
	if t.DueChapter > 0 {
		due := t.DueChapter
		a.DueChapter = &due
	}
	return a
}

var chapterSchema = GenerateSchema[ChapterOutput]()

// GenerateSchema reflects T into a strict JSON schema: every object closed to
// additional properties and every property required.
func GenerateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	b, err := reflector.Reflect(v).MarshalJSON()
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		panic(err)
	}
	makeStrict(m)
	return m
}

func makeStrict(schema map[string]any) {
	delete(schema, "$schema")
	if typ, ok := schema["type"].(string); ok && typ == "object" {
		schema["additionalProperties"] = false
		if props, ok := schema["properties"].(map[string]any); ok {
			var required []string
			for name := range props {
				required = append(required, name)
			}
			if len(required) > 0 {
				schema["required"] = required
			}
		}
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		for _, p := range props {
			if pm, ok := p.(map[string]any); ok {
				makeStrict(pm)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		makeStrict(items)
	}
}

// decodeOutput parses model output, tolerating prose around a single JSON object.
func decodeOutput(text string, v any) error {
	s := strings.TrimSpace(text)
	if s == "" {
		return io.ErrUnexpectedEOF
	}
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start != -1 && end == -1 {
		return io.ErrUnexpectedEOF
	}
	if start == -1 || end <= start {
		return fmt.Errorf("no JSON object in model output (len=%d)", len(s))
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), v); err != nil {
		return fmt.Errorf("decode model output: %w", err)
	}
	return nil
}
