package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/openclaw/eventmind/internal/event"
	"github.com/openclaw/eventmind/internal/llm"
)

const maxAnalyzeChars = 8000

const systemPrompt = `You are an NLP annotator. Given a text, return a JSON object with:
- "entities": array of {"name": string, "type": one of PERSON, ORGANIZATION, LOCATION, EVENT, WORK_OF_ART, CONSUMER_GOOD, DATE, NUMBER, OTHER, "salience": number 0-1, "mentions": array of strings as they appear in the text}
- "sentiment": {"score": number -1 to 1, "magnitude": number >= 0}
- "language": ISO 639-1 code
Return ONLY the JSON object.`

var analysisSchema = llm.MustCompileSchema("nlp-analysis.json", `{
	"type": "object",
	"required": ["entities", "sentiment", "language"],
	"properties": {
		"entities": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "type"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"type": {"type": "string"},
					"salience": {"type": "number", "minimum": 0, "maximum": 1},
					"mentions": {"type": "array", "items": {"type": "string"}}
				}
			}
		},
		"sentiment": {
			"type": "object",
			"required": ["score", "magnitude"],
			"properties": {
				"score": {"type": "number", "minimum": -1, "maximum": 1},
				"magnitude": {"type": "number", "minimum": 0}
			}
		},
		"language": {"type": "string"}
	}
}`)

// LLMAnalyzer implements Analyzer on top of a generative-language provider.
type LLMAnalyzer struct {
	provider llm.Provider
	model    string
}

// NewLLMAnalyzer creates an analyzer using provider and model.
func NewLLMAnalyzer(provider llm.Provider, model string) *LLMAnalyzer {
	return &LLMAnalyzer{provider: provider, model: model}
}

func (a *LLMAnalyzer) Analyze(ctx context.Context, text string) (*Analysis, error) {
	resp, err := a.provider.Complete(ctx, llm.CompletionRequest{
		Model: a.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: event.Truncate(text, maxAnalyzeChars)},
		},
		MaxTokens:   1024,
		Temperature: 0,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("nl analysis: %w", err)
	}

	obj, err := analysisSchema.Decode(resp.Content)
	if err != nil {
		return nil, err
	}

	// Round-trip through JSON into the typed result.
	b, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("re-encoding analysis: %w", err)
	}
	var out Analysis
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decoding analysis: %w", err)
	}

	sort.SliceStable(out.Entities, func(i, j int) bool {
		return out.Entities[i].Salience > out.Entities[j].Salience
	})
	return &out, nil
}
