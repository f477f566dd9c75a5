package cluster

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/openclaw/eventmind/internal/event"
	"github.com/openclaw/eventmind/internal/llm"
)

const (
	maxLabelLen       = 60
	maxDescriptionLen = 200
	maxPromptTexts    = 5
)

// Label names a cluster.
type Label struct {
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Labeler derives a label from sample member texts.
type Labeler interface {
	Label(ctx context.Context, texts []string) (Label, error)
}

var wordRE = regexp.MustCompile(`[A-Za-z][A-Za-z0-9_\-]{2,}`)

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"that": true, "this": true, "you": true, "your": true, "about": true,
	"meet": true, "meeting": true, "re": true, "fw": true, "fwd": true,
	"update": true, "notes": true, "today": true, "tomorrow": true,
}

// KeywordLabel derives a label from the most frequent non-stopword tokens.
// It never fails; with no usable tokens it falls back to "Cluster <index>".
func KeywordLabel(index int, texts []string) Label {
	counts := map[string]int{}
	var order []string
	for _, t := range texts {
		for _, w := range wordRE.FindAllString(strings.ToLower(t), -1) {
			if stopwords[w] {
				continue
			}
			if counts[w] == 0 {
				order = append(order, w)
			}
			counts[w]++
		}
	}
	if len(order) == 0 {
		return Label{
			Label:       fmt.Sprintf("Cluster %d", index),
			Description: "Auto-clustered events.",
		}
	}

	// Stable sort keeps first-seen order among equal counts.
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	top := order[:min(3, len(order))]

	return Label{
		Label:       cases.Title(language.Und).String(strings.Join(top[:min(2, len(top))], " / ")),
		Description: fmt.Sprintf("Auto-clustered events about %s.", strings.Join(top, ", ")),
	}
}

var labelSchema = llm.MustCompileSchema("cluster-label.json", `{
	"type": "object",
	"required": ["label"],
	"properties": {
		"label": {"type": "string", "minLength": 1},
		"description": {"type": "string"}
	}
}`)

// LLMLabeler asks a generative-language provider to name the cluster.
type LLMLabeler struct {
	provider llm.Provider
	model    string
}

// NewLLMLabeler creates an LLM-backed labeler.
func NewLLMLabeler(provider llm.Provider, model string) *LLMLabeler {
	return &LLMLabeler{provider: provider, model: model}
}

func (l *LLMLabeler) Label(ctx context.Context, texts []string) (Label, error) {
	if len(texts) == 0 {
		return Label{}, fmt.Errorf("no sample texts")
	}
	prompt := "You are naming a cluster of personal events. " +
		"Return JSON with keys: label (<=5 words), description (<=20 words). " +
		"Texts:\n\n" + strings.Join(texts[:min(maxPromptTexts, len(texts))], "\n---\n")

	resp, err := l.provider.Complete(ctx, llm.CompletionRequest{
		Model:       l.model,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens:   256,
		Temperature: 0,
		JSONMode:    true,
	})
	if err != nil {
		return Label{}, fmt.Errorf("labeling cluster: %w", err)
	}

	obj, err := labelSchema.Decode(resp.Content)
	if err != nil {
		return Label{}, err
	}
	label := strings.TrimSpace(event.StringField(obj, "label"))
	if label == "" {
		return Label{}, fmt.Errorf("model returned an empty label")
	}
	return Label{
		Label:       event.Truncate(label, maxLabelLen),
		Description: event.Truncate(event.StringField(obj, "description"), maxDescriptionLen),
	}, nil
}
