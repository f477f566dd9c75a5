package decision

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/openclaw/eventmind/internal/event"
)

// Analysis types.
const (
	TypeTriage    = "triage"
	TypeSummarize = "summarize"
	TypeClassify  = "classify"
	TypeExtract   = "extract"
	TypeDecide    = "decide"
)

const fieldLimit = 500

var templates = map[string]string{
	TypeTriage: "You are an email triage assistant. Analyze this email event and determine:\n" +
		"1. Priority (P0-P3)\n" +
		"2. Category (action_required, fyi, spam, newsletter, personal, work)\n" +
		"3. Suggested action (reply, forward, archive, create_task, ignore)\n" +
		"4. Key entities (people, orgs, dates, amounts)\n" +
		"5. Brief summary (1-2 sentences)\n\n" +
		"Respond in JSON format with keys: priority, category, suggested_action, " +
		"entities, summary, confidence (0-1).",
	TypeSummarize: "Summarize the following event data concisely. Extract key facts, " +
		"action items, and deadlines. Respond in JSON format with keys: " +
		"summary, action_items (list), deadlines (list), key_facts (list), confidence (0-1).",
	TypeClassify: "Classify this event into one or more categories. Respond in JSON format " +
		"with keys: primary_category, secondary_categories (list), confidence (0-1), " +
		"reasoning (brief explanation).",
	TypeExtract: "Extract structured information from this event. Identify: people, " +
		"organizations, dates, locations, monetary amounts, and action items. " +
		"Respond in JSON format with keys: people (list), organizations (list), " +
		"dates (list), locations (list), amounts (list), action_items (list), confidence (0-1).",
	TypeDecide: "Given the following event and context, recommend an action. Consider " +
		"priority, sender importance, current workload, and deadlines. " +
		"Choose recommended_action from: create_task, reply, forward, escalate, flag, archive, ignore, log. " +
		"Respond in JSON format with keys: recommended_action, priority (P0-P3), " +
		"reasoning, confidence (0-1), alternatives (list of other options).",
}

// Template returns the instruction template for an analysis type. Unknown
// types get the summarize template.
func Template(analysisType string) string {
	if t, ok := templates[analysisType]; ok {
		return t
	}
	return templates[TypeSummarize]
}

// KnownType reports whether analysisType has its own template.
func KnownType(analysisType string) bool {
	_, ok := templates[analysisType]
	return ok
}

// FormatEvent renders the salient parts of an event as "Key: value" lines.
func FormatEvent(ev *event.Event) string {
	source, typ := ev.Source, ev.Type
	if source == "" {
		source = "unknown"
	}
	if typ == "" {
		typ = "unknown"
	}

	lines := []string{"Source: " + source, "Type: " + typ}
	if !ev.Timestamp.IsZero() {
		lines = append(lines, "Time: "+ev.Timestamp.UTC().Format(time.RFC3339))
	}

	title := cases.Title(language.Und)
	for _, key := range event.PromptFields {
		v := event.StringField(ev.Payload, key)
		if v == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", title.String(key), event.Truncate(v, fieldLimit)))
	}
	if labels := ev.Labels(); len(labels) > 0 {
		lines = append(lines, "Labels: "+strings.Join(labels, ", "))
	}
	return strings.Join(lines, "\n")
}

// BuildPrompt assembles the full prompt for one analysis and returns it with
// the event rendering used inside it.
func BuildPrompt(ev *event.Event, analysisType string, extra map[string]any) (prompt, rendering string, err error) {
	rendering = FormatEvent(ev)
	prompt = Template(analysisType) + "\n\n---\nEvent Data:\n" + rendering
	if len(extra) > 0 {
		b, err := json.MarshalIndent(extra, "", "  ")
		if err != nil {
			return "", "", fmt.Errorf("encoding context: %w", err)
		}
		prompt += "\n\nAdditional Context:\n" + string(b)
	}
	return prompt, rendering, nil
}

// PromptHash is a stable short fingerprint of a prompt.
func PromptHash(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])[:16]
}
