// Package nlp wraps the NL-analysis capability used by enrichment: entities,
// document sentiment and language for a block of text.
package nlp

import "context"

// Entity is a named mention found in the text.
type Entity struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Salience float64  `json:"salience"`
	Mentions []string `json:"mentions"`
}

// Sentiment is document-level sentiment. Score is in [-1, 1]; Magnitude is
// non-negative and grows with the amount of emotional content.
type Sentiment struct {
	Score     float64 `json:"score"`
	Magnitude float64 `json:"magnitude"`
}

// Analysis is the result of analyzing one text.
type Analysis struct {
	Entities  []Entity  `json:"entities"`
	Sentiment Sentiment `json:"sentiment"`
	Language  string    `json:"language"`
}

// Analyzer extracts entities, sentiment and language from text.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*Analysis, error)
}

// Static returns a fixed result; it is used in tests and when no NL
// capability is configured.
type Static struct {
	Result *Analysis
	Err    error
	Calls  int
}

func (s *Static) Analyze(ctx context.Context, text string) (*Analysis, error) {
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Result == nil {
		return &Analysis{}, nil
	}
	out := *s.Result
	return &out, nil
}
