// Package sentiment defines the sentiment analysis domain types.
package sentiment

import "time"

// Label names the overall sentiment of a text.
type Label string

const (
	LabelPositive Label = "positive"
	LabelNegative Label = "negative"
	LabelNeutral  Label = "neutral"
)

// Analysis is the outcome of scoring a text. Score is in [0, 1] where values
// above 0.5 lean positive and below lean negative.
type Analysis struct {
	Sentiment  Label     `json:"sentiment"`
	Score      float64   `json:"score"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}
