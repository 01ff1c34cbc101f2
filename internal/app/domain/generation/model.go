// Package generation defines the text generation domain types.
package generation

import "time"

// Category classifies a generated response.
type Category string

const (
	// CategoryGeneral marks a free-form response.
	CategoryGeneral Category = "general"
	// CategoryCode marks a response carrying a code sample.
	CategoryCode Category = "code"
	// CategoryRestricted marks a refusal for a disallowed topic.
	CategoryRestricted Category = "restricted"
)

// Message is one turn of conversation context supplied with a prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response is the outcome of a text generation request.
type Response struct {
	Text       string    `json:"text"`
	Category   Category  `json:"category"`
	Code       string    `json:"code,omitempty"`
	Language   string    `json:"language,omitempty"`
	Model      string    `json:"model,omitempty"`
	Restricted bool      `json:"restricted,omitempty"`
	Cached     bool      `json:"cached,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
