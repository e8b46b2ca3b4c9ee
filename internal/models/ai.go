package models

// TokenUsage counts tokens consumed by generation calls.
type TokenUsage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
	}
}

func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Attachment is binary content sent alongside a prompt.
type Attachment struct {
	Data      []byte
	MediaType string
}

type GenerationRequest struct {
	// Model overrides the default model when it is one of the available ones.
	Model       string
	Prompt      string
	Attachment  *Attachment
	Temperature *float32
	// JSON asks the model for an application/json response.
	JSON bool
}

type Generation struct {
	Text  string
	Model string
	Usage TokenUsage
}

type Embedding struct {
	Vector []float32
	Tokens int
}
