package core

// Usage captures accumulated token consumption and model call counts for a run.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	ModelCalls       int `json:"model_calls"`
}

// Add accumulates another usage sample into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
	u.ModelCalls += other.ModelCalls
}
